// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
Package pipeline 把检索、融合、装配、合成编排为一条问答管线。

# 构造期失败

New 在构造期解析全部声明式配置：未知的检索器类型、分块器类型、
提示词名或链类型都立即报错，绝不推迟到请求期。

# 答案形错误

Run 是全函数：任何输入都返回一个字符串，永不 panic。内部各层
返回 (types.Answer, error)，错误到答案形文本的转换只发生在 Run
这一个最外层边界。需要结构化结果的调用方使用 Answer。

# 索引隔离

每个检索策略拥有独立的集合命名空间（基础集合名加策略后缀），
不同分块粒度的索引互不污染。
*/
package pipeline
