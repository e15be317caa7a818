// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
Package qa 负责答案合成：把装配好的上下文和用户问题交给语言模型。

提示词与链类型都来自封闭注册表，未知名字在构造期报错，而不是
等到请求期。stuff 链把全部上下文拼进一次调用；map_reduce 链对
每个块单独提问后归并。

Synthesize 返回 (types.Answer, error)。把错误转成答案形文本是
pipeline 最外层边界的职责，不在这里发生。
*/
package qa
