// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
Package retriever 提供检索策略的统一契约与四种实现。

# 契约

Retrieve(ctx, req) 返回按分数降序的块序列，长度受配置的 top_k 约束。
分数只在同一检索器的输出内可比：不同策略使用不同量纲，
融合引擎不得做跨检索器的分数运算。

# 四种策略

  - Keyword             — 词法/倒排索引匹配
  - BaselineVector      — 整块嵌入的近邻检索
  - SmallerChunksVector — 子块粒度近邻检索 + 父块上卷
  - Mix                 — 单策略内部融合向量与关键词信号（对外不透明）

未知类型通过固定查找表在构造期立即拒绝。
*/
package retriever
