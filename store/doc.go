// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
Package store 提供检索后端的统一接口与实现。

管线通过两个窄接口消费索引：VectorStore（向量近邻检索）与
KeywordStore（词法/倒排检索）。嵌入计算是 VectorStore 实现的内部职责，
管线从不直接接触 embedding。

# 实现

  - InMemoryVectorStore  — 余弦相似度内存实现（测试与小规模部署）
  - InMemoryKeywordStore — BM25 内存实现
  - MilvusStore          — Milvus REST API v2 客户端
  - ElasticStore         — Elasticsearch _search 客户端

所有实现都是读多写少、长生命周期、并发安全的共享资源；
管线侧不做任何写操作之外的加锁。
*/
package store
