// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
Package types 提供 RagPipe 管线的全局共享类型定义。

# 概述

types 是管线最底层的公共包，不依赖任何内部包，为 retriever、fusion、
assemble、qa、pipeline 等上层模块提供统一的类型契约。

# 核心类型

  - DocumentChunk    — 检索的原子单位（内容 + 来源 + 块序号 + 分数）
  - ChunkID          — 去重标识 (Source, ChunkIndex)
  - RetrievalRequest — 一次检索请求（查询文本 + 目标集合），每次调用构造一次
  - Answer           — 合成答案（文本 + 证据来源 + 降级标记）
  - Error / ErrorCode — 结构化错误体系，区分配置期错误与请求期错误

# 主要能力

  - 去重语义：同一 (source, chunk_index) 视为同一证据单元，
    即使由不同检索策略以不同分数召回
  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable
*/
package types
