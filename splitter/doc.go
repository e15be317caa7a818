// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
Package splitter 提供文本分块器。

每个检索策略声明自己的分块参数（粒度、重叠），因此不同检索器
索引到的块大小不必一致，调用方不得假设跨检索器的块尺寸统一。

# 核心类型

  - Splitter                   — 分块器接口（Split(text) []string）
  - CharacterSplitter          — 按单一分隔符分割后装箱
  - RecursiveCharacterSplitter — 按分隔符优先级递归分割（段落 > 句子 > 单词）
  - SizeFunc                   — 尺寸度量：rune 计数或 tiktoken token 计数
*/
package splitter
