// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
Package assemble 把融合后的候选块装配成受预算约束的上下文。

# 预算截断

按候选的给定顺序（即融合顺序）逐块累加内容大小，块是原子单位：
放得下就整块收下，放不下就在此处截断，后面的块即使更小也不再
考虑。结果永远是输入的严格前缀，排名靠前的块永远不会被排名
靠后的块挤掉。

# 连贯性重排

可选的重排按 (source, chunk_index) 稳定排序，让同一文档的相邻
块在上下文里物理相邻。重排严格发生在截断之后：它只改变入选块
的呈现顺序，不改变入选集合。
*/
package assemble
