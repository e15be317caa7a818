// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
Package fusion 提供融合引擎：把同一请求扇出到一组检索策略，
将各自的有序结果合并为一个去重后的候选序列。

# 顺序保证

并行执行只影响时延，不影响输出：合并顺序永远是检索器的配置顺序
（检索器优先、各自内部排名次之），与各并行调用的完成先后无关。
时序上的非确定性不得泄漏为输出顺序的非确定性。

# 去重

身份为 (source, chunk_index)。同一身份被多个策略召回时，
保留配置顺序下首次出现的实例；不做跨策略的分数比较，
因为各策略的分数量纲不同。

# 失败策略

默认优雅降级：单个检索器失败时丢弃其贡献、记日志并继续，
单个不健康的索引不会让整个回答落空。配置 RequireAll 时
任一失败即整体失败。
*/
package fusion
