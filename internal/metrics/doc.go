// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的流水线指标采集。

Collector 通过 promauto 在给定 Registerer 上注册指标：
各阶段耗时 Histogram（stage 标签）、被融合引擎丢弃的检索器
失败计数、按结果状态分组的答案计数，以及答案缓存命中/未命中
计数。所有指标按 namespace 隔离。
*/
package metrics
