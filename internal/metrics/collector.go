package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// 流水线阶段名，作为 stage 标签的取值。
const (
	StageFuse       = "fuse"
	StageAssemble   = "assemble"
	StageSynthesize = "synthesize"
	StageRun        = "run"
)

// Collector 聚合流水线的 Prometheus 指标。
type Collector struct {
	stageDuration     *prometheus.HistogramVec
	retrieverFailures *prometheus.CounterVec
	answersTotal      *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter

	logger *zap.Logger
}

// NewCollector 在给定 Registerer 上注册指标。reg 为 nil 时
// 使用默认注册表。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	c.retrieverFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retriever_failures_total",
			Help:      "Total number of retriever failures dropped by the fusion engine",
		},
		[]string{"retriever"},
	)

	c.answersTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Total number of answers produced, by outcome",
		},
		[]string{"status"},
	)

	c.cacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of answer cache hits",
		},
	)

	c.cacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of answer cache misses",
		},
	)

	return c
}

// ObserveStage 记录某个阶段的耗时。
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRetrieverFailure 记录一次被融合引擎丢弃的检索器失败。
func (c *Collector) RecordRetrieverFailure(retriever string) {
	c.retrieverFailures.WithLabelValues(retriever).Inc()
}

// RecordAnswer 按结果状态（ok / degraded / error）计数。
func (c *Collector) RecordAnswer(status string) {
	c.answersTotal.WithLabelValues(status).Inc()
}

// RecordCacheHit 记录一次答案缓存命中。
func (c *Collector) RecordCacheHit() { c.cacheHits.Inc() }

// RecordCacheMiss 记录一次答案缓存未命中。
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }
