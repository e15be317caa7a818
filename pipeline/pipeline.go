package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/ragpipe/assemble"
	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/fusion"
	"github.com/BaSui01/ragpipe/internal/cache"
	"github.com/BaSui01/ragpipe/internal/metrics"
	"github.com/BaSui01/ragpipe/qa"
	"github.com/BaSui01/ragpipe/retriever"
	"github.com/BaSui01/ragpipe/store"
	"github.com/BaSui01/ragpipe/types"
)

// Deps 聚合管线的外部协作者。
type Deps struct {
	// Vector 向量索引后端
	Vector store.VectorStore
	// Keyword 关键词索引后端
	Keyword store.KeywordStore
	// LLM 语言模型客户端
	LLM qa.LLM
}

// Pipeline 是检索增强问答管线。
type Pipeline struct {
	cfg        config.PipelineConfig
	retrievers []retriever.Retriever
	ensemble   *fusion.Ensemble
	assembler  *assemble.Assembler
	synth      *qa.Synthesizer
	cache      *cache.Manager
	collector  *metrics.Collector
	tracer     trace.Tracer
	logger     *zap.Logger
}

// Option 配置管线的可选行为。
type Option func(*options)

type options struct {
	logger   *zap.Logger
	registry prometheus.Registerer
	metrics  bool
	limiter  *rate.Limiter
}

// WithLogger 指定日志器，nil 回落到 no-op。
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics 在给定 Registerer 上注册 Prometheus 指标。
// reg 为 nil 时使用默认注册表。
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
		o.metrics = true
	}
}

// WithRateLimiter 为模型调用加限流闸门。
func WithRateLimiter(l *rate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// New 按声明式配置构造管线。配置错误在这里全部暴露，
// 请求期不再出现"未知类型"一类的失败。
func New(cfg config.PipelineConfig, deps Deps, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	built, err := retriever.NewAll(cfg.Retrievers, retriever.Stores{
		Vector:  deps.Vector,
		Keyword: deps.Keyword,
	}, logger)
	if err != nil {
		return nil, err
	}
	scoped := scopeCollections(cfg.Collection, cfg.Retrievers, built)

	p := &Pipeline{
		cfg:        cfg,
		retrievers: scoped,
		assembler:  assemble.New(cfg.Generate, cfg.PostRetrieval, logger),
		tracer:     otel.Tracer("ragpipe/pipeline"),
		logger:     logger.With(zap.String("component", "pipeline")),
	}

	if o.metrics {
		p.collector = metrics.NewCollector("ragpipe", o.registry, logger)
	}

	fusionOpts := []fusion.Option{}
	if p.collector != nil {
		fusionOpts = append(fusionOpts, fusion.WithDroppedFunc(func(name string, _ error) {
			p.collector.RecordRetrieverFailure(name)
		}))
	}
	p.ensemble = fusion.NewEnsemble(scoped, cfg.Policy(), logger, fusionOpts...)

	synthOpts := []qa.Option{}
	if o.limiter != nil {
		synthOpts = append(synthOpts, qa.WithRateLimiter(o.limiter))
	}
	p.synth, err = qa.NewSynthesizer(cfg.Generate, deps.LLM, logger, synthOpts...)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		mgr, err := cache.NewManager(cache.Config{
			Addr:       cfg.Cache.Addr,
			DefaultTTL: cfg.Cache.TTL,
		}, logger)
		if err != nil {
			return nil, types.WrapError(types.ErrConfigInvalid, "answer cache", err)
		}
		p.cache = mgr
	}

	return p, nil
}

// scopedRetriever 把一个检索策略绑定到它自己的集合命名空间。
type scopedRetriever struct {
	retriever.Retriever
	collection string
}

func (s scopedRetriever) Retrieve(ctx context.Context, req types.RetrievalRequest) ([]types.DocumentChunk, error) {
	req.Collection = s.collection
	return s.Retriever.Retrieve(ctx, req)
}

func (s scopedRetriever) AddDocuments(ctx context.Context, _ string, docs []retriever.SourceDocument) error {
	return s.Retriever.AddDocuments(ctx, s.collection, docs)
}

// scopeCollections 给每个检索策略派生独立集合名：基础名加策略
// 类型后缀，同类型重复时再加位置序号。
func scopeCollections(base string, cfgs []config.RetrieverConfig, built []retriever.Retriever) []retriever.Retriever {
	typeCount := make(map[string]int, len(cfgs))
	for _, c := range cfgs {
		typeCount[c.Type]++
	}
	out := make([]retriever.Retriever, len(built))
	for i, r := range built {
		name := fmt.Sprintf("%s_%s", base, cfgs[i].Type)
		if typeCount[cfgs[i].Type] > 1 {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		out[i] = scopedRetriever{Retriever: r, collection: name}
	}
	return out
}

// AddDocuments 把源文档索引进所有检索策略各自的集合。
func (p *Pipeline) AddDocuments(ctx context.Context, docs []retriever.SourceDocument) error {
	for _, r := range p.retrievers {
		if err := r.AddDocuments(ctx, p.cfg.Collection, docs); err != nil {
			return err
		}
	}
	return nil
}

// Answer 执行完整管线并返回结构化结果。错误按内部语义返回，
// 不在这里转成答案形文本。
func (p *Pipeline) Answer(ctx context.Context, query string) (types.Answer, error) {
	req, err := types.NewRetrievalRequest(query, p.cfg.Collection)
	if err != nil {
		return types.Answer{}, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("request.id", req.ID)))
	defer span.End()

	runStart := time.Now()
	logger := p.logger.With(zap.String("request_id", req.ID))

	if cached, ok := p.cacheGet(ctx, query); ok {
		logger.Debug("answer cache hit")
		return cached, nil
	}

	candidates, err := p.traceFuse(ctx, req)
	if err != nil {
		return types.Answer{}, err
	}

	selected := p.traceAssemble(ctx, candidates)
	logger.Debug("context assembled",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selected)))

	ans, err := p.traceSynthesize(ctx, selected, query)
	if err != nil {
		return types.Answer{}, err
	}

	p.cacheSet(ctx, query, ans)
	p.observeStage(metrics.StageRun, time.Since(runStart))
	if p.collector != nil {
		p.collector.RecordAnswer("ok")
	}
	return ans, nil
}

// Run 是公开的全函数入口：任何输入都得到一个字符串。
// 内部错误在这里、且只在这里被转换为答案形文本。
func (p *Pipeline) Run(ctx context.Context, query string) string {
	ans, err := p.Answer(ctx, query)
	if err != nil {
		p.logger.Error("pipeline run failed",
			zap.String("query", query),
			zap.Error(err))
		if p.collector != nil {
			p.collector.RecordAnswer("error")
		}
		return types.DiagnosticAnswer(err).Text
	}
	return ans.Text
}

// RunAsync 在后台执行 Run，结果通过容量为 1 的通道交付。
func (p *Pipeline) RunAsync(ctx context.Context, query string) <-chan string {
	out := make(chan string, 1)
	go func() {
		defer close(out)
		out <- p.Run(ctx, query)
	}()
	return out
}

// Close 释放管线持有的资源（当前只有答案缓存连接）。
func (p *Pipeline) Close() error {
	if p.cache != nil {
		return p.cache.Close()
	}
	return nil
}

func (p *Pipeline) traceFuse(ctx context.Context, req types.RetrievalRequest) ([]types.DocumentChunk, error) {
	ctx, span := p.tracer.Start(ctx, "fusion.fuse")
	defer span.End()

	start := time.Now()
	candidates, err := p.ensemble.Fuse(ctx, req)
	p.observeStage(metrics.StageFuse, time.Since(start))
	return candidates, err
}

func (p *Pipeline) traceAssemble(ctx context.Context, candidates []types.DocumentChunk) []types.DocumentChunk {
	_, span := p.tracer.Start(ctx, "assemble")
	defer span.End()

	start := time.Now()
	selected := p.assembler.Assemble(candidates)
	p.observeStage(metrics.StageAssemble, time.Since(start))
	return selected
}

func (p *Pipeline) traceSynthesize(ctx context.Context, selected []types.DocumentChunk, query string) (types.Answer, error) {
	ctx, span := p.tracer.Start(ctx, "qa.synthesize",
		trace.WithAttributes(attribute.Int("context.chunks", len(selected))))
	defer span.End()

	start := time.Now()
	ans, err := p.synth.Synthesize(ctx, selected, query)
	p.observeStage(metrics.StageSynthesize, time.Since(start))
	return ans, err
}

func (p *Pipeline) observeStage(stage string, d time.Duration) {
	if p.collector != nil {
		p.collector.ObserveStage(stage, d)
	}
}

// cacheKey 按集合与查询取哈希，避免把用户输入直接作为键。
func (p *Pipeline) cacheKey(query string) string {
	sum := sha256.Sum256([]byte(p.cfg.Collection + "|" + query))
	return "ragpipe:answer:" + hex.EncodeToString(sum[:])
}

// cacheGet 读缓存。缓存是旁路优化：故障只记日志，当作未命中。
func (p *Pipeline) cacheGet(ctx context.Context, query string) (types.Answer, bool) {
	if p.cache == nil {
		return types.Answer{}, false
	}
	val, err := p.cache.Get(ctx, p.cacheKey(query))
	if err != nil {
		if !cache.IsCacheMiss(err) {
			p.logger.Warn("answer cache read failed", zap.Error(err))
		}
		if p.collector != nil {
			p.collector.RecordCacheMiss()
		}
		return types.Answer{}, false
	}

	var ans types.Answer
	if err := json.Unmarshal([]byte(val), &ans); err != nil {
		p.logger.Warn("answer cache entry corrupt", zap.Error(err))
		if p.collector != nil {
			p.collector.RecordCacheMiss()
		}
		return types.Answer{}, false
	}
	if p.collector != nil {
		p.collector.RecordCacheHit()
	}
	return ans, true
}

func (p *Pipeline) cacheSet(ctx context.Context, query string, ans types.Answer) {
	if p.cache == nil {
		return
	}
	data, err := json.Marshal(ans)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, p.cacheKey(query), string(data), p.cfg.Cache.TTL); err != nil {
		p.logger.Warn("answer cache write failed", zap.Error(err))
	}
}
