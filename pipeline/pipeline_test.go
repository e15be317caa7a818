package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/retriever"
	"github.com/BaSui01/ragpipe/store"
	"github.com/BaSui01/ragpipe/types"
)

// hashEmbedder 确定性伪嵌入，词袋哈希到固定维度。
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, 64)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		h := 0
		for _, r := range term {
			h = h*131 + int(r)
		}
		if h < 0 {
			h = -h
		}
		vec[h%64]++
	}
	return vec, nil
}

// echoLLM 返回固定答案并记录调用次数。
type echoLLM struct {
	reply string
	calls int
	err   error
}

func (e *echoLLM) Generate(_ context.Context, _ string) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	return e.reply, nil
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		Collection: "docs",
		Retrievers: []config.RetrieverConfig{
			{
				Type: config.RetrieverKeyword,
				Splitter: config.SplitterConfig{
					Type:      config.SplitterRecursiveCharacter,
					ChunkSize: 200,
				},
				Retrieval: config.RetrievalParams{TopK: 5},
			},
			{
				Type: config.RetrieverBaselineVector,
				Splitter: config.SplitterConfig{
					Type:      config.SplitterRecursiveCharacter,
					ChunkSize: 200,
				},
				Retrieval: config.RetrievalParams{TopK: 5},
			},
		},
		Generate: config.GenerateConfig{
			ChainType:  config.ChainStuff,
			MaxContent: 4000,
		},
		PostRetrieval: config.PostRetrievalConfig{SortBySourceAndIndex: true},
	}
}

func testDeps(llm *echoLLM) Deps {
	return Deps{
		Vector:  store.NewInMemoryVectorStore(hashEmbedder{}, zap.NewNop()),
		Keyword: store.NewInMemoryKeywordStore(zap.NewNop()),
		LLM:     llm,
	}
}

func corpus() []retriever.SourceDocument {
	return []retriever.SourceDocument{
		{Source: "geo.md", Content: "Paris is the capital of France. France is a country in western Europe with a long history."},
		{Source: "food.md", Content: "Croissants are a French pastry. They are baked fresh every morning in Paris bakeries."},
	}
}

func newTestPipeline(t *testing.T, cfg config.PipelineConfig, llm *echoLLM, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(cfg, testDeps(llm), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.AddDocuments(context.Background(), corpus()))
	return p
}

func TestNew_InvalidConfigFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.Retrievers[0].Type = "graph"
	_, err := New(cfg, testDeps(&echoLLM{}))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUnknownRetriever))
}

func TestNew_UnknownPromptFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.Generate.PromptType = "freestyle"
	_, err := New(cfg, testDeps(&echoLLM{}))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUnknownPrompt))
}

func TestNew_MissingStoreFailsFast(t *testing.T) {
	cfg := testConfig()
	deps := testDeps(&echoLLM{})
	deps.Vector = nil
	_, err := New(cfg, deps)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))
}

func TestPipeline_AnswerEndToEnd(t *testing.T) {
	llm := &echoLLM{reply: "Paris is the capital."}
	p := newTestPipeline(t, testConfig(), llm)

	ans, err := p.Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital.", ans.Text)
	assert.False(t, ans.Degraded)
	assert.NotEmpty(t, ans.Sources)
	assert.Equal(t, 1, llm.calls)
}

func TestPipeline_RunIsTotal(t *testing.T) {
	llm := &echoLLM{reply: "ok"}
	p := newTestPipeline(t, testConfig(), llm)

	// 空查询不报错，而是得到答案形的诊断文本
	out := p.Run(context.Background(), "")
	assert.NotEmpty(t, out)
	assert.Equal(t, 0, llm.calls)

	out = p.Run(context.Background(), "anything about France")
	assert.Equal(t, "ok", out)
}

func TestPipeline_RunContainsSynthesisFailure(t *testing.T) {
	llm := &echoLLM{err: errors.New("model offline")}
	p := newTestPipeline(t, testConfig(), llm)

	out := p.Run(context.Background(), "capital of France?")
	assert.NotEmpty(t, out)
	assert.Contains(t, out, "model offline")
}

func TestPipeline_AnswerEmptyQuery(t *testing.T) {
	p := newTestPipeline(t, testConfig(), &echoLLM{reply: "ok"})

	_, err := p.Answer(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrEmptyQuery))
}

func TestPipeline_RunAsync(t *testing.T) {
	p := newTestPipeline(t, testConfig(), &echoLLM{reply: "async ok"})

	ch := p.RunAsync(context.Background(), "capital of France?")
	select {
	case out := <-ch:
		assert.Equal(t, "async ok", out)
	case <-time.After(5 * time.Second):
		t.Fatal("RunAsync did not deliver")
	}
}

func TestPipeline_AnswerCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := testConfig()
	cfg.Cache = config.CacheConfig{Enabled: true, Addr: mr.Addr(), TTL: time.Minute}

	llm := &echoLLM{reply: "cached answer"}
	p := newTestPipeline(t, cfg, llm)

	first, err := p.Answer(context.Background(), "capital of France?")
	require.NoError(t, err)
	second, err := p.Answer(context.Background(), "capital of France?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, llm.calls, "second answer must come from cache")
}

func TestPipeline_CacheFailureIsSoft(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Cache = config.CacheConfig{Enabled: true, Addr: mr.Addr(), TTL: time.Minute}

	llm := &echoLLM{reply: "still works"}
	p := newTestPipeline(t, cfg, llm)

	// 缓存后端中途消失：请求必须照常成功
	mr.Close()
	out := p.Run(context.Background(), "capital of France?")
	assert.Equal(t, "still works", out)
}

func TestPipeline_MetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newTestPipeline(t, testConfig(), &echoLLM{reply: "ok"}, WithMetrics(reg))

	_ = p.Run(context.Background(), "capital of France?")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["ragpipe_stage_duration_seconds"])
	assert.True(t, names["ragpipe_answers_total"])
}

func TestPipeline_CollectionScoping(t *testing.T) {
	// 两个策略共享后端，但各自写入独立集合：
	// keyword 策略的索引请求不会出现在 baseline_vector 的集合里
	p := newTestPipeline(t, testConfig(), &echoLLM{reply: "ok"})

	kw := p.retrievers[0].(scopedRetriever)
	vec := p.retrievers[1].(scopedRetriever)
	assert.Equal(t, "docs_keyword", kw.collection)
	assert.Equal(t, "docs_baseline_vector", vec.collection)
}

func TestNewTool(t *testing.T) {
	p := newTestPipeline(t, testConfig(), &echoLLM{reply: "tool answer"})

	tool := NewTool("knowledge_base", "answer questions from the corpus", p)
	assert.Equal(t, "knowledge_base", tool.Name)

	out := tool.Run(context.Background(), "capital of France?")
	assert.Equal(t, "tool answer", out)

	async := <-tool.RunAsync(context.Background(), "capital of France?")
	assert.Equal(t, "tool answer", async)
}

func TestPipeline_CancellationReportedAsDiagnostic(t *testing.T) {
	p := newTestPipeline(t, testConfig(), &echoLLM{reply: "ok"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := p.Run(ctx, "capital of France?")
	assert.Contains(t, out, context.Canceled.Error())
}
