package retriever

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/store"
	"github.com/BaSui01/ragpipe/types"
)

// wordEmbedder 确定性伪嵌入，词袋哈希到固定维度。
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
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

func testStores(t *testing.T) Stores {
	t.Helper()
	return Stores{
		Vector:  store.NewInMemoryVectorStore(wordEmbedder{}, zap.NewNop()),
		Keyword: store.NewInMemoryKeywordStore(zap.NewNop()),
	}
}

func charSplitter(size int) config.SplitterConfig {
	return config.SplitterConfig{
		Type:         config.SplitterRecursiveCharacter,
		ChunkSize:    size,
		ChunkOverlap: 0,
	}
}

func mustRequest(t *testing.T, query, collection string) types.RetrievalRequest {
	t.Helper()
	req, err := types.NewRetrievalRequest(query, collection)
	require.NoError(t, err)
	return req
}

var corpus = []SourceDocument{
	{Source: "report.md", Content: "Annual revenue grew by ten percent this year.\n\nSocial responsibility programs expanded to rural areas.\n\nResearch spending increased moderately."},
	{Source: "weather.md", Content: "Spring weather is mild.\n\nAutumn brings rain to the coast."},
}

func TestKeyword_EndToEnd(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)

	r, err := New(config.RetrieverConfig{
		Type:      config.RetrieverKeyword,
		Splitter:  charSplitter(60),
		Retrieval: config.RetrievalParams{TopK: 3},
	}, stores, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, config.RetrieverKeyword, r.Name())

	require.NoError(t, r.AddDocuments(ctx, "col", corpus))

	chunks, err := r.Retrieve(ctx, mustRequest(t, "revenue grew", "col"))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.LessOrEqual(t, len(chunks), 3)
	assert.Contains(t, chunks[0].Content, "revenue")
	for _, c := range chunks {
		assert.Equal(t, config.RetrieverKeyword, c.OriginRetriever)
	}
	// 降序
	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i-1].Score, chunks[i].Score)
	}
}

func TestBaselineVector_EndToEnd(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)

	r, err := New(config.RetrieverConfig{
		Type:      config.RetrieverBaselineVector,
		Splitter:  charSplitter(60),
		Retrieval: config.RetrievalParams{TopK: 2},
	}, stores, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, r.AddDocuments(ctx, "col", corpus))

	chunks, err := r.Retrieve(ctx, mustRequest(t, "annual revenue grew", "col"))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.LessOrEqual(t, len(chunks), 2)
	assert.Contains(t, strings.ToLower(chunks[0].Content), "revenue")
}

func TestRetrieve_UnknownCollectionPropagates(t *testing.T) {
	stores := testStores(t)
	r, err := New(config.RetrieverConfig{
		Type:      config.RetrieverKeyword,
		Splitter:  charSplitter(60),
		Retrieval: config.RetrievalParams{TopK: 3},
	}, stores, zap.NewNop())
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), mustRequest(t, "anything", "missing"))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUnknownCollection))
}

func TestSmallerChunksVector_RollUp(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)

	child := charSplitter(25)
	r, err := New(config.RetrieverConfig{
		Type:          config.RetrieverSmallerChunksVector,
		Splitter:      charSplitter(120),
		ChildSplitter: &child,
		Retrieval:     config.RetrievalParams{TopK: 2},
	}, stores, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, r.AddDocuments(ctx, "col", corpus))

	chunks, err := r.Retrieve(ctx, mustRequest(t, "social responsibility programs", "col"))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// 返回的是父块：内容长于子块上限
	assert.Contains(t, chunks[0].Content, "Social responsibility")
	assert.Equal(t, "report.md", chunks[0].Source)
	assert.Equal(t, config.RetrieverSmallerChunksVector, chunks[0].OriginRetriever)

	// 同一父块的多个子块命中只出现一次
	seen := make(map[types.ChunkID]bool)
	for _, c := range chunks {
		require.False(t, seen[c.Identity()], "duplicate parent %v", c.Identity())
		seen[c.Identity()] = true
	}
}

func TestMix_WeightedMerge(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)

	r, err := New(config.RetrieverConfig{
		Type:     config.RetrieverMix,
		Splitter: charSplitter(60),
		Retrieval: config.RetrievalParams{
			TopK:          3,
			VectorWeight:  0.5,
			KeywordWeight: 0.5,
		},
	}, stores, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, r.AddDocuments(ctx, "col", corpus))

	chunks, err := r.Retrieve(ctx, mustRequest(t, "revenue grew", "col"))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.LessOrEqual(t, len(chunks), 3)
	assert.Contains(t, strings.ToLower(chunks[0].Content), "revenue")
	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i-1].Score, chunks[i].Score)
	}
	// 身份唯一
	seen := make(map[types.ChunkID]bool)
	for _, c := range chunks {
		require.False(t, seen[c.Identity()])
		seen[c.Identity()] = true
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(config.RetrieverConfig{Type: "graph"}, testStores(t), zap.NewNop())
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUnknownRetriever))
}

func TestNew_MissingStores(t *testing.T) {
	tests := []struct {
		typ    string
		stores Stores
	}{
		{config.RetrieverKeyword, Stores{Vector: store.NewInMemoryVectorStore(wordEmbedder{}, nil)}},
		{config.RetrieverBaselineVector, Stores{Keyword: store.NewInMemoryKeywordStore(nil)}},
		{config.RetrieverSmallerChunksVector, Stores{Keyword: store.NewInMemoryKeywordStore(nil)}},
		{config.RetrieverMix, Stores{Vector: store.NewInMemoryVectorStore(wordEmbedder{}, nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			_, err := New(config.RetrieverConfig{
				Type:      tt.typ,
				Splitter:  charSplitter(60),
				Retrieval: config.RetrievalParams{TopK: 3},
			}, tt.stores, zap.NewNop())
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))
		})
	}
}

func TestNewAll_PreservesOrder(t *testing.T) {
	stores := testStores(t)
	cfgs := []config.RetrieverConfig{
		{Type: config.RetrieverKeyword, Splitter: charSplitter(60), Retrieval: config.RetrievalParams{TopK: 3}},
		{Type: config.RetrieverMix, Splitter: charSplitter(60), Retrieval: config.RetrievalParams{TopK: 3}},
	}

	rs, err := NewAll(cfgs, stores, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, config.RetrieverKeyword, rs[0].Name())
	assert.Equal(t, config.RetrieverMix, rs[1].Name())
}

func TestNewAll_FailsFastOnUnknown(t *testing.T) {
	cfgs := []config.RetrieverConfig{
		{Type: config.RetrieverKeyword, Splitter: charSplitter(60), Retrieval: config.RetrievalParams{TopK: 3}},
		{Type: "bm42", Splitter: charSplitter(60), Retrieval: config.RetrievalParams{TopK: 3}},
	}
	_, err := NewAll(cfgs, testStores(t), zap.NewNop())
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUnknownRetriever))
}
