package fusion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/retriever"
	"github.com/BaSui01/ragpipe/types"
)

// fakeRetriever 返回固定块序列，可注入延迟与失败。
type fakeRetriever struct {
	name   string
	chunks []types.DocumentChunk
	err    error
	delay  time.Duration
}

func (f *fakeRetriever) Name() string { return f.name }

func (f *fakeRetriever) Retrieve(ctx context.Context, _ types.RetrievalRequest) ([]types.DocumentChunk, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.DocumentChunk, len(f.chunks))
	copy(out, f.chunks)
	for i := range out {
		out[i].OriginRetriever = f.name
	}
	return out, nil
}

func (f *fakeRetriever) AddDocuments(context.Context, string, []retriever.SourceDocument) error {
	return nil
}

func chunk(source string, idx int, score float64) types.DocumentChunk {
	return types.DocumentChunk{
		Content:    fmt.Sprintf("%s-%d", source, idx),
		Source:     source,
		ChunkIndex: idx,
		Score:      score,
	}
}

func fuseReq(t require.TestingT) types.RetrievalRequest {
	req, err := types.NewRetrievalRequest("q", "col")
	require.NoError(t, err)
	return req
}

func TestFuse_ConfigOrderNotCompletionOrder(t *testing.T) {
	// 第一个检索器最慢：完成顺序与配置顺序相反
	slow := &fakeRetriever{name: "first", delay: 50 * time.Millisecond,
		chunks: []types.DocumentChunk{chunk("a.md", 0, 0.9), chunk("a.md", 1, 0.8)}}
	fast := &fakeRetriever{name: "second",
		chunks: []types.DocumentChunk{chunk("b.md", 0, 12.5)}}

	e := NewEnsemble([]retriever.Retriever{slow, fast}, config.DegradeGracefully, zap.NewNop())
	fused, err := e.Fuse(context.Background(), fuseReq(t))
	require.NoError(t, err)

	require.Len(t, fused, 3)
	assert.Equal(t, "a.md", fused[0].Source)
	assert.Equal(t, 0, fused[0].ChunkIndex)
	assert.Equal(t, 1, fused[1].ChunkIndex)
	assert.Equal(t, "b.md", fused[2].Source)
	assert.Equal(t, "first", fused[0].OriginRetriever)
	assert.Equal(t, "second", fused[2].OriginRetriever)
}

func TestFuse_DedupKeepsFirstSeenInConfigOrder(t *testing.T) {
	r1 := &fakeRetriever{name: "keyword",
		chunks: []types.DocumentChunk{chunk("a.md", 0, 3.1), chunk("b.md", 0, 2.0)}}
	// 同一身份 (a.md, 0) 以不同分数再次出现
	r2 := &fakeRetriever{name: "mix",
		chunks: []types.DocumentChunk{chunk("a.md", 0, 0.99), chunk("c.md", 2, 0.5)}}

	e := NewEnsemble([]retriever.Retriever{r1, r2}, config.DegradeGracefully, zap.NewNop())
	fused, err := e.Fuse(context.Background(), fuseReq(t))
	require.NoError(t, err)

	require.Len(t, fused, 3)
	// 保留首见实例：来自 keyword，分数 3.1
	assert.Equal(t, "keyword", fused[0].OriginRetriever)
	assert.InDelta(t, 3.1, fused[0].Score, 1e-9)
}

func TestFuse_GracefulDegradation(t *testing.T) {
	r1 := &fakeRetriever{name: "keyword", chunks: []types.DocumentChunk{chunk("a.md", 0, 1)}}
	r2 := &fakeRetriever{name: "vector", err: errors.New("index unreachable")}
	r3 := &fakeRetriever{name: "mix", chunks: []types.DocumentChunk{chunk("b.md", 0, 1)}}

	var dropped []string
	e := NewEnsemble(
		[]retriever.Retriever{r1, r2, r3},
		config.DegradeGracefully,
		zap.NewNop(),
		WithDroppedFunc(func(name string, _ error) { dropped = append(dropped, name) }),
	)

	fused, err := e.Fuse(context.Background(), fuseReq(t))
	require.NoError(t, err)

	// 融合结果等于其余两路的去重结果
	require.Len(t, fused, 2)
	assert.Equal(t, "a.md", fused[0].Source)
	assert.Equal(t, "b.md", fused[1].Source)
	assert.Equal(t, []string{"vector"}, dropped)
}

func TestFuse_RequireAllPropagates(t *testing.T) {
	r1 := &fakeRetriever{name: "keyword", chunks: []types.DocumentChunk{chunk("a.md", 0, 1)}}
	r2 := &fakeRetriever{name: "vector", err: errors.New("index unreachable")}

	e := NewEnsemble([]retriever.Retriever{r1, r2}, config.RequireAll, zap.NewNop())
	_, err := e.Fuse(context.Background(), fuseReq(t))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrRetrieverFailed))
	assert.Equal(t, "vector", types.AsError(err).Retriever)
}

func TestFuse_CancellationNotSwallowed(t *testing.T) {
	slow := &fakeRetriever{name: "slow", delay: time.Second,
		chunks: []types.DocumentChunk{chunk("a.md", 0, 1)}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	e := NewEnsemble([]retriever.Retriever{slow}, config.DegradeGracefully, zap.NewNop())
	_, err := e.Fuse(ctx, fuseReq(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuse_EmptyRetrieverSet(t *testing.T) {
	e := NewEnsemble(nil, config.DegradeGracefully, zap.NewNop())
	_, err := e.Fuse(context.Background(), fuseReq(t))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))
}

// 性质：融合两次得到相同的输出（成员与顺序）。
func TestFuse_DedupIdempotence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gen := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) types.DocumentChunk {
			return chunk(
				rapid.SampledFrom([]string{"a.md", "b.md", "c.md"}).Draw(t, "source"),
				rapid.IntRange(0, 5).Draw(t, "idx"),
				rapid.Float64Range(0, 10).Draw(t, "score"),
			)
		}), 0, 12)

		r1 := &fakeRetriever{name: "r1", chunks: gen.Draw(t, "chunks1")}
		r2 := &fakeRetriever{name: "r2", chunks: gen.Draw(t, "chunks2")}

		e := NewEnsemble([]retriever.Retriever{r1, r2}, config.DegradeGracefully, zap.NewNop())

		first, err := e.Fuse(context.Background(), fuseReq(t))
		require.NoError(t, err)
		second, err := e.Fuse(context.Background(), fuseReq(t))
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})
}

// 性质：融合输出中不存在两个块共享 (source, chunk_index)。
func TestFuse_IdentityUniqueness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gen := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) types.DocumentChunk {
			return chunk(
				rapid.SampledFrom([]string{"x", "y"}).Draw(t, "source"),
				rapid.IntRange(0, 3).Draw(t, "idx"),
				rapid.Float64Range(0, 1).Draw(t, "score"),
			)
		}), 0, 20)

		retrievers := []retriever.Retriever{
			&fakeRetriever{name: "r1", chunks: gen.Draw(t, "c1")},
			&fakeRetriever{name: "r2", chunks: gen.Draw(t, "c2")},
			&fakeRetriever{name: "r3", chunks: gen.Draw(t, "c3")},
		}

		e := NewEnsemble(retrievers, config.DegradeGracefully, zap.NewNop())
		fused, err := e.Fuse(context.Background(), fuseReq(t))
		require.NoError(t, err)

		seen := make(map[types.ChunkID]bool)
		for _, c := range fused {
			require.False(t, seen[c.Identity()], "duplicate identity %v", c.Identity())
			seen[c.Identity()] = true
		}
	})
}
