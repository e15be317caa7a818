package fusion

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/retriever"
	"github.com/BaSui01/ragpipe/types"
)

// DroppedFunc 在优雅降级丢弃某个检索器的贡献时回调（观测用途）。
type DroppedFunc func(retrieverName string, err error)

// Ensemble 融合引擎。
type Ensemble struct {
	retrievers []retriever.Retriever
	policy     config.FailurePolicy
	onDropped  DroppedFunc
	logger     *zap.Logger
}

// Option 配置 Ensemble 的可选参数。
type Option func(*Ensemble)

// WithDroppedFunc 注册降级回调。
func WithDroppedFunc(fn DroppedFunc) Option {
	return func(e *Ensemble) { e.onDropped = fn }
}

// NewEnsemble 创建融合引擎。retrievers 的顺序即合并顺序。
func NewEnsemble(retrievers []retriever.Retriever, policy config.FailurePolicy, logger *zap.Logger, opts ...Option) *Ensemble {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = config.DegradeGracefully
	}
	e := &Ensemble{
		retrievers: retrievers,
		policy:     policy,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fuse 并行执行全部检索器并合并结果。
//
// 结果槽按配置位置索引，合并顺序与完成顺序无关。
// 去重保留配置顺序下首次出现的实例。
func (e *Ensemble) Fuse(ctx context.Context, req types.RetrievalRequest) ([]types.DocumentChunk, error) {
	if len(e.retrievers) == 0 {
		return nil, types.NewError(types.ErrConfigInvalid, "ensemble has no retrievers")
	}

	results := make([][]types.DocumentChunk, len(e.retrievers))
	failures := make([]error, len(e.retrievers))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range e.retrievers {
		i, r := i, r
		g.Go(func() error {
			chunks, err := r.Retrieve(gctx, req)
			if err != nil {
				err = types.WrapError(types.ErrRetrieverFailed, "retrieve", err).WithRetriever(r.Name())
				if e.policy == config.RequireAll {
					// 触发组取消，其余在途调用协同终止
					return err
				}
				failures[i] = err
				return nil
			}
			results[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fuse: %w", err)
	}

	// 调用方取消不得被降级吞掉：部分结果不能当完整结果返回
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, err := range failures {
		if err == nil {
			continue
		}
		name := e.retrievers[i].Name()
		e.logger.Warn("retriever failed, dropping its contribution",
			zap.String("retriever", name),
			zap.Error(err))
		if e.onDropped != nil {
			e.onDropped(name, err)
		}
	}

	return dedup(results), nil
}

// dedup 按配置顺序拼接并去重，保留首次出现的实例。
func dedup(results [][]types.DocumentChunk) []types.DocumentChunk {
	total := 0
	for _, r := range results {
		total += len(r)
	}

	seen := make(map[types.ChunkID]bool, total)
	fused := make([]types.DocumentChunk, 0, total)
	for _, chunks := range results {
		for _, c := range chunks {
			id := c.Identity()
			if seen[id] {
				continue
			}
			seen[id] = true
			fused = append(fused, c)
		}
	}
	return fused
}
