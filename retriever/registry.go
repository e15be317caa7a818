// Config → Retriever 桥接层。
//
// 动态策略查找通过固定查找表解析：检索器类型是闭集，
// 未知类型在构造期立即失败，绝不推迟到请求期。

package retriever

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/splitter"
	"github.com/BaSui01/ragpipe/store"
	"github.com/BaSui01/ragpipe/types"
)

// Stores 聚合检索器可用的后端索引句柄。
// 向量索引与关键词索引是共享、长生命周期的协作者。
type Stores struct {
	Vector  store.VectorStore
	Keyword store.KeywordStore
}

type builderFunc func(cfg config.RetrieverConfig, stores Stores, logger *zap.Logger) (Retriever, error)

// builders 是检索器类型的固定查找表。
var builders = map[string]builderFunc{
	config.RetrieverKeyword:             buildKeyword,
	config.RetrieverBaselineVector:      buildBaselineVector,
	config.RetrieverSmallerChunksVector: buildSmallerChunks,
	config.RetrieverMix:                 buildMix,
}

// New 按配置构造检索器。未知类型、缺失的后端句柄、
// 非法分块参数都是构造期错误。
func New(cfg config.RetrieverConfig, stores Stores, logger *zap.Logger) (Retriever, error) {
	build, ok := builders[cfg.Type]
	if !ok {
		return nil, types.NewError(types.ErrUnknownRetriever,
			fmt.Sprintf("unknown retriever type %q", cfg.Type))
	}
	return build(cfg, stores, logger)
}

// NewAll 按配置顺序构造全部检索器，顺序即融合顺序。
func NewAll(cfgs []config.RetrieverConfig, stores Stores, logger *zap.Logger) ([]Retriever, error) {
	retrievers := make([]Retriever, 0, len(cfgs))
	for i, cfg := range cfgs {
		r, err := New(cfg, stores, logger)
		if err != nil {
			return nil, fmt.Errorf("retriever[%d]: %w", i, err)
		}
		retrievers = append(retrievers, r)
	}
	return retrievers, nil
}

func buildKeyword(cfg config.RetrieverConfig, stores Stores, logger *zap.Logger) (Retriever, error) {
	if stores.Keyword == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "keyword retriever requires a keyword store")
	}
	split, err := splitter.New(cfg.Splitter)
	if err != nil {
		return nil, err
	}
	return NewKeyword(stores.Keyword, split, cfg.Retrieval, logger), nil
}

func buildBaselineVector(cfg config.RetrieverConfig, stores Stores, logger *zap.Logger) (Retriever, error) {
	if stores.Vector == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "baseline_vector retriever requires a vector store")
	}
	split, err := splitter.New(cfg.Splitter)
	if err != nil {
		return nil, err
	}
	return NewBaselineVector(stores.Vector, split, cfg.Retrieval, logger), nil
}

func buildSmallerChunks(cfg config.RetrieverConfig, stores Stores, logger *zap.Logger) (Retriever, error) {
	if stores.Vector == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "smaller_chunks_vector retriever requires a vector store")
	}
	parentSplit, err := splitter.New(cfg.Splitter)
	if err != nil {
		return nil, err
	}

	childCfg := cfg.ChildSplitter
	if childCfg == nil {
		// 未声明子块粒度时取父块的 1/4
		derived := cfg.Splitter
		derived.ChunkSize = max(cfg.Splitter.ChunkSize/4, 1)
		derived.ChunkOverlap = min(cfg.Splitter.ChunkOverlap/4, derived.ChunkSize-1)
		childCfg = &derived
	}
	childSplit, err := splitter.New(*childCfg)
	if err != nil {
		return nil, err
	}
	return NewSmallerChunksVector(stores.Vector, parentSplit, childSplit, cfg.Retrieval, logger), nil
}

func buildMix(cfg config.RetrieverConfig, stores Stores, logger *zap.Logger) (Retriever, error) {
	if stores.Vector == nil || stores.Keyword == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "mix retriever requires both vector and keyword stores")
	}
	split, err := splitter.New(cfg.Splitter)
	if err != nil {
		return nil, err
	}
	return NewMix(stores.Vector, stores.Keyword, split, cfg.Retrieval, logger), nil
}
