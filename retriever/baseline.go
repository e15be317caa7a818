package retriever

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/splitter"
	"github.com/BaSui01/ragpipe/store"
	"github.com/BaSui01/ragpipe/types"
)

// BaselineVector 整块嵌入的近邻检索策略。
type BaselineVector struct {
	vectorStore store.VectorStore
	split       splitter.Splitter
	params      config.RetrievalParams
	logger      *zap.Logger
}

// NewBaselineVector 创建基线向量检索器。
func NewBaselineVector(vectorStore store.VectorStore, split splitter.Splitter, params config.RetrievalParams, logger *zap.Logger) *BaselineVector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaselineVector{
		vectorStore: vectorStore,
		split:       split,
		params:      params,
		logger:      logger,
	}
}

// Name 实现 Retriever。
func (r *BaselineVector) Name() string { return config.RetrieverBaselineVector }

// Retrieve 实现 Retriever。
func (r *BaselineVector) Retrieve(ctx context.Context, req types.RetrievalRequest) ([]types.DocumentChunk, error) {
	ctx, cancel := withTimeout(ctx, r.params)
	defer cancel()

	results, err := r.vectorStore.Search(ctx, req.Collection, req.Query, r.params.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	chunks := toChunks(results, r.Name(), r.params.MinScore)
	r.logger.Debug("baseline vector retrieval completed",
		zap.String("collection", req.Collection),
		zap.Int("hits", len(chunks)))
	return chunks, nil
}

// AddDocuments 实现 Retriever。
func (r *BaselineVector) AddDocuments(ctx context.Context, collection string, docs []SourceDocument) error {
	stored := splitToStoreDocs(r.split, docs)
	if len(stored) == 0 {
		return nil
	}
	return r.vectorStore.AddDocuments(ctx, collection, stored)
}
