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

// Keyword 词法检索策略，直连关键词索引。
type Keyword struct {
	keywordStore store.KeywordStore
	split        splitter.Splitter
	params       config.RetrievalParams
	logger       *zap.Logger
}

// NewKeyword 创建关键词检索器。
func NewKeyword(keywordStore store.KeywordStore, split splitter.Splitter, params config.RetrievalParams, logger *zap.Logger) *Keyword {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Keyword{
		keywordStore: keywordStore,
		split:        split,
		params:       params,
		logger:       logger,
	}
}

// Name 实现 Retriever。
func (r *Keyword) Name() string { return config.RetrieverKeyword }

// Retrieve 实现 Retriever。
func (r *Keyword) Retrieve(ctx context.Context, req types.RetrievalRequest) ([]types.DocumentChunk, error) {
	ctx, cancel := withTimeout(ctx, r.params)
	defer cancel()

	results, err := r.keywordStore.Search(ctx, req.Collection, req.Query, r.params.TopK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	chunks := toChunks(results, r.Name(), r.params.MinScore)
	r.logger.Debug("keyword retrieval completed",
		zap.String("collection", req.Collection),
		zap.Int("hits", len(chunks)))
	return chunks, nil
}

// AddDocuments 实现 Retriever。
func (r *Keyword) AddDocuments(ctx context.Context, collection string, docs []SourceDocument) error {
	stored := splitToStoreDocs(r.split, docs)
	if len(stored) == 0 {
		return nil
	}
	return r.keywordStore.AddDocuments(ctx, collection, stored)
}

// splitToStoreDocs 用给定分块器切分源文档并编号。
func splitToStoreDocs(split splitter.Splitter, docs []SourceDocument) []store.Document {
	var stored []store.Document
	for _, doc := range docs {
		for i, chunk := range split.Split(doc.Content) {
			stored = append(stored, store.Document{
				ID:         chunkID(doc.Source, i),
				Content:    chunk,
				Source:     doc.Source,
				ChunkIndex: i,
			})
		}
	}
	return stored
}
