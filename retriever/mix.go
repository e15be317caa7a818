package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/splitter"
	"github.com/BaSui01/ragpipe/store"
	"github.com/BaSui01/ragpipe/types"
)

// Mix 在单个策略内部融合向量与关键词信号。
//
// 两路分数量纲不同，先各自做 Min-Max 归一化再加权求和；
// 融合细节对外不透明，融合引擎把 Mix 当作普通策略处理。
type Mix struct {
	vectorStore  store.VectorStore
	keywordStore store.KeywordStore
	split        splitter.Splitter
	params       config.RetrievalParams
	logger       *zap.Logger
}

// NewMix 创建混合检索器。权重未配置时各取 0.5。
func NewMix(
	vectorStore store.VectorStore,
	keywordStore store.KeywordStore,
	split splitter.Splitter,
	params config.RetrievalParams,
	logger *zap.Logger,
) *Mix {
	if logger == nil {
		logger = zap.NewNop()
	}
	if params.VectorWeight == 0 && params.KeywordWeight == 0 {
		params.VectorWeight = 0.5
		params.KeywordWeight = 0.5
	}
	return &Mix{
		vectorStore:  vectorStore,
		keywordStore: keywordStore,
		split:        split,
		params:       params,
		logger:       logger,
	}
}

// Name 实现 Retriever。
func (r *Mix) Name() string { return config.RetrieverMix }

// Retrieve 实现 Retriever。任一信号源失败即整个策略失败：
// Mix 是一个策略，不在内部做降级。
func (r *Mix) Retrieve(ctx context.Context, req types.RetrievalRequest) ([]types.DocumentChunk, error) {
	ctx, cancel := withTimeout(ctx, r.params)
	defer cancel()

	vectorHits, err := r.vectorStore.Search(ctx, req.Collection, req.Query, r.params.TopK)
	if err != nil {
		return nil, fmt.Errorf("mix vector search: %w", err)
	}
	keywordHits, err := r.keywordStore.Search(ctx, req.Collection, req.Query, r.params.TopK)
	if err != nil {
		return nil, fmt.Errorf("mix keyword search: %w", err)
	}

	chunks := r.merge(vectorHits, keywordHits)

	if len(chunks) > r.params.TopK {
		chunks = chunks[:r.params.TopK]
	}
	r.logger.Debug("mix retrieval completed",
		zap.String("collection", req.Collection),
		zap.Int("vector_hits", len(vectorHits)),
		zap.Int("keyword_hits", len(keywordHits)),
		zap.Int("merged", len(chunks)))
	return chunks, nil
}

// merge 归一化两路分数并加权合并，按混合分数降序。
func (r *Mix) merge(vectorHits, keywordHits []store.ScoredDocument) []types.DocumentChunk {
	vectorScores := normalizeScores(vectorHits)
	keywordScores := normalizeScores(keywordHits)

	// 保留每个身份首次出现的文档体
	byID := make(map[types.ChunkID]store.Document)
	order := make([]types.ChunkID, 0, len(vectorHits)+len(keywordHits))
	record := func(hits []store.ScoredDocument) {
		for _, h := range hits {
			id := types.ChunkID{Source: h.Document.Source, ChunkIndex: h.Document.ChunkIndex}
			if _, ok := byID[id]; !ok {
				byID[id] = h.Document
				order = append(order, id)
			}
		}
	}
	record(vectorHits)
	record(keywordHits)

	chunks := make([]types.DocumentChunk, 0, len(order))
	for _, id := range order {
		doc := byID[id]
		hybrid := vectorScores[id]*r.params.VectorWeight + keywordScores[id]*r.params.KeywordWeight
		if r.params.MinScore > 0 && hybrid < r.params.MinScore {
			continue
		}
		chunks = append(chunks, types.DocumentChunk{
			Content:         doc.Content,
			Source:          doc.Source,
			ChunkIndex:      doc.ChunkIndex,
			Score:           hybrid,
			OriginRetriever: r.Name(),
		})
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	return chunks
}

// normalizeScores Min-Max 归一化（分数全相同则归为 1.0）。
func normalizeScores(hits []store.ScoredDocument) map[types.ChunkID]float64 {
	normalized := make(map[types.ChunkID]float64, len(hits))
	if len(hits) == 0 {
		return normalized
	}

	minScore := math.MaxFloat64
	maxScore := -math.MaxFloat64
	for _, h := range hits {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	scoreRange := maxScore - minScore
	for _, h := range hits {
		id := types.ChunkID{Source: h.Document.Source, ChunkIndex: h.Document.ChunkIndex}
		if scoreRange == 0 {
			normalized[id] = 1.0
		} else {
			normalized[id] = (h.Score - minScore) / scoreRange
		}
	}
	return normalized
}

// AddDocuments 实现 Retriever。同一批块同时写入两个索引。
func (r *Mix) AddDocuments(ctx context.Context, collection string, docs []SourceDocument) error {
	stored := splitToStoreDocs(r.split, docs)
	if len(stored) == 0 {
		return nil
	}
	if err := r.vectorStore.AddDocuments(ctx, collection, stored); err != nil {
		return fmt.Errorf("mix add to vector store: %w", err)
	}
	if err := r.keywordStore.AddDocuments(ctx, collection, stored); err != nil {
		return fmt.Errorf("mix add to keyword store: %w", err)
	}
	return nil
}
