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

// 子块元数据键。父块信息随子块入库，检索时据此上卷。
const (
	metaParentIndex   = "parent_index"
	metaParentContent = "parent_content"
)

// SmallerChunksVector 子块粒度的近邻检索策略。
//
// 索引时先按父块粒度切分，再把每个父块切成更小的子块入库；
// 检索在子块上做近邻匹配（更细的语义定位），命中后上卷到父块
// 返回（更完整的上下文）。同一父块的多个子块命中去重，
// 父块分数取子块最高分，顺序保持子块命中顺序（最佳优先）。
type SmallerChunksVector struct {
	vectorStore store.VectorStore
	parentSplit splitter.Splitter
	childSplit  splitter.Splitter
	params      config.RetrievalParams
	logger      *zap.Logger
}

// NewSmallerChunksVector 创建子块向量检索器。
func NewSmallerChunksVector(
	vectorStore store.VectorStore,
	parentSplit, childSplit splitter.Splitter,
	params config.RetrievalParams,
	logger *zap.Logger,
) *SmallerChunksVector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SmallerChunksVector{
		vectorStore: vectorStore,
		parentSplit: parentSplit,
		childSplit:  childSplit,
		params:      params,
		logger:      logger,
	}
}

// Name 实现 Retriever。
func (r *SmallerChunksVector) Name() string { return config.RetrieverSmallerChunksVector }

// Retrieve 实现 Retriever。子块命中上卷到父块。
func (r *SmallerChunksVector) Retrieve(ctx context.Context, req types.RetrievalRequest) ([]types.DocumentChunk, error) {
	ctx, cancel := withTimeout(ctx, r.params)
	defer cancel()

	// 多个子块可能指向同一父块，放大召回量再上卷去重
	fetchK := r.params.TopK * 4
	results, err := r.vectorStore.Search(ctx, req.Collection, req.Query, fetchK)
	if err != nil {
		return nil, fmt.Errorf("smaller-chunks vector search: %w", err)
	}

	seen := make(map[types.ChunkID]bool)
	chunks := make([]types.DocumentChunk, 0, r.params.TopK)
	for _, hit := range results {
		if r.params.MinScore > 0 && hit.Score < r.params.MinScore {
			continue
		}

		parent, ok := rollUp(hit)
		if !ok {
			r.logger.Warn("child chunk missing parent metadata, skipping",
				zap.String("id", hit.Document.ID))
			continue
		}

		id := parent.Identity()
		if seen[id] {
			continue
		}
		seen[id] = true

		parent.OriginRetriever = r.Name()
		chunks = append(chunks, parent)
		if len(chunks) >= r.params.TopK {
			break
		}
	}

	r.logger.Debug("smaller-chunks retrieval completed",
		zap.String("collection", req.Collection),
		zap.Int("child_hits", len(results)),
		zap.Int("parents", len(chunks)))
	return chunks, nil
}

// rollUp 从子块命中还原父块。父块分数继承子块分数（同父多子时
// 首个命中即最高分，由存储层降序保证）。
func rollUp(hit store.ScoredDocument) (types.DocumentChunk, bool) {
	meta := hit.Document.Metadata
	if meta == nil {
		return types.DocumentChunk{}, false
	}
	content, ok := meta[metaParentContent].(string)
	if !ok {
		return types.DocumentChunk{}, false
	}

	index := 0
	switch v := meta[metaParentIndex].(type) {
	case int:
		index = v
	case float64: // JSON 反序列化路径
		index = int(v)
	default:
		return types.DocumentChunk{}, false
	}

	return types.DocumentChunk{
		Content:    content,
		Source:     hit.Document.Source,
		ChunkIndex: index,
		Score:      hit.Score,
	}, true
}

// AddDocuments 实现 Retriever。父块切子块后入库，父块内容随子块元数据存储。
func (r *SmallerChunksVector) AddDocuments(ctx context.Context, collection string, docs []SourceDocument) error {
	var stored []store.Document
	for _, doc := range docs {
		for pi, parent := range r.parentSplit.Split(doc.Content) {
			for ci, child := range r.childSplit.Split(parent) {
				stored = append(stored, store.Document{
					ID:         fmt.Sprintf("%s#%d.%d", doc.Source, pi, ci),
					Content:    child,
					Source:     doc.Source,
					ChunkIndex: ci,
					Metadata: map[string]any{
						metaParentIndex:   pi,
						metaParentContent: parent,
					},
				})
			}
		}
	}
	if len(stored) == 0 {
		return nil
	}
	return r.vectorStore.AddDocuments(ctx, collection, stored)
}
