package retriever

import (
	"context"
	"fmt"

	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/store"
	"github.com/BaSui01/ragpipe/types"
)

// SourceDocument 是待索引的原始文档（分块前）。
type SourceDocument struct {
	// Source 源标识（文件路径 / URL）
	Source string `json:"source"`
	// Content 全文
	Content string `json:"content"`
}

// Retriever 是单个检索策略。
type Retriever interface {
	// Name 返回策略名，记入 DocumentChunk.OriginRetriever
	Name() string

	// Retrieve 对指定集合执行检索，按分数降序返回至多 top_k 个块。
	// 未知集合的错误来自后端索引，原样上抛。只读，无其他副作用。
	Retrieve(ctx context.Context, req types.RetrievalRequest) ([]types.DocumentChunk, error)

	// AddDocuments 按本策略的分块参数切分并索引文档。
	AddDocuments(ctx context.Context, collection string, docs []SourceDocument) error
}

// withTimeout 应用单检索器超时（0 不设置）。
func withTimeout(ctx context.Context, params config.RetrievalParams) (context.Context, context.CancelFunc) {
	if params.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, params.Timeout)
}

// toChunks 把存储层命中转换为 DocumentChunk 并打上策略名。
func toChunks(results []store.ScoredDocument, origin string, minScore float64) []types.DocumentChunk {
	chunks := make([]types.DocumentChunk, 0, len(results))
	for _, r := range results {
		if minScore > 0 && r.Score < minScore {
			continue
		}
		chunks = append(chunks, types.DocumentChunk{
			Content:         r.Document.Content,
			Source:          r.Document.Source,
			ChunkIndex:      r.Document.ChunkIndex,
			Score:           r.Score,
			OriginRetriever: origin,
		})
	}
	return chunks
}

// chunkID 生成存储层主键。
func chunkID(source string, index int) string {
	return fmt.Sprintf("%s#%d", source, index)
}
