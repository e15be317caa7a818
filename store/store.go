package store

import (
	"context"
	"sort"
)

// Document 是索引中的一条文档块记录。
type Document struct {
	// ID 存储层主键
	ID string `json:"id"`
	// Content 块文本
	Content string `json:"content"`
	// Source 源文档标识
	Source string `json:"source"`
	// ChunkIndex 块在源文档中的序号
	ChunkIndex int `json:"chunk_index"`
	// Metadata 附加元数据（smaller_chunks 策略存放父块信息）
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScoredDocument 是一次检索命中。
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Embedder 计算文本嵌入。嵌入是存储实现的内部协作者，
// 管线核心不感知向量。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorStore 向量索引客户端。
type VectorStore interface {
	// AddDocuments 将文档块写入指定集合（嵌入计算在实现内部完成）
	AddDocuments(ctx context.Context, collection string, docs []Document) error

	// Search 在集合内做近邻检索，按分数降序返回至多 topK 条。
	// 未知集合返回 types.ErrUnknownCollection 类错误，不吞掉。
	Search(ctx context.Context, collection, query string, topK int) ([]ScoredDocument, error)
}

// KeywordStore 关键词/倒排索引客户端。
type KeywordStore interface {
	AddDocuments(ctx context.Context, collection string, docs []Document) error
	Search(ctx context.Context, collection, query string, topK int) ([]ScoredDocument, error)
}

// sortByScore 按分数降序稳定排序。
func sortByScore(results []ScoredDocument) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
