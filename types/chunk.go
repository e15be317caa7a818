package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DocumentChunk 是检索与上下文组装的原子单位：源文档中的一段连续文本。
type DocumentChunk struct {
	// Content 块文本内容
	Content string `json:"content"`
	// Source 源文档标识（文件路径 / URL）
	Source string `json:"source"`
	// ChunkIndex 该块在源文档中的序号，用于连贯性排序
	ChunkIndex int `json:"chunk_index"`
	// Score 检索相关性分数。仅在同一检索器的输出内可比，
	// 不同策略使用不同量纲，跨检索器比较没有意义。
	Score float64 `json:"score"`
	// OriginRetriever 产出该块的检索策略名，用于调试与观测
	OriginRetriever string `json:"origin_retriever,omitempty"`
}

// ChunkID 是块的去重标识。两个块只要 (Source, ChunkIndex) 相同，
// 即视为同一证据单元，即使由不同策略以不同分数召回。
type ChunkID struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
}

// Identity 返回块的去重标识。
func (c DocumentChunk) Identity() ChunkID {
	return ChunkID{Source: c.Source, ChunkIndex: c.ChunkIndex}
}

func (id ChunkID) String() string {
	return fmt.Sprintf("%s#%d", id.Source, id.ChunkIndex)
}

// RetrievalRequest 是一次检索请求，构造后不可变，每次调用构造一次。
type RetrievalRequest struct {
	// ID 请求追踪标识
	ID string `json:"id"`
	// Query 查询文本，非空
	Query string `json:"query"`
	// Collection 目标索引/集合标识
	Collection string `json:"collection"`
}

// NewRetrievalRequest 构造检索请求并校验查询非空。
func NewRetrievalRequest(query, collection string) (RetrievalRequest, error) {
	if strings.TrimSpace(query) == "" {
		return RetrievalRequest{}, NewError(ErrEmptyQuery, "query must not be empty")
	}
	return RetrievalRequest{
		ID:         uuid.NewString(),
		Query:      query,
		Collection: collection,
	}, nil
}
