package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/types"
)

// ====== 内存向量存储（用于测试和小规模应用）======

// InMemoryVectorStore 内存向量存储，余弦相似度检索。
type InMemoryVectorStore struct {
	embedder Embedder

	mu          sync.RWMutex
	collections map[string][]embeddedDoc

	logger *zap.Logger
}

type embeddedDoc struct {
	doc       Document
	embedding []float64
}

// NewInMemoryVectorStore 创建内存向量存储。
func NewInMemoryVectorStore(embedder Embedder, logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		embedder:    embedder,
		collections: make(map[string][]embeddedDoc),
		logger:      logger,
	}
}

// AddDocuments 嵌入并写入文档。首次写入即创建集合。
func (s *InMemoryVectorStore) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	embedded := make([]embeddedDoc, 0, len(docs))
	for _, doc := range docs {
		vec, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		embedded = append(embedded, embeddedDoc{doc: doc, embedding: vec})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], embedded...)

	s.logger.Info("documents added to vector store",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
		zap.Int("total", len(s.collections[collection])))
	return nil
}

// Search 余弦相似度检索。
func (s *InMemoryVectorStore) Search(ctx context.Context, collection, query string, topK int) ([]ScoredDocument, error) {
	s.mu.RLock()
	docs, ok := s.collections[collection]
	s.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrUnknownCollection,
			fmt.Sprintf("collection %q not found", collection))
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, types.WrapError(types.ErrStoreUnavailable, "embed query", err)
	}

	results := make([]ScoredDocument, 0, len(docs))
	for _, d := range docs {
		results = append(results, ScoredDocument{
			Document: d.doc,
			Score:    cosineSimilarity(queryVec, d.embedding),
		})
	}

	sortByScore(results)
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// cosineSimilarity 计算余弦相似度。
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ====== 内存关键词存储（BM25）======

// InMemoryKeywordStore 内存关键词存储，BM25 打分。
type InMemoryKeywordStore struct {
	mu          sync.RWMutex
	collections map[string][]Document

	// BM25 参数
	k1 float64
	b  float64

	logger *zap.Logger
}

// NewInMemoryKeywordStore 创建内存关键词存储。
func NewInMemoryKeywordStore(logger *zap.Logger) *InMemoryKeywordStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryKeywordStore{
		collections: make(map[string][]Document),
		k1:          1.5,
		b:           0.75,
		logger:      logger,
	}
}

// AddDocuments 写入文档。
func (s *InMemoryKeywordStore) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], docs...)

	s.logger.Info("documents added to keyword store",
		zap.String("collection", collection),
		zap.Int("count", len(docs)))
	return nil
}

// Search BM25 检索，零分命中不返回。
func (s *InMemoryKeywordStore) Search(ctx context.Context, collection, query string, topK int) ([]ScoredDocument, error) {
	s.mu.RLock()
	docs, ok := s.collections[collection]
	s.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrUnknownCollection,
			fmt.Sprintf("collection %q not found", collection))
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 || len(docs) == 0 {
		return []ScoredDocument{}, nil
	}

	// 文档长度与 IDF 统计
	docTerms := make([][]string, len(docs))
	totalLen := 0
	termDocCount := make(map[string]int)
	for i, doc := range docs {
		terms := tokenize(doc.Content)
		docTerms[i] = terms
		totalLen += len(terms)

		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			if !seen[term] {
				termDocCount[term]++
				seen[term] = true
			}
		}
	}
	avgLen := float64(totalLen) / float64(len(docs))

	n := float64(len(docs))
	idf := make(map[string]float64, len(termDocCount))
	for term, df := range termDocCount {
		idf[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}

	results := make([]ScoredDocument, 0, len(docs))
	for i, doc := range docs {
		termFreq := make(map[string]int, len(docTerms[i]))
		for _, term := range docTerms[i] {
			termFreq[term]++
		}

		score := 0.0
		docLen := float64(len(docTerms[i]))
		for _, qTerm := range queryTerms {
			tf, ok := termFreq[qTerm]
			if !ok {
				continue
			}
			numerator := float64(tf) * (s.k1 + 1.0)
			denominator := float64(tf) + s.k1*(1.0-s.b+s.b*(docLen/avgLen))
			score += idf[qTerm] * (numerator / denominator)
		}

		if score > 0 {
			results = append(results, ScoredDocument{Document: doc, Score: score})
		}
	}

	sortByScore(results)
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// tokenize 分词：转小写按空白分割并去掉首尾标点，CJK 按单字切分。
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if f == "" {
			continue
		}
		cjk := false
		for _, r := range f {
			if r >= 0x4E00 && r <= 0x9FFF {
				cjk = true
				break
			}
		}
		if !cjk {
			terms = append(terms, f)
			continue
		}
		for _, r := range f {
			terms = append(terms, string(r))
		}
	}
	return terms
}
