package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/internal/tlsutil"
	"github.com/BaSui01/ragpipe/types"
)

// MilvusConfig 配置 Milvus 向量存储客户端。
type MilvusConfig struct {
	// 连接设置
	Host    string `json:"host"`
	Port    int    `json:"port"`
	BaseURL string `json:"base_url,omitempty"` // 设置后覆盖 host:port

	// 认证
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"` // Zilliz Cloud

	// Schema 字段名
	Database      string `json:"database,omitempty"`       // 默认 "default"
	PrimaryField  string `json:"primary_field,omitempty"`  // 默认 "id"
	VectorField   string `json:"vector_field,omitempty"`   // 默认 "vector"
	ContentField  string `json:"content_field,omitempty"`  // 默认 "content"
	SourceField   string `json:"source_field,omitempty"`   // 默认 "source"
	IndexField    string `json:"index_field,omitempty"`    // 默认 "chunk_index"
	MetadataField string `json:"metadata_field,omitempty"` // 默认 "metadata"

	Timeout time.Duration `json:"timeout,omitempty"`
}

// MilvusStore 通过 Milvus REST API (v2) 实现 VectorStore。
// 集合名逐调用传入，一个客户端可服务多个集合。
type MilvusStore struct {
	cfg      MilvusConfig
	baseURL  string
	client   *http.Client
	embedder Embedder
	logger   *zap.Logger
}

// NewMilvusStore 创建 Milvus 客户端。
func NewMilvusStore(cfg MilvusConfig, embedder Embedder, logger *zap.Logger) *MilvusStore {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 19530
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.PrimaryField == "" {
		cfg.PrimaryField = "id"
	}
	if cfg.VectorField == "" {
		cfg.VectorField = "vector"
	}
	if cfg.ContentField == "" {
		cfg.ContentField = "content"
	}
	if cfg.SourceField == "" {
		cfg.SourceField = "source"
	}
	if cfg.IndexField == "" {
		cfg.IndexField = "chunk_index"
	}
	if cfg.MetadataField == "" {
		cfg.MetadataField = "metadata"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &MilvusStore{
		cfg:      cfg,
		baseURL:  baseURL,
		client:   tlsutil.SecureHTTPClient(cfg.Timeout),
		embedder: embedder,
		logger:   logger,
	}
}

// AddDocuments 嵌入并插入文档。
func (s *MilvusStore) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		vec, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return types.WrapError(types.ErrStoreUnavailable,
				fmt.Sprintf("embed document %s", doc.ID), err)
		}
		rows = append(rows, map[string]any{
			s.cfg.PrimaryField:  doc.ID,
			s.cfg.VectorField:   vec,
			s.cfg.ContentField:  doc.Content,
			s.cfg.SourceField:   doc.Source,
			s.cfg.IndexField:    doc.ChunkIndex,
			s.cfg.MetadataField: doc.Metadata,
		})
	}

	req := map[string]any{
		"dbName":         s.cfg.Database,
		"collectionName": collection,
		"data":           rows,
	}

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := s.doJSON(ctx, "/v2/vectordb/entities/insert", collection, req, &resp); err != nil {
		return err
	}

	s.logger.Debug("milvus insert completed",
		zap.String("collection", collection),
		zap.Int("count", len(rows)))
	return nil
}

// Search 嵌入查询并做近邻检索。
func (s *MilvusStore) Search(ctx context.Context, collection, query string, topK int) ([]ScoredDocument, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, types.WrapError(types.ErrStoreUnavailable, "embed query", err)
	}

	req := map[string]any{
		"dbName":         s.cfg.Database,
		"collectionName": collection,
		"data":           [][]float64{queryVec},
		"annsField":      s.cfg.VectorField,
		"limit":          topK,
		"outputFields": []string{
			s.cfg.PrimaryField, s.cfg.ContentField,
			s.cfg.SourceField, s.cfg.IndexField, s.cfg.MetadataField,
		},
	}

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    [][]struct {
			ID       string         `json:"id"`
			Distance float64        `json:"distance"`
			Entity   map[string]any `json:"entity"`
		} `json:"data"`
	}
	if err := s.doJSON(ctx, "/v2/vectordb/entities/search", collection, req, &resp); err != nil {
		return nil, err
	}

	results := make([]ScoredDocument, 0)
	if len(resp.Data) > 0 {
		for _, hit := range resp.Data[0] {
			doc := Document{ID: hit.ID}
			if hit.Entity != nil {
				if content, ok := hit.Entity[s.cfg.ContentField].(string); ok {
					doc.Content = content
				}
				if source, ok := hit.Entity[s.cfg.SourceField].(string); ok {
					doc.Source = source
				}
				if idx, ok := hit.Entity[s.cfg.IndexField].(float64); ok {
					doc.ChunkIndex = int(idx)
				}
				if metadata, ok := hit.Entity[s.cfg.MetadataField].(map[string]any); ok {
					doc.Metadata = metadata
				}
			}
			results = append(results, ScoredDocument{Document: doc, Score: hit.Distance})
		}
	}
	return results, nil
}

// doJSON 执行 JSON HTTP 请求并解码响应。
// Milvus REST API 即使出错也返回 200，必须检查响应体 code。
func (s *MilvusStore) doJSON(ctx context.Context, path, collection string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	} else if s.cfg.Username != "" {
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return types.WrapError(types.ErrStoreUnavailable, "milvus request", err).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.WrapError(types.ErrStoreUnavailable, "read milvus response", err)
	}

	var baseResp struct {
		Code    int    `json:"code"`
		Message string `json:"message,omitempty"`
	}
	if err := json.Unmarshal(respBody, &baseResp); err == nil && baseResp.Code != 0 {
		// 集合不存在是调用方错误，原样上抛，不吞掉
		if strings.Contains(baseResp.Message, "collection not found") ||
			strings.Contains(baseResp.Message, "can't find collection") {
			return types.NewError(types.ErrUnknownCollection,
				fmt.Sprintf("milvus collection %q not found", collection))
		}
		return types.NewError(types.ErrStoreUnavailable,
			fmt.Sprintf("milvus error: code=%d message=%s", baseResp.Code, baseResp.Message))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewError(types.ErrStoreUnavailable,
			fmt.Sprintf("milvus request failed: path=%s status=%d body=%s",
				path, resp.StatusCode, string(respBody))).WithRetryable(resp.StatusCode >= 500)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode milvus response: %w", err)
		}
	}
	return nil
}
