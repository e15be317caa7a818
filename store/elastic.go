package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/internal/tlsutil"
	"github.com/BaSui01/ragpipe/types"
)

// ElasticConfig 配置 Elasticsearch 关键词存储客户端。
type ElasticConfig struct {
	// URL Elasticsearch 地址，如 http://localhost:9200
	URL string `json:"url"`

	// 认证
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	APIKey   string `json:"api_key,omitempty"`

	// ContentField 全文检索字段名，默认 "content"
	ContentField string `json:"content_field,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

// ElasticStore 通过 Elasticsearch REST API 实现 KeywordStore。
// 集合名即索引名，逐调用传入。
type ElasticStore struct {
	cfg     ElasticConfig
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewElasticStore 创建 Elasticsearch 客户端。
func NewElasticStore(cfg ElasticConfig, logger *zap.Logger) *ElasticStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:9200"
	}
	if cfg.ContentField == "" {
		cfg.ContentField = "content"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &ElasticStore{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		logger:  logger,
	}
}

type elasticSource struct {
	Content    string         `json:"content"`
	Source     string         `json:"source"`
	ChunkIndex int            `json:"chunk_index"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AddDocuments 通过 _bulk 写入文档。
func (s *ElasticStore) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		meta := map[string]any{"index": map[string]any{"_index": collection, "_id": doc.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		src := elasticSource{
			Content:    doc.Content,
			Source:     doc.Source,
			ChunkIndex: doc.ChunkIndex,
			Metadata:   doc.Metadata,
		}
		if err := enc.Encode(src); err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
	}

	body, err := s.do(ctx, http.MethodPost, "/_bulk", collection, buf.Bytes(), "application/x-ndjson")
	if err != nil {
		return err
	}

	var resp struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Errors {
		return types.NewError(types.ErrStoreUnavailable, "elasticsearch bulk insert reported item errors")
	}

	s.logger.Debug("elasticsearch bulk insert completed",
		zap.String("index", collection),
		zap.Int("count", len(docs)))
	return nil
}

// Search match 查询，按 _score 降序返回。
func (s *ElasticStore) Search(ctx context.Context, collection, query string, topK int) ([]ScoredDocument, error) {
	reqBody := map[string]any{
		"size": topK,
		"query": map[string]any{
			"match": map[string]any{
				s.cfg.ContentField: query,
			},
		},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	path := "/" + url.PathEscape(collection) + "/_search"
	body, err := s.do(ctx, http.MethodPost, path, collection, b, "application/json")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Hits struct {
			Hits []struct {
				ID     string        `json:"_id"`
				Score  float64       `json:"_score"`
				Source elasticSource `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]ScoredDocument, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		results = append(results, ScoredDocument{
			Document: Document{
				ID:         hit.ID,
				Content:    hit.Source.Content,
				Source:     hit.Source.Source,
				ChunkIndex: hit.Source.ChunkIndex,
				Metadata:   hit.Source.Metadata,
			},
			Score: hit.Score,
		})
	}
	return results, nil
}

func (s *ElasticStore) do(ctx context.Context, method, path, collection string, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "ApiKey "+s.cfg.APIKey)
	} else if s.cfg.Username != "" {
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, types.WrapError(types.ErrStoreUnavailable, "elasticsearch request", err).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.WrapError(types.ErrStoreUnavailable, "read elasticsearch response", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, types.NewError(types.ErrUnknownCollection,
			fmt.Sprintf("elasticsearch index %q not found", collection))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewError(types.ErrStoreUnavailable,
			fmt.Sprintf("elasticsearch request failed: path=%s status=%d body=%s",
				path, resp.StatusCode, string(respBody))).WithRetryable(resp.StatusCode >= 500)
	}
	return respBody, nil
}
