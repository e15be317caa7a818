package store

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/types"
)

func TestElasticStore_BulkInsert(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_bulk", r.URL.Path)
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))

		// NDJSON: action 行 + source 行交替
		scanner := bufio.NewScanner(r.Body)
		lines := 0
		for scanner.Scan() {
			if strings.TrimSpace(scanner.Text()) != "" {
				lines++
			}
		}
		assert.Equal(t, 4, lines)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
	}))
	defer srv.Close()

	s := NewElasticStore(ElasticConfig{URL: srv.URL}, zap.NewNop())
	err := s.AddDocuments(context.Background(), "reports", []Document{
		{ID: "a-0", Content: "revenue grew", Source: "a.md", ChunkIndex: 0},
		{ID: "a-1", Content: "social work", Source: "a.md", ChunkIndex: 1},
	})
	require.NoError(t, err)
}

func TestElasticStore_Search(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reports/_search", r.URL.Path)

		var req struct {
			Size  int `json:"size"`
			Query struct {
				Match map[string]string `json:"match"`
			} `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5, req.Size)
		assert.Equal(t, "annual revenue", req.Query.Match["content"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"a-0","_score":3.2,"_source":{"content":"revenue grew","source":"a.md","chunk_index":0}},
			{"_id":"b-0","_score":1.1,"_source":{"content":"spring weather","source":"b.md","chunk_index":0}}
		]}}`))
	}))
	defer srv.Close()

	s := NewElasticStore(ElasticConfig{URL: srv.URL}, zap.NewNop())
	results, err := s.Search(context.Background(), "reports", "annual revenue", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a-0", results[0].Document.ID)
	assert.Equal(t, "a.md", results[0].Document.Source)
	assert.InDelta(t, 3.2, results[0].Score, 1e-9)
}

func TestElasticStore_UnknownIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"index_not_found_exception"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewElasticStore(ElasticConfig{URL: srv.URL}, zap.NewNop())
	_, err := s.Search(context.Background(), "missing", "query", 3)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUnknownCollection))
}

func TestElasticStore_ServerErrorIsRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewElasticStore(ElasticConfig{URL: srv.URL}, zap.NewNop())
	_, err := s.Search(context.Background(), "col", "query", 3)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrStoreUnavailable))
	assert.True(t, types.IsRetryable(err))
}
