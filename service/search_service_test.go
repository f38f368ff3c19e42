package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestWebRetriever_Search(t *testing.T) {
	var gotQuery, gotNum, gotCx string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotNum = r.URL.Query().Get("num")
		gotCx = r.URL.Query().Get("cx")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"title": "HNSW paper", "link": "https://example.org/hnsw", "snippet": "Hierarchical graphs."},
				{"title": "LSH notes", "link": "https://example.org/lsh", "snippet": "Hashing for ANN."},
			},
		})
	}))
	defer srv.Close()

	r := NewWebRetriever("key", "engine-1", option.WithEndpoint(srv.URL+"/"))
	passages, err := r.Search(context.Background(), "ann search", 25)
	require.NoError(t, err)

	assert.Equal(t, "ann search", gotQuery)
	assert.Equal(t, "10", gotNum)
	assert.Equal(t, "engine-1", gotCx)

	require.Len(t, passages, 2)
	assert.Equal(t, "HNSW paper\nHierarchical graphs.", passages[0].Content)
	assert.Equal(t, "https://example.org/hnsw", passages[0].Source())
	assert.Equal(t, "unknown", passages[0].Page())

	_, citations := SerializeChunksWithCitations(passages)
	rec, ok := citations.Get("C2")
	require.True(t, ok)
	assert.Equal(t, "https://example.org/lsh", rec.Source)
}

func TestWebRetriever_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"quota"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	r := NewWebRetriever("key", "engine-1", option.WithEndpoint(srv.URL+"/"))
	_, err := r.Search(context.Background(), "q", 3)
	assert.Error(t, err)
}
