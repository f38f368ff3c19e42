package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/citebot/types"
)

type MockRetriever struct {
	Passages  []types.Passage
	Err       error
	LastQuery string
	LastLimit int
}

func (m *MockRetriever) Search(_ context.Context, query string, limit int) ([]types.Passage, error) {
	m.LastQuery = query
	m.LastLimit = limit
	return m.Passages, m.Err
}

func newSearchRouter(r *MockRetriever) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/search", NewSearchHandler(r, 4).HandleSearch)
	return router
}

func TestHandleSearch(t *testing.T) {
	r := &MockRetriever{Passages: []types.Passage{
		{Content: "HNSW provides fast search.", Metadata: map[string]any{"page": 5}},
	}}
	w := httptest.NewRecorder()
	newSearchRouter(r).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=hnsw", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hnsw", r.LastQuery)
	assert.Equal(t, 4, r.LastLimit)

	var body struct {
		Status bool                 `json:"status"`
		Data   types.SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Status)
	assert.Equal(t, "Chunk 1 (page=5):\nHNSW provides fast search.", body.Data.Context)
	assert.Len(t, body.Data.Passages, 1)
}

func TestHandleSearch_Validation(t *testing.T) {
	r := &MockRetriever{}
	router := newSearchRouter(r)

	for _, target := range []string{"/search", "/search?q=x&limit=500", "/search?q=x&limit=abc"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
	assert.Empty(t, r.LastQuery)
}

func TestHandleSearch_BackendError(t *testing.T) {
	r := &MockRetriever{Err: errors.New("connection refused")}
	w := httptest.NewRecorder()
	newSearchRouter(r).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=x&limit=2", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 2, r.LastLimit)
}
