package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/citebot/service"
	"github.com/tieubaoca/citebot/types"
	"go.uber.org/zap"
)

// SearchHandler exposes raw retrieval without generation.
type SearchHandler struct {
	retriever    service.Retriever
	defaultLimit int
}

func NewSearchHandler(retriever service.Retriever, defaultLimit int) *SearchHandler {
	if defaultLimit <= 0 {
		defaultLimit = service.DefaultRetrievalLimit
	}
	return &SearchHandler{
		retriever:    retriever,
		defaultLimit: defaultLimit,
	}
}

func (h *SearchHandler) HandleSearch(c *gin.Context) {
	var req types.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.sendError(c, "Invalid query", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		h.sendError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Limit == 0 {
		req.Limit = h.defaultLimit
	}

	passages, err := h.retriever.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		zap.L().Error("search: failed", zap.Error(err))
		h.sendError(c, "Search failed", http.StatusBadGateway)
		return
	}
	if passages == nil {
		passages = []types.Passage{}
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data: types.SearchResponse{
			Passages: passages,
			Context:  service.SerializeChunks(passages),
		},
	})
}

func (h *SearchHandler) sendError(c *gin.Context, message string, status int) {
	c.JSON(status, types.DataResponse{
		Status:  false,
		Message: message,
	})
}
