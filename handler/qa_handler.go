package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/citebot/service"
	"github.com/tieubaoca/citebot/types"
	"go.uber.org/zap"
)

type QAHandler struct {
	qa service.QuestionAnswerer
	ws *service.WebSocketService
}

func NewQAHandler(qa service.QuestionAnswerer) *QAHandler {
	return &QAHandler{
		qa: qa,
		ws: service.NewWebSocketService(qa),
	}
}

// HandleQA answers one question. The response body is the bare
// {answer, context, citations} object.
func (h *QAHandler) HandleQA(c *gin.Context) {
	var req types.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}

	res, err := h.qa.Ask(c.Request.Context(), req.Question)
	if err != nil {
		zap.L().Error("qa: run failed", zap.Error(err))
		c.JSON(statusFor(err), types.DataResponse{
			Status:  false,
			Message: service.PublicMessage(err),
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *QAHandler) HandleQAWebSocket(c *gin.Context) {
	h.ws.HandleQA(c.Writer, c.Request)
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, service.ErrEmptyQuestion) {
		return http.StatusBadRequest
	}
	kind, ok := service.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case service.KindRetrieval, service.KindDraftGeneration, service.KindVerification:
		return http.StatusBadGateway
	case service.KindMalformedCitation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
