package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/citebot/service"
	"github.com/tieubaoca/citebot/types"
	"go.uber.org/zap"
)

const maxUploadSize = 10 << 20

// Ingester saves and indexes uploaded documents.
type Ingester interface {
	SaveUpload(file *multipart.FileHeader) (string, error)
	IngestFile(ctx context.Context, path string, req types.UploadRequest, progress chan<- types.ProcessingDocumentStatus) (int, error)
}

type UploadHandler struct {
	files Ingester
}

func NewUploadHandler(files Ingester) *UploadHandler {
	return &UploadHandler{
		files: files,
	}
}

// UploadDocumentHandler stores the file and streams ingestion progress as
// server-sent "message" events, ending with one "done" or "error" event.
func (h *UploadHandler) UploadDocumentHandler(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.sendError(c, "Invalid file", http.StatusBadRequest)
		return
	}
	if header.Size > maxUploadSize {
		h.sendError(c, "File too large", http.StatusBadRequest)
		return
	}

	var req types.UploadRequest
	if metadata := c.PostForm("metadata"); metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &req); err != nil {
			h.sendError(c, "Invalid metadata", http.StatusBadRequest)
			return
		}
	}
	if req.Title == "" {
		req.Title = service.GetFileNameWithoutExt(header.Filename)
	}
	if req.Source == "" {
		req.Source = header.Filename
	}

	path, err := h.files.SaveUpload(header)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrUnsupportedFileType) {
			status = http.StatusBadRequest
		}
		h.sendError(c, err.Error(), status)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	progress := make(chan types.ProcessingDocumentStatus)
	type result struct {
		chunks int
		err    error
	}
	done := make(chan result, 1)
	go func() {
		defer close(progress)
		n, err := h.files.IngestFile(ctx, path, req, progress)
		done <- result{chunks: n, err: err}
	}()

	for status := range progress {
		c.SSEvent("message", status)
		c.Writer.Flush()
	}
	res := <-done
	if res.err != nil {
		zap.L().Error("upload: ingestion failed", zap.String("file", path), zap.Error(res.err))
		c.SSEvent("error", types.DataResponse{Status: false, Message: res.err.Error()})
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", types.DataResponse{
		Status: true,
		Data: types.UploadResponse{
			OriginalName: header.Filename,
			Chunks:       res.chunks,
		},
	})
	c.Writer.Flush()
}

func (h *UploadHandler) sendError(c *gin.Context, message string, status int) {
	c.JSON(status, types.DataResponse{
		Status:  false,
		Message: message,
	})
}
