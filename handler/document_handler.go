package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/citebot/types"
)

// DocumentHandler serves uploaded source documents so a citation's source
// can be opened.
type DocumentHandler struct {
	uploadDir string
}

func NewDocumentHandler(uploadDir string) *DocumentHandler {
	return &DocumentHandler{
		uploadDir: uploadDir,
	}
}

func (h *DocumentHandler) ServeDocument(c *gin.Context) {
	requestedName := c.Query("file")
	if requestedName == "" {
		h.sendError(c, "File parameter is required", http.StatusBadRequest)
		return
	}
	if filepath.Base(requestedName) != requestedName {
		h.sendError(c, "Invalid file name", http.StatusBadRequest)
		return
	}
	if filepath.Ext(requestedName) != ".pdf" {
		h.sendError(c, "Only PDF files are allowed", http.StatusBadRequest)
		return
	}

	actualFile, err := h.findFileWithTimestamp(requestedName)
	if err != nil {
		h.sendError(c, "File not found", http.StatusNotFound)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", requestedName))
	c.File(filepath.Join(h.uploadDir, actualFile))
}

// findFileWithTimestamp returns the stored file for requestedName, which is
// either the name itself or the name with a _<unix timestamp> suffix.
func (h *DocumentHandler) findFileWithTimestamp(requestedName string) (string, error) {
	files, err := os.ReadDir(h.uploadDir)
	if err != nil {
		return "", err
	}

	baseName := strings.TrimSuffix(requestedName, ".pdf")
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".pdf") {
			continue
		}

		nameWithoutExt := strings.TrimSuffix(name, ".pdf")
		if nameWithoutExt == baseName {
			return name, nil
		}
		lastUnderscoreIdx := strings.LastIndex(nameWithoutExt, "_")
		if lastUnderscoreIdx == -1 {
			continue
		}

		timestampPart := nameWithoutExt[lastUnderscoreIdx+1:]
		fileBaseName := nameWithoutExt[:lastUnderscoreIdx]

		// unix seconds or milliseconds
		if len(timestampPart) == 10 || len(timestampPart) == 13 {
			if _, err := strconv.ParseInt(timestampPart, 10, 64); err == nil && fileBaseName == baseName {
				return name, nil
			}
		}
	}

	return "", fmt.Errorf("file not found: %s", requestedName)
}

func (h *DocumentHandler) sendError(c *gin.Context, message string, status int) {
	c.JSON(status, types.DataResponse{
		Status:  false,
		Message: message,
	})
}
