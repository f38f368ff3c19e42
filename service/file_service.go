package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tieubaoca/citebot/database"
	"github.com/tieubaoca/citebot/types"
	"github.com/tieubaoca/citebot/utils"
	"go.uber.org/zap"
)

// insertBatchSize is the number of chunks written to the store at once.
const insertBatchSize = 64

var ErrUnsupportedFileType = errors.New("unsupported file type")

// FileService stores uploaded source documents and indexes their chunks.
type FileService struct {
	uploadDir  string
	store      database.PassageStore
	pdfService *PDFService
}

func NewFileService(uploadDir string, store database.PassageStore, pdfService *PDFService) (*FileService, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "failed to create upload directory")
	}
	return &FileService{
		uploadDir:  uploadDir,
		store:      store,
		pdfService: pdfService,
	}, nil
}

// SaveUpload copies an uploaded PDF into the upload directory under a
// timestamped, sanitized name and returns its path.
func (s *FileService) SaveUpload(file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	filename := utils.TimestampedName(utils.SanitizeFileName(file.Filename), time.Now())
	path := filepath.Join(s.uploadDir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}

// IngestFile chunks the PDF at path and inserts the chunks into the store.
// Progress events are sent on progress when it is not nil. It returns the
// number of chunks indexed.
func (s *FileService) IngestFile(ctx context.Context, path string, req types.UploadRequest, progress chan<- types.ProcessingDocumentStatus) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan types.DocumentChunk)
	errc := make(chan error, 1)
	go func() {
		errc <- s.pdfService.ProcessPDF(ctx, path, req, chunks)
	}()

	var (
		batch []types.Document
		total int
		err   error
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.store.InsertDocuments(ctx, batch); err != nil {
			return eris.Wrapf(err, "failed to index %s", filepath.Base(path))
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for chunk := range chunks {
		if err != nil {
			continue
		}
		batch = append(batch, chunkDocument(chunk, req.Tags))
		if len(batch) >= insertBatchSize {
			if err = flush(); err != nil {
				cancel()
				continue
			}
		}
		sendProgress(ctx, progress, types.ProcessingDocumentStatus{
			Status:         "processing",
			Message:        "Processing document",
			Progress:       float64(chunk.Metadata.PageNum) / float64(chunk.Metadata.TotalPages),
			TotalPages:     chunk.Metadata.TotalPages,
			ProcessedPages: chunk.Metadata.PageNum,
		})
	}
	if procErr := <-errc; procErr != nil && err == nil {
		err = procErr
	}
	if err == nil {
		err = flush()
	}
	if err != nil {
		return total, err
	}

	zap.L().Info("ingest: indexed document", zap.String("file", path), zap.Int("chunks", total))
	sendProgress(ctx, progress, types.ProcessingDocumentStatus{
		Status:   "completed",
		Message:  "Done processing PDF",
		Progress: 1,
	})
	return total, nil
}

func chunkDocument(chunk types.DocumentChunk, tags []string) types.Document {
	return types.Document{
		Content: chunk.Content,
		Metadata: types.Metadata{
			Title:  chunk.Metadata.Title,
			Source: chunk.Metadata.Source,
			Tags:   tags,
			Custom: map[string]string{
				"page":        strconv.Itoa(chunk.Page),
				"total_pages": strconv.Itoa(chunk.Metadata.TotalPages),
			},
		},
		CreatedAt: time.Now().Unix(),
	}
}

func sendProgress(ctx context.Context, progress chan<- types.ProcessingDocumentStatus, status types.ProcessingDocumentStatus) {
	if progress == nil {
		return
	}
	select {
	case progress <- status:
	case <-ctx.Done():
	}
}
