package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tieubaoca/citebot/types"
	"go.uber.org/zap"
)

var DefaultDocumentServiceConfig = types.DocumentServiceConfig{
	MaxChunkSize: 1024,
	OverlapSize:  128,
}

// PageExtractor reads the text of a PDF one page at a time.
type PageExtractor interface {
	NumPages(ctx context.Context, path string) (int, error)
	PageText(ctx context.Context, path string, page int) (string, error)
}

// PDFService splits PDF pages into overlapping chunks. A chunk never spans two
// pages so its page number can be cited.
type PDFService struct {
	maxChunkSize int
	overlapSize  int
	extractor    PageExtractor
}

func NewPDFService(config types.DocumentServiceConfig) *PDFService {
	return NewPDFServiceWithExtractor(config, PopplerExtractor{})
}

func NewPDFServiceWithExtractor(config types.DocumentServiceConfig, extractor PageExtractor) *PDFService {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultDocumentServiceConfig.MaxChunkSize
	}
	if config.OverlapSize < 0 || config.OverlapSize >= config.MaxChunkSize {
		config.OverlapSize = 0
	}
	return &PDFService{
		maxChunkSize: config.MaxChunkSize,
		overlapSize:  config.OverlapSize,
		extractor:    extractor,
	}
}

// ProcessPDF sends the chunks of every readable page to c and closes c.
// Pages whose text cannot be extracted are skipped.
func (s *PDFService) ProcessPDF(ctx context.Context, filePath string, req types.UploadRequest, c chan<- types.DocumentChunk) error {
	defer close(c)
	totalPages, err := s.extractor.NumPages(ctx, filePath)
	if err != nil {
		return err
	}
	zap.L().Info("pdf: processing", zap.String("file", filePath), zap.Int("total_pages", totalPages))

	title := req.Title
	if title == "" {
		title = GetFileNameWithoutExt(filePath)
	}
	source := req.Source
	if source == "" {
		source = filepath.Base(filePath)
	}

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		text, err := s.extractor.PageText(ctx, filePath, pageNum)
		if err != nil {
			zap.L().Warn("pdf: failed to extract page", zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		text = cleanText(text)
		if text == "" {
			continue
		}

		metadata := types.DocumentMetadata{
			Title:      title,
			Source:     source,
			PageNum:    pageNum,
			TotalPages: totalPages,
		}
		for _, chunk := range s.createChunks(text, metadata) {
			select {
			case c <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// GetFileNameWithoutExt extracts the file name without extension from a path.
func GetFileNameWithoutExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// createChunks splits text into chunks of at most maxChunkSize bytes, cutting
// at a sentence end when possible, else at a space. Consecutive chunks share
// up to overlapSize bytes.
func (s *PDFService) createChunks(text string, metadata types.DocumentMetadata) []types.DocumentChunk {
	var chunks []types.DocumentChunk
	add := func(content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		chunks = append(chunks, types.DocumentChunk{
			Content:  content,
			Page:     metadata.PageNum,
			Metadata: metadata,
		})
	}

	textLen := len(text)
	currentPos := 0
	for currentPos < textLen {
		chunkEnd := currentPos + s.maxChunkSize
		if chunkEnd >= textLen {
			add(text[currentPos:])
			break
		}

		cut := -1
		for i := chunkEnd - 1; i > currentPos; i-- {
			if text[i] == '.' || text[i] == '?' || text[i] == '!' {
				cut = i + 1
				break
			}
		}
		if cut == -1 {
			for i := chunkEnd; i > currentPos; i-- {
				if text[i] == ' ' {
					cut = i
					break
				}
			}
		}
		if cut == -1 {
			cut = chunkEnd
		}
		add(text[currentPos:cut])

		next := cut - s.overlapSize
		if next <= currentPos {
			next = cut
		}
		// keep the overlap from starting in the middle of a word
		if next < cut {
			if sp := strings.IndexByte(text[next:cut], ' '); sp >= 0 {
				next += sp + 1
			}
		}
		currentPos = next
	}
	return chunks
}

var textReplacer = strings.NewReplacer(
	"\u0000", "",
	"\ufffd", "",
	"\u001b", "",
	"\r", "",
	"\f", "\n",
	"‡", "",
	"†", "",
)

var multiSpace = regexp.MustCompile(`[ \t]{2,}`)

func cleanText(text string) string {
	cleaned := textReplacer.Replace(text)
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// PopplerExtractor uses pdfinfo and pdftotext, falling back to pdftoppm and
// tesseract OCR for pages without a text layer.
type PopplerExtractor struct {
	TempDir string
}

func (e PopplerExtractor) NumPages(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, eris.Wrap(err, "error running pdfinfo")
	}
	return parsePageCount(&out)
}

var pagesPattern = regexp.MustCompile(`Pages:\s+(\d+)`)

func parsePageCount(out *bytes.Buffer) (int, error) {
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		if matches := pagesPattern.FindStringSubmatch(scanner.Text()); len(matches) == 2 {
			return strconv.Atoi(matches[1])
		}
	}
	return 0, fmt.Errorf("unable to determine page count from pdfinfo")
}

func (e PopplerExtractor) PageText(ctx context.Context, filePath string, pageNumber int) (string, error) {
	text, err := e.extractTextWithPdftotext(ctx, filePath, pageNumber)
	if err == nil && text != "" {
		return text, nil
	}
	zap.L().Debug("pdf: falling back to OCR", zap.Int("page", pageNumber), zap.Error(err))
	text, err = e.extractTextWithTesseract(ctx, filePath, pageNumber)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}

func (e PopplerExtractor) extractTextWithPdftotext(ctx context.Context, path string, pageNumber int) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext",
		"-f", strconv.Itoa(pageNumber),
		"-l", strconv.Itoa(pageNumber),
		"-enc", "UTF-8", "-nopgbrk",
		path, "-")
	var txtOut bytes.Buffer
	cmd.Stdout = &txtOut
	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "pdftotext page %d", pageNumber)
	}
	if trimmed := strings.TrimSpace(txtOut.String()); trimmed != "" {
		return trimmed, nil
	}
	return "", fmt.Errorf("got nothing at page %d", pageNumber)
}

func (e PopplerExtractor) extractTextWithTesseract(ctx context.Context, pdfPath string, pageNumber int) (string, error) {
	tempFolder, err := os.MkdirTemp(e.TempDir, GetFileNameWithoutExt(pdfPath)+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempFolder)

	convertCmd := exec.CommandContext(ctx, "pdftoppm",
		"-f", strconv.Itoa(pageNumber), "-l", strconv.Itoa(pageNumber),
		"-png", pdfPath, filepath.Join(tempFolder, "page"))
	if err := convertCmd.Run(); err != nil {
		return "", eris.Wrapf(err, "converting page %d to image", pageNumber)
	}
	files, err := filepath.Glob(filepath.Join(tempFolder, "page-*.png"))
	if err != nil || len(files) == 0 {
		return "", fmt.Errorf("no image rendered for page %d", pageNumber)
	}

	ocrCmd := exec.CommandContext(ctx, "tesseract",
		files[0],
		"stdout",
		"-l", "vie+rus+eng",
		"--oem", "3",
		"--psm", "3",
	)
	var ocrOut bytes.Buffer
	ocrCmd.Stdout = &ocrOut
	if err := ocrCmd.Run(); err != nil {
		return "", eris.Wrap(err, "failed to run tesseract")
	}
	if trimmed := strings.TrimSpace(ocrOut.String()); trimmed != "" {
		return trimmed, nil
	}
	return "", fmt.Errorf("got nothing at page %d", pageNumber)
}
