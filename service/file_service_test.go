package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/citebot/types"
)

type MockPassageStore struct {
	Inserted  []types.Document
	InsertErr error
}

func (m *MockPassageStore) SearchSimilar(context.Context, string, int) ([]types.Document, error) {
	return nil, nil
}

func (m *MockPassageStore) InsertDocuments(_ context.Context, docs []types.Document) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.Inserted = append(m.Inserted, docs...)
	return nil
}

func (m *MockPassageStore) ReInit(context.Context) error { return nil }

func TestFileService_IngestFile(t *testing.T) {
	store := &MockPassageStore{}
	pdf := NewPDFServiceWithExtractor(DefaultDocumentServiceConfig, fakeExtractor{
		total: 2,
		pages: map[int]string{1: "Page one.", 2: "Page two."},
	})
	files, err := NewFileService(t.TempDir(), store, pdf)
	require.NoError(t, err)

	progress := make(chan types.ProcessingDocumentStatus, 16)
	n, err := files.IngestFile(context.Background(), "/x/report.pdf",
		types.UploadRequest{Title: "Report", Source: "report.pdf", Tags: []string{"q3"}}, progress)
	require.NoError(t, err)
	close(progress)

	assert.Equal(t, 2, n)
	require.Len(t, store.Inserted, 2)
	doc := store.Inserted[1]
	assert.Equal(t, "Page two.", doc.Content)
	assert.Equal(t, "Report", doc.Metadata.Title)
	assert.Equal(t, "report.pdf", doc.Metadata.Source)
	assert.Equal(t, []string{"q3"}, doc.Metadata.Tags)
	assert.Equal(t, "2", doc.Metadata.Custom["page"])

	// stored chunks come back with a numeric page
	p := doc.ToPassage()
	assert.Equal(t, 2, p.Page())
	assert.Equal(t, "report.pdf", p.Source())

	var events []types.ProcessingDocumentStatus
	for e := range progress {
		events = append(events, e)
	}
	require.NotEmpty(t, events)
	assert.Equal(t, "completed", events[len(events)-1].Status)
}

func TestFileService_IngestFileStoreError(t *testing.T) {
	store := &MockPassageStore{InsertErr: errors.New("disk full")}
	pdf := NewPDFServiceWithExtractor(DefaultDocumentServiceConfig, fakeExtractor{total: 1, pages: map[int]string{1: "x"}})
	files, err := NewFileService(t.TempDir(), store, pdf)
	require.NoError(t, err)

	_, err = files.IngestFile(context.Background(), "a.pdf", types.UploadRequest{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
