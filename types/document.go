package types

import (
	"strconv"
)

type DocumentChunk struct {
	Content  string           // The actual text content
	Page     int              // Page number where the chunk is from
	Metadata DocumentMetadata // Associated metadata for the chunk
}

// DocumentMetadata contains metadata information for PDF chunks
type DocumentMetadata struct {
	Title      string // Title of the PDF document
	Source     string // Source file name
	PageNum    int    // Current page number
	TotalPages int    // Total number of pages in the document
}

// DocumentServiceConfig contains configuration options for PDF processing
type DocumentServiceConfig struct {
	MaxChunkSize int // Maximum size for text chunks
	OverlapSize  int // Size of overlap between chunks
}

// Document represents an indexed passage as stored in a vector database
type Document struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Metadata  Metadata `json:"metadata"`
	CreatedAt int64    `json:"created_at"`
}

// Metadata contains additional document information
type Metadata struct {
	Title  string            `json:"title"`
	Source string            `json:"source"`
	Tags   []string          `json:"tags"`
	Custom map[string]string `json:"custom"`
}

// ToPassage converts a stored document into a retrieval passage. A numeric
// page is reported as an int.
func (d Document) ToPassage() Passage {
	meta := map[string]any{}
	if d.Metadata.Source != "" {
		meta["source"] = d.Metadata.Source
	} else if d.Metadata.Title != "" {
		meta["source"] = d.Metadata.Title
	}
	if d.Metadata.Title != "" {
		meta["title"] = d.Metadata.Title
	}
	for k, v := range d.Metadata.Custom {
		if k == "page" || k == "page_number" {
			if n, err := strconv.Atoi(v); err == nil {
				meta[k] = n
				continue
			}
		}
		meta[k] = v
	}
	if d.ID != "" {
		meta["id"] = d.ID
	}
	return Passage{Content: d.Content, Metadata: meta}
}
