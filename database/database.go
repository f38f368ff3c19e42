package database

import (
	"context"

	"github.com/tieubaoca/citebot/types"
)

// DefaultSearchLimit is used when SearchSimilar gets a non-positive limit.
const DefaultSearchLimit = 10

func searchLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}

// PassageStore is a vector index of document chunks.
type PassageStore interface {
	// SearchSimilar returns up to limit documents ordered by similarity to query,
	// or up to DefaultSearchLimit when limit is not positive.
	SearchSimilar(ctx context.Context, query string, limit int) ([]types.Document, error)
	InsertDocuments(ctx context.Context, docs []types.Document) error
	// ReInit drops every indexed document and recreates the schema.
	ReInit(ctx context.Context) error
}

// Embedder turns text into a vector, for stores that do not vectorize themselves.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
