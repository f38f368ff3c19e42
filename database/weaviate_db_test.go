package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestParseDocuments(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			"Document": []interface{}{
				map[string]interface{}{
					"content":   "HNSW provides fast search.",
					"title":     "paper",
					"source":    "paper.pdf",
					"tags":      []interface{}{"ann", "graphs"},
					"custom":    map[string]interface{}{"page": "5", "total_pages": nil},
					"createdAt": float64(1700000000),
					"_additional": map[string]interface{}{
						"id":       "7c1d",
						"distance": 0.25,
					},
				},
				"not an object",
				map[string]interface{}{
					"content": "LSH uses hashing.",
					"custom":  nil,
				},
			},
		},
	}

	docs := parseDocuments(data)
	require.Len(t, docs, 2)

	assert.Equal(t, "7c1d", docs[0].ID)
	assert.Equal(t, "paper.pdf", docs[0].Metadata.Source)
	assert.Equal(t, []string{"ann", "graphs"}, docs[0].Metadata.Tags)
	assert.Equal(t, "5", docs[0].Metadata.Custom["page"])
	assert.NotContains(t, docs[0].Metadata.Custom, "total_pages")
	assert.Equal(t, "0.250000", docs[0].Metadata.Custom["distance"])
	assert.Equal(t, int64(1700000000), docs[0].CreatedAt)

	assert.Equal(t, "LSH uses hashing.", docs[1].Content)
	assert.Empty(t, docs[1].Metadata.Source)
	assert.Nil(t, docs[1].Metadata.Custom)
}

func TestParseDocuments_MissingClass(t *testing.T) {
	assert.Nil(t, parseDocuments(map[string]models.JSONObject{}))
	assert.Nil(t, parseDocuments(map[string]models.JSONObject{"Get": map[string]interface{}{}}))
}

func TestParsedDocumentToPassage(t *testing.T) {
	docs := parseDocuments(map[string]models.JSONObject{
		"Get": map[string]interface{}{
			"Document": []interface{}{
				map[string]interface{}{
					"content": "text",
					"title":   "report",
					"custom":  map[string]interface{}{"page": "12"},
				},
			},
		},
	})
	require.Len(t, docs, 1)

	p := docs[0].ToPassage()
	assert.Equal(t, 12, p.Page())
	assert.Equal(t, "report", p.Source())
}
