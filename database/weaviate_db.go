package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tieubaoca/citebot/config"
	"github.com/tieubaoca/citebot/types"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"
)

const BATCH_SIZE = 200

const DOCUMENT_CLASS = "Document"

var documentFields = []graphql.Field{
	{Name: "content"},
	{Name: "title"},
	{Name: "source"},
	{Name: "tags"},
	{Name: "custom", Fields: []graphql.Field{{Name: "page"}, {Name: "total_pages"}}},
	{Name: "createdAt"},
	{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}, {Name: "id"}}},
}

func documentClass(cfg config.WeaviateStoreConfig) *models.Class {
	return &models.Class{
		Class: DOCUMENT_CLASS,
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "tags", DataType: []string{"text[]"}},
			{Name: "custom", DataType: []string{"object"},
				NestedProperties: []*models.NestedProperty{
					{Name: "page", DataType: []string{"text"}},
					{Name: "total_pages", DataType: []string{"text"}},
				},
			},
			{Name: "createdAt", DataType: []string{"int"}},
		},
		Vectorizer:      cfg.Text2Vec,
		ModuleConfig:    map[string]interface{}(cfg.ModuleConfig),
		VectorIndexType: "hnsw",
	}
}

// WeaviateStore keeps chunks in a Weaviate class vectorized by a text2vec module.
type WeaviateStore struct {
	client      *weaviate.Client
	class       *models.Class
	maxDistance float32
}

func NewWeaviateStore(ctx context.Context, cfg config.WeaviateStoreConfig) (*WeaviateStore, error) {
	scheme := "http"
	if strings.HasPrefix(cfg.Host, "https://") {
		scheme = "https"
	}
	host := strings.TrimPrefix(cfg.Host, scheme+"://")
	wcfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{
			Value: cfg.APIKey,
		}
		wcfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     cfg.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create weaviate client")
	}

	s := &WeaviateStore{
		client:      client,
		class:       documentClass(cfg),
		maxDistance: cfg.MaxDistance,
	}

	schema, err := client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get schema")
	}
	for _, class := range schema.Classes {
		if class.Class == DOCUMENT_CLASS {
			return s, nil
		}
	}
	if err := client.Schema().ClassCreator().WithClass(s.class).Do(ctx); err != nil {
		return nil, eris.Wrap(err, "failed to create Document class")
	}
	zap.L().Info("weaviate: created class", zap.String("class", DOCUMENT_CLASS))
	return s, nil
}

func (s *WeaviateStore) ReInit(ctx context.Context) error {
	if err := s.client.Schema().ClassDeleter().WithClassName(DOCUMENT_CLASS).Do(ctx); err != nil {
		return eris.Wrap(err, "failed to delete Document class")
	}
	if err := s.client.Schema().ClassCreator().WithClass(s.class).Do(ctx); err != nil {
		return eris.Wrap(err, "failed to create Document class")
	}
	return nil
}

func documentProperties(doc types.Document) map[string]interface{} {
	return map[string]interface{}{
		"content":   doc.Content,
		"title":     doc.Metadata.Title,
		"source":    doc.Metadata.Source,
		"tags":      doc.Metadata.Tags,
		"custom":    doc.Metadata.Custom,
		"createdAt": doc.CreatedAt,
	}
}

// InsertDocuments writes docs in batches of BATCH_SIZE.
func (s *WeaviateStore) InsertDocuments(ctx context.Context, docs []types.Document) error {
	total := len(docs)
	for i := 0; i < total; i += BATCH_SIZE {
		end := min(i+BATCH_SIZE, total)

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			batcher = batcher.WithObjects(&models.Object{
				Class:      DOCUMENT_CLASS,
				Properties: documentProperties(docs[j]),
			})
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return eris.Wrapf(err, "failed to insert batch %d-%d", i, end)
		}
		for _, obj := range resp {
			if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
				return fmt.Errorf("failed to insert batch %d-%d: %s", i, end, obj.Result.Errors.Error[0].Message)
			}
		}
		zap.L().Debug("weaviate: inserted batch", zap.Int("from", i), zap.Int("to", end), zap.Int("total", total))
	}
	return nil
}

// SearchSimilar runs a nearText query. Results farther than the configured
// max distance are left out by Weaviate.
func (s *WeaviateStore) SearchSimilar(ctx context.Context, query string, limit int) ([]types.Document, error) {
	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})
	if s.maxDistance > 0 {
		nearText = nearText.WithDistance(s.maxDistance)
	}

	getBuilder := s.client.GraphQL().Get().
		WithClassName(DOCUMENT_CLASS).
		WithFields(documentFields...).
		WithNearText(nearText).
		WithLimit(searchLimit(limit))

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "weaviate search")
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search failed: %v", result.Errors[0].Message)
	}
	return parseDocuments(result.Data), nil
}

// parseDocuments reads the Get.Document list of a GraphQL response. Fields of
// an unexpected type are left empty.
func parseDocuments(data map[string]models.JSONObject) []types.Document {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[DOCUMENT_CLASS].([]interface{})
	if !ok {
		return nil
	}

	docs := make([]types.Document, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		doc := types.Document{
			Content: asString(obj["content"]),
			Metadata: types.Metadata{
				Title:  asString(obj["title"]),
				Source: asString(obj["source"]),
				Tags:   parseStringArray(obj["tags"]),
				Custom: parseStringMap(obj["custom"]),
			},
		}
		if created, ok := obj["createdAt"].(float64); ok {
			doc.CreatedAt = int64(created)
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			doc.ID = asString(additional["id"])
			if distance, ok := additional["distance"].(float64); ok {
				if doc.Metadata.Custom == nil {
					doc.Metadata.Custom = map[string]string{}
				}
				doc.Metadata.Custom["distance"] = fmt.Sprintf("%f", distance)
			}
		}
		docs = append(docs, doc)
	}
	return docs
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func parseStringArray(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

func parseStringMap(v interface{}) map[string]string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	result := make(map[string]string, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			result[k] = t
		case nil:
		default:
			result[k] = fmt.Sprint(t)
		}
	}
	return result
}

// NewOllamaModuleConfig returns the module config for a Weaviate instance that
// vectorizes with an Ollama embedding model.
func NewOllamaModuleConfig(apiEndpoint, embedModel string) map[string]interface{} {
	return map[string]interface{}{
		"text2vec-ollama": map[string]interface{}{
			"apiEndpoint": apiEndpoint,
			"model":       embedModel,
		},
	}
}
