package service

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tieubaoca/citebot/types"
	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// maxWebResults is the largest page Custom Search returns in one call.
const maxWebResults = 10

// WebRetriever searches the web with Google Custom Search. Each result
// becomes a passage whose source is the result link; results carry no page.
type WebRetriever struct {
	apiKey   string
	engineID string
	opts     []option.ClientOption
}

// NewWebRetriever creates a retriever for the given search engine. Extra client
// options are appended after the API key.
func NewWebRetriever(apiKey, engineID string, opts ...option.ClientOption) *WebRetriever {
	return &WebRetriever{
		apiKey:   apiKey,
		engineID: engineID,
		opts:     opts,
	}
}

func (s *WebRetriever) Search(ctx context.Context, query string, limit int) ([]types.Passage, error) {
	opts := []option.ClientOption{}
	if s.apiKey != "" {
		opts = append(opts, option.WithAPIKey(s.apiKey))
	}
	opts = append(opts, s.opts...)
	searchService, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create search service")
	}

	if limit <= 0 || limit > maxWebResults {
		limit = maxWebResults
	}
	search := searchService.Cse.List()
	search.Q(query)
	search.Cx(s.engineID)
	search.Num(int64(limit))

	result, err := search.Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(err, "failed to execute search")
	}

	passages := make([]types.Passage, 0, len(result.Items))
	for _, item := range result.Items {
		content := strings.TrimSpace(item.Title + "\n" + item.Snippet)
		passages = append(passages, types.Passage{
			Content: content,
			Metadata: map[string]any{
				"source": item.Link,
				"title":  item.Title,
			},
		})
	}
	return passages, nil
}
