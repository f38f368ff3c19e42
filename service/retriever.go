package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/tieubaoca/citebot/database"
	"github.com/tieubaoca/citebot/types"
	"go.uber.org/zap"
)

// DefaultRetrievalLimit is the number of passages requested per search.
const DefaultRetrievalLimit = 4

// Retriever returns the passages most relevant to query, best first.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]types.Passage, error)
}

// StoreRetriever searches a passage store directly.
type StoreRetriever struct {
	store database.PassageStore
}

func NewStoreRetriever(store database.PassageStore) *StoreRetriever {
	return &StoreRetriever{store: store}
}

func (r *StoreRetriever) Search(ctx context.Context, query string, limit int) ([]types.Passage, error) {
	docs, err := r.store.SearchSimilar(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store search")
	}
	passages := make([]types.Passage, 0, len(docs))
	for _, doc := range docs {
		passages = append(passages, doc.ToPassage())
	}
	return passages, nil
}

const searchToolName = "search_documents"

type searchToolArgs struct {
	Query string `json:"query"`
}

// searchCapture holds the passages of the last tool call of one conversation.
// Tool calls of a conversation run one after another, so it needs no lock.
type searchCapture struct {
	limit    int
	calls    int
	passages []types.Passage
}

type searchCaptureKey struct{}

// AgentRetriever lets a tool-calling model explore the corpus with as many
// searches as it wants. Only the passages returned by its final search call
// are handed back, so a run gets exactly one citation numbering.
type AgentRetriever struct {
	agent   *OpenAIService
	backend Retriever
}

// NewAgentRetriever registers the search tool on agent. The agent instance
// should be dedicated to retrieval since the tool applies to every call it makes.
func NewAgentRetriever(agent *OpenAIService, backend Retriever) *AgentRetriever {
	r := &AgentRetriever{agent: agent, backend: backend}
	agent.RegisterFunctionCall(
		searchToolName,
		"Search the document index and return the most relevant chunks with their page numbers.",
		jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query": {
					Type:        jsonschema.String,
					Description: "The search query",
				},
			},
			Required: []string{"query"},
		},
		r.handleSearch,
	)
	return r
}

func (r *AgentRetriever) handleSearch(ctx context.Context, args []byte) (any, error) {
	var in searchToolArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid %s arguments: %w", searchToolName, err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "The query must not be empty.", nil
	}
	capture, _ := ctx.Value(searchCaptureKey{}).(*searchCapture)
	limit := DefaultRetrievalLimit
	if capture != nil && capture.limit > 0 {
		limit = capture.limit
	}
	passages, err := r.backend.Search(ctx, in.Query, limit)
	if err != nil {
		return nil, err
	}
	if capture != nil {
		capture.calls++
		capture.passages = passages
	}
	zap.L().Debug("retrieval agent: search", zap.String("query", in.Query), zap.Int("passages", len(passages)))
	if len(passages) == 0 {
		return "No matching chunks found.", nil
	}
	return SerializeChunks(passages), nil
}

// Search runs one agent conversation for query. When the agent never calls
// the search tool the result is empty.
func (r *AgentRetriever) Search(ctx context.Context, query string, limit int) ([]types.Passage, error) {
	capture := &searchCapture{limit: limit}
	ctx = context.WithValue(ctx, searchCaptureKey{}, capture)
	if _, err := r.agent.Converse(ctx, RetrievalSystemPrompt, query); err != nil {
		return nil, eris.Wrap(err, "retrieval agent")
	}
	zap.L().Debug("retrieval agent: done", zap.Int("search_calls", capture.calls), zap.Int("passages", len(capture.passages)))
	return capture.passages, nil
}
