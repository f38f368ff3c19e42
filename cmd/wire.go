/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/tieubaoca/citebot/config"
	"github.com/tieubaoca/citebot/database"
	"github.com/tieubaoca/citebot/observability"
	"github.com/tieubaoca/citebot/service"
)

// components is everything built from the config for one process.
type components struct {
	pipeline  *service.Pipeline
	retriever service.Retriever
	// store is nil for the web backend.
	store   database.PassageStore
	closers []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func newOpenAI(cfg *config.Config, model string) (*service.OpenAIService, error) {
	if cfg.LLM.OpenAIAPIKey == "" && cfg.LLM.Endpoint == "" {
		return nil, errors.New("OPENAI_API_KEY or llm.endpoint is required")
	}
	return service.NewOpenAIService(cfg.LLM.Endpoint, cfg.LLM.OpenAIAPIKey, model).
		WithTemperature(cfg.LLM.Temperature), nil
}

// newGenerator builds the generation client of one stage role.
func newGenerator(cfg *config.Config, model string, c *components) (service.Generator, error) {
	var gen service.Generator
	switch cfg.LLM.Provider {
	case "gemini":
		g, err := service.NewGeminiService(cfg.LLM.GeminiAPIKeys, model)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { g.Close() })
		gen = g
	default:
		o, err := newOpenAI(cfg, model)
		if err != nil {
			return nil, err
		}
		gen = o
	}
	return service.NewRateLimitedGenerator(gen, cfg.LLM.RateLimit, cfg.LLM.RateBurst), nil
}

func newStore(ctx context.Context, cfg *config.Config, kind string, c *components) (database.PassageStore, error) {
	switch kind {
	case "pgvector":
		if cfg.PgVector.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the pgvector store")
		}
		embedder, err := newOpenAI(cfg, cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("pgvector embeddings: %w", err)
		}
		store, err := database.NewPgVectorStore(ctx, cfg.PgVector.DatabaseURL, cfg.PgVector.Table,
			cfg.PgVector.Dimensions, embedder.WithEmbeddingModel(cfg.PgVector.EmbeddingModel))
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	default:
		wcfg := cfg.WeaviateStoreConfig
		if len(wcfg.ModuleConfig) == 0 && wcfg.OllamaEndpoint != "" {
			wcfg.Text2Vec = "text2vec-ollama"
			wcfg.ModuleConfig = database.NewOllamaModuleConfig(wcfg.OllamaEndpoint, wcfg.OllamaModel)
		}
		return database.NewWeaviateStore(ctx, wcfg)
	}
}

// buildComponents wires the retriever, the stage generators and the pipeline.
// Each stage role gets its own client, built once and reused across runs.
func buildComponents(ctx context.Context, cfg *config.Config, metrics *observability.PipelineMetrics, strict bool) (*components, error) {
	c := &components{}
	fail := func(err error) (*components, error) {
		c.Close()
		return nil, err
	}

	switch cfg.Retrieval.Backend {
	case "web":
		c.retriever = service.NewWebRetriever(cfg.WebSearch.APIKey, cfg.WebSearch.EngineID)
	case "agent":
		store, err := newStore(ctx, cfg, cfg.Retrieval.AgentStore, c)
		if err != nil {
			return fail(err)
		}
		agent, err := newOpenAI(cfg, cfg.LLM.ModelFor(cfg.LLM.RetrievalModel))
		if err != nil {
			return fail(fmt.Errorf("retrieval agent: %w", err))
		}
		c.store = store
		c.retriever = service.NewAgentRetriever(agent, service.NewStoreRetriever(store))
	default:
		store, err := newStore(ctx, cfg, cfg.Retrieval.Backend, c)
		if err != nil {
			return fail(err)
		}
		c.store = store
		c.retriever = service.NewStoreRetriever(store)
	}

	drafter, err := newGenerator(cfg, cfg.LLM.ModelFor(cfg.LLM.DraftModel), c)
	if err != nil {
		return fail(err)
	}
	verifier, err := newGenerator(cfg, cfg.LLM.ModelFor(cfg.LLM.VerificationModel), c)
	if err != nil {
		return fail(err)
	}

	c.pipeline = service.NewPipeline(
		service.NewRetrievalStage(c.retriever, cfg.Retrieval.Limit),
		service.NewDraftingStage(drafter),
		service.NewVerificationStage(verifier, strict || cfg.Pipeline.StrictCitations),
		service.WithMetrics(metrics),
	)
	return c, nil
}
