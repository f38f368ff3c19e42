package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "weaviate", cfg.Retrieval.Backend)
	assert.Equal(t, 4, cfg.Retrieval.Limit)
	assert.False(t, cfg.Pipeline.StrictCitations)
	assert.Equal(t, "documents", cfg.PgVector.Table)
}

func TestLoadConfig_FileAndSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEYS", "k1, k2")
	t.Setenv("DATABASE_URL", "postgres://localhost/citebot")

	path := writeConfig(t, `
port: "9090"
llm:
  provider: gemini
  model: gemini-1.5-flash
  verification_model: gemini-1.5-pro
retrieval:
  backend: pgvector
  limit: 6
pipeline:
  strict_citations: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAIAPIKey)
	assert.Equal(t, []string{"k1", "k2"}, cfg.LLM.GeminiAPIKeys)
	assert.Equal(t, "postgres://localhost/citebot", cfg.PgVector.DatabaseURL)
	assert.Equal(t, "pgvector", cfg.Retrieval.Backend)
	assert.Equal(t, 6, cfg.Retrieval.Limit)
	assert.True(t, cfg.Pipeline.StrictCitations)

	assert.Equal(t, "gemini-1.5-flash", cfg.LLM.ModelFor(cfg.LLM.DraftModel))
	assert.Equal(t, "gemini-1.5-pro", cfg.LLM.ModelFor(cfg.LLM.VerificationModel))
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown provider", "llm:\n  provider: claude\n"},
		{"unknown backend", "retrieval:\n  backend: solr\n"},
		{"bad limit", "retrieval:\n  limit: -1\n"},
		{"bad agent store", "retrieval:\n  backend: agent\n  agent_store: web\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
