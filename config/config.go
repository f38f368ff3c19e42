package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string              `mapstructure:"port"`
	LogLevel            string              `mapstructure:"log_level"`
	LogFormat           string              `mapstructure:"log_format"`
	UploadDir           string              `mapstructure:"upload_dir"`
	LLM                 LLMConfig           `mapstructure:"llm"`
	Retrieval           RetrievalConfig     `mapstructure:"retrieval"`
	Pipeline            PipelineConfig      `mapstructure:"pipeline"`
	WeaviateStoreConfig WeaviateStoreConfig `mapstructure:"weaviate_store_config"`
	PgVector            PgVectorConfig      `mapstructure:"pgvector"`
	WebSearch           WebSearchConfig     `mapstructure:"web_search"`
	Otel                OtelConfig          `mapstructure:"otel"`
}

type LLMConfig struct {
	Provider          string  `mapstructure:"provider"`
	Endpoint          string  `mapstructure:"endpoint"`
	Model             string  `mapstructure:"model"`
	RetrievalModel    string  `mapstructure:"retrieval_model"`
	DraftModel        string  `mapstructure:"draft_model"`
	VerificationModel string  `mapstructure:"verification_model"`
	Temperature       float32 `mapstructure:"temperature"`
	// RateLimit is the allowed generation calls per second, 0 disables it.
	RateLimit     float64  `mapstructure:"rate_limit"`
	RateBurst     int      `mapstructure:"rate_burst"`
	OpenAIAPIKey  string   `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKeys []string `mapstructure:"GEMINI_API_KEYS"`
}

// ModelFor returns the per-stage model, or the shared model when unset.
func (c LLMConfig) ModelFor(stageModel string) string {
	if stageModel != "" {
		return stageModel
	}
	return c.Model
}

type RetrievalConfig struct {
	// Backend is one of weaviate, pgvector, agent, web.
	Backend string `mapstructure:"backend"`
	// AgentStore is the store searched by the agent backend (weaviate or pgvector).
	AgentStore string `mapstructure:"agent_store"`
	Limit      int    `mapstructure:"limit"`
}

type PipelineConfig struct {
	StrictCitations bool `mapstructure:"strict_citations"`
}

type WeaviateStoreConfig struct {
	Host           string       `mapstructure:"host"`
	APIKey         string       `mapstructure:"WEAVIATE_APIKEY"`
	Text2Vec       string       `mapstructure:"text2vec"`
	ModuleConfig   ModuleConfig `mapstructure:"module_config"`
	OllamaEndpoint string       `mapstructure:"ollama_endpoint"`
	OllamaModel    string       `mapstructure:"ollama_model"`
	MaxDistance    float32      `mapstructure:"max_distance"`
}

type ModuleConfig map[string]interface{}

type PgVectorConfig struct {
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	Table          string `mapstructure:"table"`
	Dimensions     int    `mapstructure:"dimensions"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type WebSearchConfig struct {
	APIKey   string `mapstructure:"GOOGLE_SEARCH_API_KEY"`
	EngineID string `mapstructure:"engine_id"`
}

type OtelConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

var (
	providers = map[string]bool{"openai": true, "gemini": true}
	backends  = map[string]bool{"weaviate": true, "pgvector": true, "agent": true, "web": true}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.rate_burst", 1)
	v.SetDefault("retrieval.backend", "weaviate")
	v.SetDefault("retrieval.agent_store", "weaviate")
	v.SetDefault("retrieval.limit", 4)
	v.SetDefault("pipeline.strict_citations", false)
	v.SetDefault("weaviate_store_config.host", "http://localhost:8080")
	v.SetDefault("weaviate_store_config.text2vec", "text2vec-transformers")
	v.SetDefault("pgvector.table", "documents")
	v.SetDefault("pgvector.dimensions", 1536)
	v.SetDefault("pgvector.embedding_model", "text-embedding-3-small")
	v.SetDefault("otel.service_name", "citebot")
}

// bindSecrets maps the secret environment variables onto their config keys.
func bindSecrets(v *viper.Viper) {
	v.BindEnv("llm.OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("llm.GEMINI_API_KEYS", "GEMINI_API_KEYS")
	v.BindEnv("weaviate_store_config.WEAVIATE_APIKEY", "WEAVIATE_APIKEY")
	v.BindEnv("web_search.GOOGLE_SEARCH_API_KEY", "GOOGLE_SEARCH_API_KEY")
	v.BindEnv("pgvector.DATABASE_URL", "DATABASE_URL")
}

// LoadConfig reads the YAML file at configPath. An empty path uses defaults
// and the environment only.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSecrets(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.LLM.GeminiAPIKeys = splitKeys(config.LLM.GeminiAPIKeys)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// splitKeys accepts keys given either as a list or as one comma separated string.
func splitKeys(in []string) []string {
	var keys []string
	for _, item := range in {
		for _, k := range strings.Split(item, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func (c *Config) Validate() error {
	if !providers[c.LLM.Provider] {
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if !backends[c.Retrieval.Backend] {
		return fmt.Errorf("unknown retrieval backend %q", c.Retrieval.Backend)
	}
	if c.Retrieval.Backend == "agent" && c.Retrieval.AgentStore != "weaviate" && c.Retrieval.AgentStore != "pgvector" {
		return fmt.Errorf("unknown agent store %q", c.Retrieval.AgentStore)
	}
	if c.Retrieval.Limit <= 0 {
		return fmt.Errorf("retrieval limit must be positive, got %d", c.Retrieval.Limit)
	}
	return nil
}
