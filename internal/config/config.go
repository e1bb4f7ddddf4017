// Package config loads configuration from environment variables and .env files.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the answer retrieval service
type Config struct {
	// Server
	HTTPPort       int      `env:"HTTP_PORT" envDefault:"8080"`
	VCAPAppPort    int      `env:"VCAP_APP_PORT"`
	Environment    string   `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Search service
	SearchBaseURL   string        `env:"RETRIEVE_AND_RANK_BASE_URL" envDefault:"https://gateway.watsonplatform.net/retrieve-and-rank/api"`
	SearchUsername  string        `env:"RETRIEVE_AND_RANK_USERNAME"`
	SearchPassword  string        `env:"RETRIEVE_AND_RANK_PASSWORD"`
	SolrClusterID   string        `env:"SOLR_CLUSTER_ID"`
	SolrCollection  string        `env:"SOLR_COLLECTION_NAME"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	DefaultFL       string        `env:"DEFAULT_FL" envDefault:"id,title,text"`
	DefaultRows     int           `env:"DEFAULT_SEARCH_ROWS" envDefault:"30"`

	// Ranker
	RankerID  string `env:"RANKER_ID"`
	AnswerDir string `env:"ANSWER_DIRECTORY" envDefault:"answers"`

	// Scorers
	FeatureFile   string        `env:"FEATURE_FILE" envDefault:"config/features.json"`
	ScorerWorkers int           `env:"SCORER_WORKERS" envDefault:"10"`
	ScorerTimeout time.Duration `env:"SCORER_TIMEOUT" envDefault:"10s"`

	// PostgreSQL, optional submission audit
	DatabaseURL string `env:"DATABASE_URL"`

	// Redis, optional feature lookups
	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Qdrant, optional vector similarity
	QdrantGRPCURL        string `env:"QDRANT_GRPC_URL"`
	QdrantAPIKey         string `env:"QDRANT_API_KEY"`
	QdrantMaxMessageSize int    `env:"QDRANT_MAX_MESSAGE_SIZE" envDefault:"16777216"`

	// Ollama
	OllamaURL            string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	OllamaLLMModel       string `env:"OLLAMA_LLM_MODEL" envDefault:"llama3.2"`

	// Auth, disabled when neither is set
	APIKeys   []string      `env:"API_KEYS" envSeparator:","`
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

// Port returns the port to listen on. VCAP_APP_PORT wins when set.
func (c *Config) Port() int {
	if c.VCAPAppPort > 0 {
		return c.VCAPAppPort
	}
	return c.HTTPPort
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
