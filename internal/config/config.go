package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all externally supplied settings. Everything is validated at
// startup; the pipeline itself never re-checks these invariants.
type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Corpus ingestion
	CorpusDir      string `envconfig:"CORPUS_DIR"`
	Collection     string `envconfig:"COLLECTION" default:"wiki"`
	ChunkSize      int    `envconfig:"CHUNK_SIZE" default:"2000"`
	ChunkOverlap   int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	EnableChunking bool   `envconfig:"ENABLE_CHUNKING" default:"true"`

	// Retrieval
	RetrievalK          int     `envconfig:"RETRIEVAL_K" default:"5"`
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.5"`
	ContextMaxChars     int     `envconfig:"CONTEXT_MAX_CHARS" default:"30000"`
	RewriterTurns       int     `envconfig:"QUERY_REWRITER_TURNS" default:"2"`

	// Embedding model (OpenAI-compatible /v1/embeddings endpoint)
	EmbeddingEndpoint  string `envconfig:"EMBEDDING_ENDPOINT"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingAPIKey    string `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingMaxTokens int    `envconfig:"EMBEDDING_MAX_TOKENS" default:"512"`

	// Answering agent (OpenAI-compatible chat endpoint)
	ChatEndpoint   string  `envconfig:"CHAT_ENDPOINT"`
	ChatModel      string  `envconfig:"CHAT_MODEL"`
	ChatAPIKey     string  `envconfig:"CHAT_API_KEY"`
	Temperature    float64 `envconfig:"TEMP" default:"0"`
	ChatTimeoutSec int     `envconfig:"CHAT_TIMEOUT_SECONDS" default:"60"`
	ChatMaxRetries int     `envconfig:"CHAT_MAX_RETRIES" default:"2"`
}

// Load reads configuration from the environment (and an optional .env file)
// and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOKUCHAT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is Load or die.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks the invariants the rest of the system relies on. Chunking
// in particular assumes overlap < size and never re-validates at split time.
func (c *Config) Validate() error {
	if c.EnableChunking {
		if c.ChunkSize <= 0 {
			return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
		}
		if c.ChunkOverlap < 0 {
			return fmt.Errorf("CHUNK_OVERLAP must not be negative, got %d", c.ChunkOverlap)
		}
		if c.ChunkOverlap >= c.ChunkSize {
			return fmt.Errorf("CHUNK_OVERLAP (%d) must be strictly less than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
		}
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("RETRIEVAL_K must be positive, got %d", c.RetrievalK)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in [0,1], got %g", c.SimilarityThreshold)
	}
	if c.ContextMaxChars <= 0 {
		return fmt.Errorf("CONTEXT_MAX_CHARS must be positive, got %d", c.ContextMaxChars)
	}
	if c.RewriterTurns < 0 {
		return fmt.Errorf("QUERY_REWRITER_TURNS must not be negative, got %d", c.RewriterTurns)
	}
	if c.EmbeddingMaxTokens <= 0 {
		return fmt.Errorf("EMBEDDING_MAX_TOKENS must be positive, got %d", c.EmbeddingMaxTokens)
	}
	if c.ChatMaxRetries < 1 {
		return fmt.Errorf("CHAT_MAX_RETRIES must be at least 1, got %d", c.ChatMaxRetries)
	}
	return nil
}

// HasEmbedding reports whether the embedding gateway can be constructed.
func (c *Config) HasEmbedding() bool {
	return c.EmbeddingEndpoint != "" && c.EmbeddingModel != ""
}

// HasChatAgent reports whether the answering agent can be constructed.
func (c *Config) HasChatAgent() bool {
	return c.ChatEndpoint != "" && c.ChatModel != ""
}

// LogStatus prints the configuration with secrets masked.
func (c *Config) LogStatus() {
	log.Printf("config: collection=%q corpus_dir=%q k=%d threshold=%.2f context_max_chars=%d",
		c.Collection, c.CorpusDir, c.RetrievalK, c.SimilarityThreshold, c.ContextMaxChars)
	log.Printf("config: chunking=%t size=%d overlap=%d rewriter_turns=%d",
		c.EnableChunking, c.ChunkSize, c.ChunkOverlap, c.RewriterTurns)
	log.Printf("config: embedding endpoint=%s model=%s key=%s max_tokens=%d",
		orUnset(c.EmbeddingEndpoint), orUnset(c.EmbeddingModel), masked(c.EmbeddingAPIKey), c.EmbeddingMaxTokens)
	log.Printf("config: chat endpoint=%s model=%s key=%s temp=%.2f timeout=%ds retries=%d",
		orUnset(c.ChatEndpoint), orUnset(c.ChatModel), masked(c.ChatAPIKey), c.Temperature, c.ChatTimeoutSec, c.ChatMaxRetries)
}

func orUnset(v string) string {
	if v == "" {
		return "[NOT SET]"
	}
	return v
}

func masked(v string) string {
	if v == "" {
		return "[MISSING]"
	}
	return "[CONFIGURED]"
}
