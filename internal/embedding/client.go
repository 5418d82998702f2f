package embedding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/doku-labs/dokuchat/internal/domain"
)

const (
	// DefaultMaxTokens bounds each text sent to the embedding endpoint.
	DefaultMaxTokens = 512

	// approxRunesPerToken sizes the fallback cutoff when no tokenizer is
	// available.
	approxRunesPerToken = 4

	callTimeout = 30 * time.Second
	maxAttempts = 2
)

// ErrCountMismatch is returned when the endpoint acknowledges a request but
// returns a different number of vectors than texts submitted.
var ErrCountMismatch = errors.New("embedding response count does not match input count")

// EmbeddingAPI is the slice of the OpenAI-compatible client the gateway
// needs. Satisfied by *openai.Client.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config configures the embedding gateway.
type Config struct {
	Endpoint  string // base URL without the /v1 suffix
	Model     string
	APIKey    string
	MaxTokens int
}

// Client turns text into fixed-length vectors via a remote
// OpenAI-compatible /v1/embeddings endpoint. Texts are truncated to the
// configured token budget before being sent so oversized inputs never fail
// the request.
type Client struct {
	api       EmbeddingAPI
	model     string
	maxTokens int

	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
}

// NewClient creates a Client talking to cfg.Endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Model == "" {
		return nil, domain.ErrEmbeddingNotConfigured
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/") + "/v1"

	return NewClientWithAPI(openai.NewClientWithConfig(apiCfg), cfg.Model, cfg.MaxTokens), nil
}

// NewClientWithAPI builds a Client around an existing API implementation.
func NewClientWithAPI(api EmbeddingAPI, model string, maxTokens int) *Client {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Client{api: api, model: model, maxTokens: maxTokens}
}

// Embed returns one vector per input text, in input order, or an error.
// Partial responses are rejected so callers can never persist skewed
// (text, vector) pairs.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	input := make([]string, len(texts))
	for i, text := range texts {
		input[i] = c.truncate(text)
	}

	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          openai.EmbeddingModel(c.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	var resp openai.EmbeddingResponse
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		resp, err = c.api.CreateEmbeddings(callCtx, req)
		cancel()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(resp.Data), len(texts))
	}

	// The API reports per-item indices; order by them rather than trusting
	// response order.
	data := make([]openai.Embedding, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, item := range data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyText
	}
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// truncate cuts text to the configured token budget using the cl100k_base
// encoding, an approximation of the remote model's own tokenizer. When the
// encoding cannot be loaded the cutoff degrades to a rune count estimate;
// the budget only exists to keep requests under the endpoint's limit.
func (c *Client) truncate(text string) string {
	c.encoderOnce.Do(func() {
		encoder, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Printf("embedding: tokenizer unavailable, using rune estimate: %v", err)
			return
		}
		c.encoder = encoder
	})

	if c.encoder == nil {
		runes := []rune(text)
		limit := c.maxTokens * approxRunesPerToken
		if len(runes) <= limit {
			return text
		}
		return string(runes[:limit])
	}

	tokens := c.encoder.Encode(text, nil, nil)
	if len(tokens) <= c.maxTokens {
		return text
	}
	return c.encoder.Decode(tokens[:c.maxTokens])
}
