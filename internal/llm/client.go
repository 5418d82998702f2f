// Package llm wraps the chat-completions transport used by the query
// rewriter and the answer synthesizer.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/doku-labs/dokuchat/internal/domain"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AgentConfig describes one chat agent endpoint.
type AgentConfig struct {
	Endpoint    string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
}

// ChatAPI is the subset of the OpenAI client the chat client needs.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client calls a single chat agent. Agents share the client code but carry
// their own endpoint, model and sampling settings.
type Client struct {
	api        ChatAPI
	model      string
	temp       float32
	timeout    time.Duration
	maxRetries int
}

// NewClient creates a chat client for cfg. The endpoint is any
// OpenAI-compatible server; the /v1 path segment is appended here.
func NewClient(cfg AgentConfig) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Model == "" {
		return nil, domain.ErrAgentNotConfigured
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "unused"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/") + "/v1"

	return NewClientWithAPI(openai.NewClientWithConfig(clientCfg), cfg), nil
}

// NewClientWithAPI creates a chat client over an existing API, used by tests.
func NewClientWithAPI(api ChatAPI, cfg AgentConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		api:        api,
		model:      cfg.Model,
		temp:       cfg.Temperature,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

// Chat sends messages to the agent and returns the first completion text.
// Transient failures are retried within the configured budget.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temp,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("chat completion returned no choices")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("chat completion failed after %d attempts: %w", c.maxRetries, lastErr)
}
