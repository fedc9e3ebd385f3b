package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/chrisrobison/ouija/internal/config"
	"github.com/chrisrobison/ouija/internal/metrics"
)

// Roles used in chat messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is the interface for chat-completion providers
type Client interface {
	Chat(ctx context.Context, req *Request) (*Response, error)
	Health() error
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents a chat-completion request
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// Purpose labels the call in metrics and logs ("ask", "generate").
	Purpose string
}

// Response represents a completed reply
type Response struct {
	Content    string
	Model      string
	TokensUsed int
}

// UpstreamError folds every failure of the model collaborator (transport,
// non-2xx status, missing completion) into one type.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s upstream error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upstream error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(provider string, status int, format string, args ...any) *UpstreamError {
	return &UpstreamError{Provider: provider, StatusCode: status, Err: fmt.Errorf(format, args...)}
}

// New creates the client selected by cfg.Provider, bounded by the configured
// timeout and instrumented with latency metrics.
func New(ctx context.Context, cfg config.InferenceConfig) (Client, error) {
	inner, err := createClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &instrumented{inner: inner, timeout: cfg.GetTimeout()}, nil
}

func createClient(ctx context.Context, cfg config.InferenceConfig) (Client, error) {
	switch cfg.Provider {
	case "openai-compatible", "openai", "deepseek":
		return NewOpenAIClient(&OpenAIConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model, Timeout: cfg.GetTimeout()})
	case "ollama":
		return NewOllamaClient(&OllamaConfig{URL: cfg.BaseURL, DefaultModel: cfg.Model, Timeout: cfg.GetTimeout()})
	case "anthropic":
		return NewAnthropicClient(&AnthropicConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model})
	case "gemini":
		return NewGeminiClient(ctx, &GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", cfg.Provider)
	}
}

type instrumented struct {
	inner   Client
	timeout time.Duration
}

func (c *instrumented) Chat(ctx context.Context, req *Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = "chat"
	}

	start := time.Now()
	res, err := c.inner.Chat(ctx, req)
	metrics.InferenceLatency.WithLabelValues(purpose).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.InferenceErrors.WithLabelValues(purpose).Inc()
	}
	return res, err
}

func (c *instrumented) Health() error {
	return c.inner.Health()
}
