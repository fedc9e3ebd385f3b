package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const providerAnthropic = "anthropic"

// AnthropicConfig holds Anthropic Messages API configuration
type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// AnthropicClient adapts the Messages API to the chat contract
type AnthropicClient struct {
	client       anthropic.Client
	apiKey       string
	defaultModel string
}

// NewAnthropicClient creates a client; the SDK's own retries are disabled
// so a failed call surfaces immediately.
func NewAnthropicClient(cfg *AnthropicConfig) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.Model,
	}, nil
}

// Chat sends the conversation through the Messages API
func (c *AnthropicClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	system, msgs := anthropicMessages(req.Messages)
	if len(msgs) == 0 {
		return nil, fmt.Errorf("anthropic request needs at least one user message")
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    msgs,
		Temperature: anthropic.Float(req.Temperature),
	}
	if len(system) > 0 {
		params.System = system
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, upstream(providerAnthropic, apiErr.StatusCode, "messages call failed: %w", err)
		}
		return nil, upstream(providerAnthropic, 0, "messages call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, upstream(providerAnthropic, 0, "no text block in response")
	}

	return &Response{
		Content:    sb.String(),
		Model:      string(msg.Model),
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}

// Health checks the client is configured
func (c *AnthropicClient) Health() error {
	if c.apiKey == "" {
		return fmt.Errorf("API key is not configured")
	}
	return nil
}

// anthropicMessages splits system prompts out of the message list. The API
// requires the first turn to come from the user, so leading assistant turns
// left over from history trimming are dropped.
func anthropicMessages(in []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var msgs []anthropic.MessageParam
	for _, m := range in {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			if len(msgs) == 0 {
				continue
			}
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, msgs
}
