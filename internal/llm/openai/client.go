package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/retry"
	"iprisk-backend/internal/shared/telemetry"
)

const defaultTimeout = 120 * time.Second

// Client implements llm.Generator using OpenAI Chat Completions.
type Client struct {
	api   *goopenai.Client
	model string
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return NewClientWithConfig(cfg, model)
}

// NewClientWithConfig builds a client from an explicit go-openai config.
func NewClientWithConfig(cfg goopenai.ClientConfig, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("OPENAI_MODEL is required for OpenAI")
	}
	return &Client{api: goopenai.NewClientWithConfig(cfg), model: strings.TrimSpace(model)}, nil
}

func (c *Client) Name() string { return "openai" }

// Generate sends one chat completion and returns the first choice's content.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt})

	body := goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if req.JSON {
		body.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}
	if req.Temperature != nil && !isReasoningModel(c.model) {
		body.Temperature = *req.Temperature
	}

	started := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, body)
	if err != nil {
		return "", classify(err)
	}
	telemetry.Debug("llm.openai.response", map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"model":             c.model,
		"kind":              string(req.Kind),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"duration_ms":       time.Since(started).Milliseconds(),
	})
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai response empty content")
	}
	return content, nil
}

// classify marks client errors (other than timeouts and rate limits) permanent.
func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("openai error %d: %w", apiErr.HTTPStatusCode, err)
		if retry.PermanentStatus(apiErr.HTTPStatusCode) {
			return retry.Permanent(wrapped)
		}
		return wrapped
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		wrapped := fmt.Errorf("openai request failed %d: %w", reqErr.HTTPStatusCode, err)
		if retry.PermanentStatus(reqErr.HTTPStatusCode) {
			return retry.Permanent(wrapped)
		}
		return wrapped
	}
	if errors.Is(err, goopenai.ErrReasoningModelLimitationsOther) ||
		errors.Is(err, goopenai.ErrReasoningModelMaxTokensDeprecated) ||
		errors.Is(err, goopenai.ErrChatCompletionInvalidModel) {
		return retry.Permanent(fmt.Errorf("openai request rejected: %w", err))
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return fmt.Errorf("openai request timeout: %w", err)
	}
	return fmt.Errorf("openai request: %w", err)
}

func isReasoningModel(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

var _ llm.Generator = (*Client)(nil)
