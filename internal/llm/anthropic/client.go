package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcanthropic "github.com/tmc/langchaingo/llms/anthropic"

	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/retry"
	"iprisk-backend/internal/shared/telemetry"
)

const (
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 2048
)

// Client implements llm.Generator on top of a langchaingo model.
type Client struct {
	model     llms.Model
	modelName string
	maxTokens int
}

// Options configures the Anthropic provider.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewClient constructs an Anthropic Messages API client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("ANTHROPIC_MODEL is required for Anthropic")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	lcOpts := []lcanthropic.Option{
		lcanthropic.WithToken(opts.APIKey),
		lcanthropic.WithModel(opts.Model),
		lcanthropic.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		lcOpts = append(lcOpts, lcanthropic.WithBaseURL(base))
	}
	model, err := lcanthropic.New(lcOpts...)
	if err != nil {
		return nil, err
	}
	return NewWithModel(model, opts.Model), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(model llms.Model, modelName string) *Client {
	return &Client{model: model, modelName: modelName, maxTokens: defaultMaxTokens}
}

func (c *Client) Name() string { return "anthropic" }

// Generate sends the system and user prompt as one Messages call.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	callOpts := []llms.CallOption{llms.WithMaxTokens(c.maxTokens)}
	if req.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(float64(*req.Temperature)))
	}

	started := time.Now()
	resp, err := c.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", classify(err)
	}
	telemetry.Debug("llm.anthropic.response", map[string]any{
		"request_id":  telemetry.RequestIDFromContext(ctx),
		"model":       c.modelName,
		"kind":        string(req.Kind),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	if resp == nil {
		return "", fmt.Errorf("anthropic response missing content")
	}
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		if content := strings.TrimSpace(choice.Content); content != "" {
			return content, nil
		}
	}
	return "", fmt.Errorf("anthropic response empty content")
}

var statusPattern = regexp.MustCompile(`status code: (\d{3})`)

// classify reads the HTTP status out of the langchaingo error text, which is
// the only place it is exposed.
func classify(err error) error {
	match := statusPattern.FindStringSubmatch(err.Error())
	if match == nil {
		return fmt.Errorf("anthropic request: %w", err)
	}
	code, _ := strconv.Atoi(match[1])
	wrapped := fmt.Errorf("anthropic error %d: %w", code, err)
	if retry.PermanentStatus(code) {
		return retry.Permanent(wrapped)
	}
	return wrapped
}

var _ llm.Generator = (*Client)(nil)
