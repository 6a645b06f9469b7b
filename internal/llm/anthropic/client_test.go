package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/retry"
)

func newServerClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Options{APIKey: "test-key", Model: "claude-test", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)
	return client
}

func TestGenerateSendsSystemAndUserMessages(t *testing.T) {
	var body map[string]any
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"{\"immediate\":[]}"}],"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":3}}`))
	})

	out, err := client.Generate(context.Background(), llm.Request{
		Kind:   llm.KindMitigationPlan,
		System: "be precise",
		Prompt: "plan please",
		JSON:   true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"immediate":[]}`, out)
	assert.Equal(t, "claude-test", body["model"])
	assert.Equal(t, "be precise", body["system"])
	assert.EqualValues(t, defaultMaxTokens, body["max_tokens"])
}

func TestGenerateClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, permanent: true},
		{name: "rate limited", status: http.StatusTooManyRequests, permanent: false},
		{name: "overloaded", status: 529, permanent: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"test","message":"nope"}}`))
			})

			_, err := client.Generate(context.Background(), llm.Request{Prompt: "p"})

			require.Error(t, err)
			assert.Equal(t, tt.permanent, retry.IsPermanent(err))
		})
	}
}

type stubModel struct {
	resp *llms.ContentResponse
	err  error
	opts llms.CallOptions
}

func (s *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, opt := range options {
		opt(&s.opts)
	}
	return s.resp, s.err
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestGeneratePassesTemperature(t *testing.T) {
	stub := &stubModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: " "}, {Content: "text"}}}}
	client := NewWithModel(stub, "claude-test")

	out, err := client.Generate(context.Background(), llm.Request{Prompt: "p", Temperature: llm.Temperature(0.5)})

	require.NoError(t, err)
	assert.Equal(t, "text", out)
	assert.InDelta(t, 0.5, stub.opts.Temperature, 0.0001)
}

func TestGenerateNetworkErrorIsTransient(t *testing.T) {
	client := NewWithModel(&stubModel{err: errors.New("connection reset")}, "claude-test")

	_, err := client.Generate(context.Background(), llm.Request{Prompt: "p"})

	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	_, err := NewClient(Options{Model: "m"})
	assert.Error(t, err)
	_, err = NewClient(Options{APIKey: "k"})
	assert.Error(t, err)
}
