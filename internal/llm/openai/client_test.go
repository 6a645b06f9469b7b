package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/retry"
)

func newTestClient(t *testing.T, model string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := goopenai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	client, err := NewClientWithConfig(cfg, model)
	require.NoError(t, err)
	return client
}

func TestGenerateSendsJSONModeAndSystemPrompt(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, "gpt-4o-mini", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"queries\":[]} "}}],"usage":{"prompt_tokens":3,"completion_tokens":4}}`))
	})

	out, err := client.Generate(context.Background(), llm.Request{
		Kind:        llm.KindSearchQueries,
		System:      "be precise",
		Prompt:      "find prior art",
		JSON:        true,
		Temperature: llm.Temperature(0.2),
	})

	require.NoError(t, err)
	assert.Equal(t, `{"queries":[]}`, out)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.InDelta(t, 0.2, body["temperature"], 0.0001)
}

func TestGenerateOmitsTemperatureForReasoningModels(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, "gpt-5-mini", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"summary"}}]}`))
	})

	_, err := client.Generate(context.Background(), llm.Request{Prompt: "p", Temperature: llm.Temperature(0.3)})

	require.NoError(t, err)
	_, hasTemp := body["temperature"]
	assert.False(t, hasTemp)
	_, hasFormat := body["response_format"]
	assert.False(t, hasFormat)
}

func TestGenerateClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, permanent: true},
		{name: "bad request", status: http.StatusBadRequest, permanent: true},
		{name: "rate limited", status: http.StatusTooManyRequests, permanent: false},
		{name: "server error", status: http.StatusBadGateway, permanent: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "gpt-4o-mini", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test_error"}}`))
			})

			_, err := client.Generate(context.Background(), llm.Request{Prompt: "p"})

			require.Error(t, err)
			assert.Equal(t, tt.permanent, retry.IsPermanent(err))
		})
	}
}

func TestGenerateRejectsEmptyChoices(t *testing.T) {
	client := newTestClient(t, "gpt-4o-mini", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Generate(context.Background(), llm.Request{Prompt: "p"})
	assert.Error(t, err)
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	_, err := NewClient("", "gpt-4o-mini", 0)
	assert.Error(t, err)
	_, err = NewClient("key", " ", 0)
	assert.Error(t, err)
}

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "o3", model: "o3-mini", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isReasoningModel(tt.model))
		})
	}
}
