package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Info("pipeline.stage.completed", map[string]any{
		"analysis_run_id": "run-1",
		"stage":           "search",
		"duration_ms":     12.5,
	})

	var payload map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload))
	assert.Equal(t, "info", payload["level"])
	assert.Equal(t, "pipeline.stage.completed", payload["msg"])
	assert.Equal(t, "run-1", payload["analysis_run_id"])
	assert.Equal(t, "search", payload["stage"])
	assert.Contains(t, payload, "ts")
}

func TestSensitiveKeysAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Error("notify.send_failed", map[string]any{
		"recipient_email": "a@example.com",
		"api_key":         "sk-123",
		"error":           errors.New("boom"),
	})

	line := buf.String()
	assert.NotContains(t, line, "a@example.com")
	assert.NotContains(t, line, "sk-123")
	assert.True(t, strings.Contains(line, `"error":"boom"`))
}
