package invoker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/stages"
)

func TestTaskRoundTrip(t *testing.T) {
	task := Task{
		AnalysisRunID: "run-123",
		Stage:         stages.Analysis,
		RequestID:     "request-456",
		EnqueuedAt:    "2026-01-30T22:00:00Z",
		Version:       TaskVersion,
		Candidates:    []patents.Candidate{{PatentNumber: "US1", Relevance: 0.5}},
	}

	payload, err := EncodeTask(task)
	require.NoError(t, err)

	got, err := DecodeTask(payload)
	require.NoError(t, err)
	assert.Equal(t, task, got)
}

func TestNewTaskStampsVersionAndTime(t *testing.T) {
	task := NewTask("run-1", stages.Search, "req")
	assert.Equal(t, TaskVersion, task.Version)
	assert.NotEmpty(t, task.EnqueuedAt)
	assert.Equal(t, stages.Search, task.Stage)
}

func TestValidateTask(t *testing.T) {
	assert.ErrorIs(t, validateTask(Task{Stage: stages.Search}), ErrInvalidTask)
	assert.ErrorIs(t, validateTask(Task{AnalysisRunID: "r", Stage: "bogus"}), ErrInvalidTask)
	assert.NoError(t, validateTask(Task{AnalysisRunID: "r", Stage: stages.Report}))
}
