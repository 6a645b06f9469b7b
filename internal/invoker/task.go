package invoker

import (
	"encoding/json"
	"time"

	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/stages"
)

// TaskVersion is the current wire version of Task.
const TaskVersion = 1

// Task is the payload handed to a stage, whatever the transport.
type Task struct {
	AnalysisRunID string              `json:"analysisRunId"`
	Stage         stages.Name         `json:"stage"`
	RequestID     string              `json:"requestId,omitempty"`
	EnqueuedAt    string              `json:"enqueuedAt"`
	Version       int                 `json:"version"`
	Candidates    []patents.Candidate `json:"candidates,omitempty"`
}

// NewTask stamps a task for stage with the current time and version.
func NewTask(runID string, stage stages.Name, requestID string) Task {
	return Task{
		AnalysisRunID: runID,
		Stage:         stage,
		RequestID:     requestID,
		EnqueuedAt:    time.Now().UTC().Format(time.RFC3339),
		Version:       TaskVersion,
	}
}

// EncodeTask returns the JSON representation of a task.
func EncodeTask(task Task) ([]byte, error) {
	return json.Marshal(task)
}

// DecodeTask parses a JSON payload into a Task.
func DecodeTask(payload []byte) (Task, error) {
	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}
