package execlog

import (
	"encoding/json"
	"time"

	"iprisk-backend/internal/stages"
)

// Outcomes recorded for a stage attempt.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Entry is one stage execution record. Entries are append-only.
type Entry struct {
	ID             string          `json:"id"`
	AnalysisRunID  string          `json:"analysisRunId"`
	StageName      stages.Name     `json:"stageName"`
	Outcome        string          `json:"outcome"`
	Input          json.RawMessage `json:"input,omitempty"`
	Output         json.RawMessage `json:"output,omitempty"`
	ErrorMessage   *string         `json:"errorMessage,omitempty"`
	DurationMillis int64           `json:"durationMillis"`
	CreatedAt      time.Time       `json:"createdAt"`
}
