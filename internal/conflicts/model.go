package conflicts

import "time"

// Severity bounds. Records below MinSeverity are never stored.
const (
	MinSeverity  = 4
	MaxSeverity  = 10
	HighSeverity = 7
)

// Record is one prior-art conflict persisted for a run.
type Record struct {
	ID                string    `json:"id"`
	AnalysisRunID     string    `json:"analysisRunId"`
	PatentNumber      string    `json:"patentNumber"`
	Title             string    `json:"title"`
	Assignee          string    `json:"assignee"`
	FilingDate        string    `json:"filingDate"`
	Severity          int       `json:"severity"`
	OverlapPercentage int       `json:"overlapPercentage"`
	Description       string    `json:"description"`
	Likelihood        string    `json:"likelihood"`
	LegalStatus       string    `json:"legalStatus"`
	CreatedAt         time.Time `json:"createdAt"`
}

// High reports whether the record falls in the high severity band.
func (r Record) High() bool {
	return r.Severity >= HighSeverity
}
