package reports

import (
	"time"

	"iprisk-backend/internal/conflicts"
)

// InitialVersion is the version of the first report generated for a run.
const InitialVersion = 1

// Report is the synthesized risk report for a run.
type Report struct {
	ID               string           `json:"id"`
	AnalysisRunID    string           `json:"analysisRunId"`
	Version          int              `json:"version"`
	ExecutiveSummary string           `json:"executiveSummary"`
	DetailedAnalysis DetailedAnalysis `json:"detailedAnalysis"`
	RiskScore        int              `json:"riskScore"`
	RiskLevel        string           `json:"riskLevel"`
	ArtifactKey      string           `json:"artifactKey,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// DetailedAnalysis is the structured body of a report.
type DetailedAnalysis struct {
	Conflicts      []conflicts.Record `json:"conflicts"`
	MitigationPlan MitigationPlan     `json:"mitigationPlan"`
	Methodology    Methodology        `json:"methodology"`
}

// MitigationPlan groups recommended actions by horizon.
type MitigationPlan struct {
	Immediate []string `json:"immediate"`
	NearTerm  []string `json:"nearTerm"`
	LongTerm  []string `json:"longTerm"`
}

// Empty reports whether the plan has no actions at all.
func (p MitigationPlan) Empty() bool {
	return len(p.Immediate) == 0 && len(p.NearTerm) == 0 && len(p.LongTerm) == 0
}

// Methodology records how the score was produced.
type Methodology struct {
	ConflictCount     int     `json:"conflictCount"`
	HighSeverityCount int     `json:"highSeverityCount"`
	MeanSeverity      float64 `json:"meanSeverity"`
	ScoreFormula      string  `json:"scoreFormula"`
	SeverityThreshold int     `json:"severityThreshold"`
}
