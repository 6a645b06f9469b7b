package pipeline

import (
	"math"
	"strings"

	"iprisk-backend/internal/conflicts"
	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/runs"
)

// Likelihood values a conflict score may carry.
const (
	LikelihoodLow    = "low"
	LikelihoodMedium = "medium"
	LikelihoodHigh   = "high"
)

// ScoreFormula is recorded in report methodology.
const ScoreFormula = "clamp(round(meanSeverity*7 + highSeverityCount*10), 0, 100)"

func statusWeight(legalStatus string) float64 {
	switch patents.NormalizeStatus(legalStatus) {
	case patents.StatusActive:
		return 20
	case patents.StatusPending:
		return 10
	default:
		return 0
	}
}

func likelihoodWeight(likelihood string) float64 {
	switch strings.ToLower(strings.TrimSpace(likelihood)) {
	case LikelihoodHigh:
		return 30
	case LikelihoodMedium:
		return 15
	default:
		return 0
	}
}

// Severity maps an overlap estimate onto the 0-10 severity scale.
func Severity(overlap int, legalStatus, likelihood string) int {
	raw := float64(overlap)*0.4 + statusWeight(legalStatus) + likelihoodWeight(likelihood)
	return clamp(int(math.Round(raw/10)), 0, conflicts.MaxSeverity)
}

// RiskScore aggregates persisted severities into a 0-100 score and its level.
// An empty set scores 0.
func RiskScore(severities []int) (int, string) {
	if len(severities) == 0 {
		return 0, RiskLevel(0)
	}
	sum, high := 0, 0
	for _, s := range severities {
		sum += s
		if s >= conflicts.HighSeverity {
			high++
		}
	}
	mean := float64(sum) / float64(len(severities))
	score := clamp(int(math.Round(mean*7+float64(high*10))), 0, 100)
	return score, RiskLevel(score)
}

// RiskLevel buckets a score: up to 30 low, 60 medium, 85 high, above that critical.
func RiskLevel(score int) string {
	switch {
	case score <= 30:
		return runs.RiskLow
	case score <= 60:
		return runs.RiskMedium
	case score <= 85:
		return runs.RiskHigh
	default:
		return runs.RiskCritical
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
