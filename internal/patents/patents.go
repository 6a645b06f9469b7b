package patents

import (
	"context"
	"sort"
	"strings"
)

// Legal status values understood by severity weighting.
const (
	StatusActive  = "active"
	StatusPending = "pending"
	StatusExpired = "expired"
)

// MaxRanked bounds the candidate list handed to conflict analysis.
const MaxRanked = 50

// Query is one search formulation.
type Query struct {
	Text  string `json:"text"`
	Focus string `json:"focus,omitempty"`
}

// Candidate is one prior-art reference returned by a search.
type Candidate struct {
	PatentNumber string  `json:"patentNumber"`
	Title        string  `json:"title"`
	Assignee     string  `json:"assignee"`
	FilingDate   string  `json:"filingDate"`
	Abstract     string  `json:"abstract,omitempty"`
	LegalStatus  string  `json:"legalStatus"`
	Relevance    float64 `json:"relevance"`
}

// Client searches a patent database.
type Client interface {
	Search(ctx context.Context, q Query) ([]Candidate, error)
}

// NormalizeNumber upper-cases a patent number and drops separators so
// "us 10,123,456 b2" and "US10123456B2" compare equal.
func NormalizeNumber(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeStatus maps provider status strings onto the known values.
func NormalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "active", "granted", "in force", "alive":
		return StatusActive
	case "pending", "application", "published", "filed":
		return StatusPending
	case "":
		return ""
	default:
		return StatusExpired
	}
}

// Rank deduplicates by patent number keeping the highest relevance, orders by
// relevance descending (ties by patent number) and keeps at most limit entries.
func Rank(candidates []Candidate, limit int) []Candidate {
	best := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		key := NormalizeNumber(c.PatentNumber)
		if key == "" {
			continue
		}
		c.PatentNumber = key
		if prev, ok := best[key]; ok && prev.Relevance >= c.Relevance {
			continue
		}
		best[key] = c
	}
	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].PatentNumber < out[j].PatentNumber
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
