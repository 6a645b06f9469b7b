package llm

import (
	"context"
	"errors"
)

// Kind names the generation contract a request expects back.
type Kind string

const (
	KindSearchQueries    Kind = "search_queries"
	KindConflictScore    Kind = "conflict_score"
	KindExecutiveSummary Kind = "executive_summary"
	KindMitigationPlan   Kind = "mitigation_plan"
)

// Request is one generation call. JSON asks the provider for a single JSON object.
type Request struct {
	Kind        Kind
	System      string
	Prompt      string
	JSON        bool
	Temperature *float32
}

// Generator abstracts a text generation provider.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

var (
	// ErrAllProvidersFailed is returned when every provider in a Chain failed.
	ErrAllProvidersFailed = errors.New("all generation providers failed")
	// ErrMalformedOutput marks provider output that does not match the expected shape.
	ErrMalformedOutput = errors.New("malformed generation output")
	// ErrEmptyOutput marks a blank completion.
	ErrEmptyOutput = errors.New("empty generation output")
	// ErrNoProviders is returned by a Chain with nothing configured.
	ErrNoProviders = errors.New("no generation providers configured")
)

// Temperature returns a pointer for Request.Temperature.
func Temperature(t float32) *float32 {
	return &t
}
