package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/retry"
	"iprisk-backend/internal/runs"
	"iprisk-backend/internal/stages"
)

type searchInput struct {
	DescriptionChars    int      `json:"descriptionChars"`
	Keywords            []string `json:"technicalKeywords"`
	ClassificationCodes []string `json:"classificationCodes"`
}

type searchOutput struct {
	Queries        []patents.Query `json:"queries"`
	ResultCount    int             `json:"resultCount"`
	CandidateCount int             `json:"candidateCount"`
}

type queryList struct {
	Queries []patents.Query `json:"queries"`
}

func (s *Service) search(ctx context.Context, run runs.Run, task invoker.Task) (stageResult, error) {
	in := InventionInput{
		Description:         run.InventionDescription,
		Keywords:            run.TechnicalKeywords,
		ClassificationCodes: run.ClassificationCodes,
	}
	res := stageResult{input: searchInput{
		DescriptionChars:    utf8.RuneCountInString(in.Description),
		Keywords:            in.Keywords,
		ClassificationCodes: in.ClassificationCodes,
	}}
	if err := ValidateInput(in); err != nil {
		return res, err
	}

	queries, err := s.generateQueries(ctx, in)
	if err != nil {
		return res, fmt.Errorf("generate queries: %w", err)
	}
	found, err := s.searchAll(ctx, queries)
	if err != nil {
		return res, fmt.Errorf("patent search: %w", err)
	}
	ranked := patents.Rank(found, patents.MaxRanked)
	res.output = searchOutput{Queries: queries, ResultCount: len(found), CandidateCount: len(ranked)}

	updated, err := s.Runs.Transition(ctx, run.ID, runs.Update{
		Status:   runs.StatusAnalyzing,
		Progress: runs.Progress(ProgressSearched),
	})
	if err != nil {
		return res, fmt.Errorf("update run: %w", err)
	}
	res.run = updated
	res.next = nextTask(ctx, run.ID, stages.Analysis)
	res.next.Candidates = ranked
	return res, nil
}

// generateQueries asks for diversified query formulations. Blank entries are
// dropped and at most ten are kept.
func (s *Service) generateQueries(ctx context.Context, in InventionInput) ([]patents.Query, error) {
	req, err := llm.NewRequest(llm.KindSearchQueries, in)
	if err != nil {
		return nil, err
	}
	out, err := llm.GenerateJSON(ctx, s.LLM, req, func(q queryList) error {
		if len(cleanQueries(q.Queries)) == 0 {
			return ErrNoQueries
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	queries := cleanQueries(out.Queries)
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	return queries, nil
}

func cleanQueries(in []patents.Query) []patents.Query {
	out := make([]patents.Query, 0, len(in))
	for _, q := range in {
		q.Text = strings.TrimSpace(q.Text)
		q.Focus = strings.TrimSpace(q.Focus)
		if q.Text != "" {
			out = append(out, q)
		}
	}
	return out
}

// searchAll runs every query against the patent client, each with its own retries.
func (s *Service) searchAll(ctx context.Context, queries []patents.Query) ([]patents.Candidate, error) {
	results := make([][]patents.Candidate, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			found, err := retry.Do(gctx, s.retryOptions(gctx, "patents"), func(ctx context.Context) ([]patents.Candidate, error) {
				return s.Patents.Search(ctx, q)
			})
			if err != nil {
				return fmt.Errorf("query %d: %w", i+1, err)
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []patents.Candidate
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}
