package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"iprisk-backend/internal/conflicts"
	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/runs"
	"iprisk-backend/internal/stages"
)

type analysisInput struct {
	CandidateCount int      `json:"candidateCount"`
	Scored         []string `json:"scored"`
}

type analysisOutput struct {
	Scored    int `json:"scored"`
	Persisted int `json:"persisted"`
	High      int `json:"high"`
	Medium    int `json:"medium"`
	Discarded int `json:"discarded"`
}

type scoringPrompt struct {
	Description  string
	PatentNumber string
	Title        string
	Assignee     string
	LegalStatus  string
	Abstract     string
}

type conflictScore struct {
	OverlapPercentage float64 `json:"overlapPercentage"`
	Description       string  `json:"description"`
	Likelihood        string  `json:"likelihood"`
}

// overlap is the scored overlap rounded to a whole percentage.
func (c conflictScore) overlap() int {
	return int(math.Round(c.OverlapPercentage))
}

func (s *Service) analyze(ctx context.Context, run runs.Run, task invoker.Task) (stageResult, error) {
	candidates := task.Candidates
	if limit := s.maxCandidates(); len(candidates) > limit {
		candidates = candidates[:limit]
	}
	numbers := make([]string, 0, len(candidates))
	for _, c := range candidates {
		numbers = append(numbers, c.PatentNumber)
	}
	res := stageResult{input: analysisInput{CandidateCount: len(task.Candidates), Scored: numbers}}

	limiter := s.scoringLimiter()
	var out analysisOutput
	records := make([]conflicts.Record, 0, len(candidates))
	for _, c := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			return res, err
		}
		score, err := s.scoreCandidate(ctx, run.InventionDescription, c)
		if err != nil {
			res.output = out
			return res, fmt.Errorf("score %s: %w", c.PatentNumber, err)
		}
		out.Scored++

		severity := Severity(score.overlap(), c.LegalStatus, score.Likelihood)
		if severity < conflicts.MinSeverity {
			out.Discarded++
			continue
		}
		if severity >= conflicts.HighSeverity {
			out.High++
		} else {
			out.Medium++
		}
		records = append(records, conflicts.Record{
			ID:                uuid.NewString(),
			AnalysisRunID:     run.ID,
			PatentNumber:      c.PatentNumber,
			Title:             c.Title,
			Assignee:          c.Assignee,
			FilingDate:        c.FilingDate,
			Severity:          severity,
			OverlapPercentage: score.overlap(),
			Description:       score.Description,
			Likelihood:        score.Likelihood,
			LegalStatus:       patents.NormalizeStatus(c.LegalStatus),
			CreatedAt:         s.now(),
		})
	}
	out.Persisted = len(records)
	res.output = out

	if len(records) > 0 {
		if err := s.Conflicts.SaveAll(ctx, records); err != nil {
			return res, fmt.Errorf("save conflicts: %w", err)
		}
	}

	updated, err := s.Runs.Transition(ctx, run.ID, runs.Update{
		Status:   runs.StatusAnalyzing,
		Progress: runs.Progress(ProgressAnalyzed),
	})
	if err != nil {
		return res, fmt.Errorf("update run: %w", err)
	}
	res.run = updated
	res.next = nextTask(ctx, run.ID, stages.Report)
	return res, nil
}

// scoringLimiter paces per-candidate scoring calls. The first call is not delayed.
func (s *Service) scoringLimiter() *rate.Limiter {
	interval := s.ScoringInterval
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func (s *Service) scoreCandidate(ctx context.Context, description string, c patents.Candidate) (conflictScore, error) {
	req, err := llm.NewRequest(llm.KindConflictScore, scoringPrompt{
		Description:  description,
		PatentNumber: c.PatentNumber,
		Title:        c.Title,
		Assignee:     c.Assignee,
		LegalStatus:  c.LegalStatus,
		Abstract:     c.Abstract,
	})
	if err != nil {
		return conflictScore{}, err
	}
	score, err := llm.GenerateJSON(ctx, s.LLM, req, validateScore)
	if err != nil {
		return conflictScore{}, err
	}
	score.Likelihood = strings.ToLower(strings.TrimSpace(score.Likelihood))
	score.Description = strings.TrimSpace(score.Description)
	return score, nil
}

func validateScore(score conflictScore) error {
	if score.OverlapPercentage < 0 || score.OverlapPercentage > 100 {
		return fmt.Errorf("%w: overlap %g", ErrInvalidScore, score.OverlapPercentage)
	}
	switch strings.ToLower(strings.TrimSpace(score.Likelihood)) {
	case LikelihoodLow, LikelihoodMedium, LikelihoodHigh:
		return nil
	default:
		return fmt.Errorf("%w: likelihood %q", ErrInvalidScore, score.Likelihood)
	}
}
