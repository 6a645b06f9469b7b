package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"iprisk-backend/internal/conflicts"
	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/reports"
	"iprisk-backend/internal/runs"
	"iprisk-backend/internal/shared/storage/object"
	"iprisk-backend/internal/shared/telemetry"
	"iprisk-backend/internal/stages"
)

const reportArtifactName = "report-v1.json"

type reportInput struct {
	ConflictCount int `json:"conflictCount"`
}

type reportOutput struct {
	ReportID     string `json:"reportId"`
	Version      int    `json:"version"`
	RiskScore    int    `json:"riskScore"`
	RiskLevel    string `json:"riskLevel"`
	ActionCount  int    `json:"actionCount"`
	ArtifactKey  string `json:"artifactKey,omitempty"`
	SummaryChars int    `json:"summaryChars"`
}

type reportPrompt struct {
	Description string
	RiskScore   int
	RiskLevel   string
	Conflicts   []conflicts.Record
}

func (s *Service) report(ctx context.Context, run runs.Run, task invoker.Task) (stageResult, error) {
	records, err := s.Conflicts.ListByRun(ctx, run.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("list conflicts: %w", err)
	}
	if records == nil {
		records = []conflicts.Record{}
	}
	res := stageResult{input: reportInput{ConflictCount: len(records)}}

	severities := make([]int, 0, len(records))
	high := 0
	for _, rec := range records {
		severities = append(severities, rec.Severity)
		if rec.High() {
			high++
		}
	}
	score, level := RiskScore(severities)
	data := reportPrompt{
		Description: run.InventionDescription,
		RiskScore:   score,
		RiskLevel:   level,
		Conflicts:   records,
	}

	var summary string
	var plan reports.MitigationPlan
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		req, err := llm.NewRequest(llm.KindExecutiveSummary, data)
		if err != nil {
			return err
		}
		summary, err = llm.GenerateText(gctx, s.LLM, req)
		if err != nil {
			return fmt.Errorf("executive summary: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		req, err := llm.NewRequest(llm.KindMitigationPlan, data)
		if err != nil {
			return err
		}
		plan, err = llm.GenerateJSON(gctx, s.LLM, req, func(p reports.MitigationPlan) error {
			if cleanPlan(p).Empty() {
				return ErrEmptyPlan
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("mitigation plan: %w", err)
		}
		plan = cleanPlan(plan)
		return nil
	})
	if err := g.Wait(); err != nil {
		return res, err
	}

	report := reports.Report{
		ID:               uuid.NewString(),
		AnalysisRunID:    run.ID,
		Version:          reports.InitialVersion,
		ExecutiveSummary: summary,
		DetailedAnalysis: reports.DetailedAnalysis{
			Conflicts:      records,
			MitigationPlan: plan,
			Methodology: reports.Methodology{
				ConflictCount:     len(records),
				HighSeverityCount: high,
				MeanSeverity:      meanSeverity(severities),
				ScoreFormula:      ScoreFormula,
				SeverityThreshold: conflicts.MinSeverity,
			},
		},
		RiskScore: score,
		RiskLevel: level,
		CreatedAt: s.now(),
	}
	if s.Store != nil {
		key, err := s.writeArtifact(ctx, run, report)
		if err != nil {
			return res, err
		}
		report.ArtifactKey = key
	}
	res.output = reportOutput{
		ReportID:     report.ID,
		Version:      report.Version,
		RiskScore:    score,
		RiskLevel:    level,
		ActionCount:  len(plan.Immediate) + len(plan.NearTerm) + len(plan.LongTerm),
		ArtifactKey:  report.ArtifactKey,
		SummaryChars: len([]rune(summary)),
	}

	if err := s.Reports.Create(ctx, report); err != nil {
		if !errors.Is(err, reports.ErrAlreadyExists) {
			return res, fmt.Errorf("save report: %w", err)
		}
		// A redelivered task may find the report already saved before the
		// run update landed.
		telemetry.Warn("pipeline.report.exists", map[string]any{
			"request_id":      telemetry.RequestIDFromContext(ctx),
			"analysis_run_id": run.ID,
		})
	}

	generatedAt := s.now()
	updated, err := s.Runs.Transition(ctx, run.ID, runs.Update{
		Status:            reportedStatus(run),
		Progress:          runs.Progress(ProgressReported),
		RiskScore:         &score,
		RiskLevel:         level,
		ReportGeneratedAt: &generatedAt,
	})
	if err != nil {
		return res, fmt.Errorf("update run: %w", err)
	}
	res.run = updated
	res.next = nextTask(ctx, run.ID, stages.Delivery)
	return res, nil
}

// reportedStatus is where a run waits for Delivery: paid runs go to review,
// unpaid runs expose the preview.
func reportedStatus(run runs.Run) runs.Status {
	if run.Paid {
		return runs.StatusReviewing
	}
	return runs.StatusPreviewReady
}

func (s *Service) writeArtifact(ctx context.Context, run runs.Run, report reports.Report) (string, error) {
	key, err := object.ArtifactKey(run.UserID, run.ID, reportArtifactName)
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if _, err := s.Store.Put(ctx, key, "application/json", bytes.NewReader(body)); err != nil {
		return "", fmt.Errorf("store report artifact: %w", err)
	}
	return key, nil
}

func cleanPlan(p reports.MitigationPlan) reports.MitigationPlan {
	return reports.MitigationPlan{
		Immediate: trimAll(p.Immediate),
		NearTerm:  trimAll(p.NearTerm),
		LongTerm:  trimAll(p.LongTerm),
	}
}

func meanSeverity(severities []int) float64 {
	if len(severities) == 0 {
		return 0
	}
	sum := 0
	for _, s := range severities {
		sum += s
	}
	return float64(sum) / float64(len(severities))
}

// summaryExcerpt returns the first paragraph of an executive summary.
func summaryExcerpt(summary string) string {
	para, _, _ := strings.Cut(strings.TrimSpace(summary), "\n\n")
	return strings.TrimSpace(para)
}
