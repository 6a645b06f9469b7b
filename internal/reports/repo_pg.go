package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a report.
func (r *PGRepo) Create(ctx context.Context, report Report) error {
	const query = `
INSERT INTO reports (
	id, analysis_run_id, version, executive_summary, detailed_analysis,
	risk_score, risk_level, artifact_key, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (analysis_run_id, version) DO NOTHING`

	detailed, err := json.Marshal(report.DetailedAnalysis)
	if err != nil {
		return fmt.Errorf("marshal detailed analysis: %w", err)
	}
	var artifactKey any
	if strings.TrimSpace(report.ArtifactKey) != "" {
		artifactKey = report.ArtifactKey
	}
	res, err := r.DB.ExecContext(ctx, query,
		report.ID,
		report.AnalysisRunID,
		report.Version,
		report.ExecutiveSummary,
		detailed,
		report.RiskScore,
		report.RiskLevel,
		artifactKey,
		report.CreatedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Latest returns the highest version report for the run.
func (r *PGRepo) Latest(ctx context.Context, runID string) (Report, error) {
	const query = `
SELECT id, analysis_run_id, version, executive_summary, detailed_analysis,
       risk_score, risk_level, artifact_key, created_at
FROM reports
WHERE analysis_run_id = $1
ORDER BY version DESC
LIMIT 1`

	var rep Report
	var detailed []byte
	var artifactKey sql.NullString
	err := r.DB.QueryRowContext(ctx, query, runID).Scan(
		&rep.ID,
		&rep.AnalysisRunID,
		&rep.Version,
		&rep.ExecutiveSummary,
		&detailed,
		&rep.RiskScore,
		&rep.RiskLevel,
		&artifactKey,
		&rep.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}
	if len(detailed) > 0 {
		if err := json.Unmarshal(detailed, &rep.DetailedAnalysis); err != nil {
			return Report{}, fmt.Errorf("decode detailed analysis: %w", err)
		}
	}
	if artifactKey.Valid {
		rep.ArtifactKey = artifactKey.String
	}
	return rep, nil
}

var _ Repo = (*PGRepo)(nil)
