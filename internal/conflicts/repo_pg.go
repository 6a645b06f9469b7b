package conflicts

import (
	"context"
	"database/sql"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// SaveAll inserts records in one transaction.
func (r *PGRepo) SaveAll(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validate(records); err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
INSERT INTO conflict_records (
	id, analysis_run_id, patent_number, title, assignee, filing_date,
	severity, overlap_percentage, description, likelihood, legal_status, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (analysis_run_id, patent_number) DO NOTHING`

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query,
			rec.ID,
			rec.AnalysisRunID,
			rec.PatentNumber,
			rec.Title,
			rec.Assignee,
			rec.FilingDate,
			rec.Severity,
			rec.OverlapPercentage,
			rec.Description,
			rec.Likelihood,
			rec.LegalStatus,
			rec.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByRun returns the run's records, most severe first.
func (r *PGRepo) ListByRun(ctx context.Context, runID string) ([]Record, error) {
	const query = `
SELECT id, analysis_run_id, patent_number, title, assignee, filing_date,
       severity, overlap_percentage, description, likelihood, legal_status, created_at
FROM conflict_records
WHERE analysis_run_id = $1
ORDER BY severity DESC, patent_number ASC`

	rows, err := r.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.AnalysisRunID,
			&rec.PatentNumber,
			&rec.Title,
			&rec.Assignee,
			&rec.FilingDate,
			&rec.Severity,
			&rec.OverlapPercentage,
			&rec.Description,
			&rec.Likelihood,
			&rec.LegalStatus,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
