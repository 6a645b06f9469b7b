package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectRun = `
SELECT id, user_id, invention_description, technical_keywords, classification_codes,
       status, progress_percentage, risk_score, risk_level, report_generated_at,
       paid, notification_sent, completed_at, error_message, created_at, updated_at
FROM analysis_runs`

// Create inserts a new run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	const query = `
INSERT INTO analysis_runs (
	id, user_id, invention_description, technical_keywords, classification_codes,
	status, progress_percentage, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	keywords, err := marshalList(run.TechnicalKeywords)
	if err != nil {
		return err
	}
	codes, err := marshalList(run.ClassificationCodes)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		run.ID,
		run.UserID,
		run.InventionDescription,
		keywords,
		codes,
		string(run.Status),
		run.ProgressPercentage,
		run.CreatedAt,
		run.UpdatedAt,
	)
	return err
}

// GetByID returns a run by ID.
func (r *PGRepo) GetByID(ctx context.Context, runID string) (Run, error) {
	run, err := scanRun(r.DB.QueryRowContext(ctx, selectRun+` WHERE id = $1`, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	return run, nil
}

// Transition locks the row, validates u against the stored state and writes
// the result conditioned on the status that was read.
func (r *PGRepo) Transition(ctx context.Context, runID string, u Update) (Run, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback()

	current, err := scanRun(tx.QueryRowContext(ctx, selectRun+` WHERE id = $1 FOR UPDATE`, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}

	next, err := current.Apply(u, time.Now().UTC())
	if err != nil {
		return Run{}, err
	}

	const update = `
UPDATE analysis_runs
SET status = $1,
    progress_percentage = $2,
    risk_score = $3,
    risk_level = $4,
    report_generated_at = $5,
    completed_at = $6,
    error_message = $7,
    updated_at = $8
WHERE id = $9 AND status = $10`

	res, err := tx.ExecContext(ctx, update,
		string(next.Status),
		next.ProgressPercentage,
		nullableInt(next.RiskScore),
		nullableString(next.RiskLevel),
		next.ReportGeneratedAt,
		next.CompletedAt,
		next.ErrorMessage,
		next.UpdatedAt,
		runID,
		string(current.Status),
	)
	if err != nil {
		return Run{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Run{}, ErrConcurrentUpdate
	}
	if err := tx.Commit(); err != nil {
		return Run{}, err
	}
	return next, nil
}

// MarkPaid flags the run as paid.
func (r *PGRepo) MarkPaid(ctx context.Context, runID string) error {
	return r.exec(ctx, `UPDATE analysis_runs SET paid = true, updated_at = now() WHERE id = $1`, runID)
}

// MarkNotificationSent records that the completion notification went out.
func (r *PGRepo) MarkNotificationSent(ctx context.Context, runID string) error {
	return r.exec(ctx, `UPDATE analysis_runs SET notification_sent = true, updated_at = now() WHERE id = $1`, runID)
}

func (r *PGRepo) exec(ctx context.Context, query string, runID string) error {
	res, err := r.DB.ExecContext(ctx, query, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser lists runs for a user ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error) {
	limit, offset = clampPage(limit, offset)

	rows, err := r.DB.QueryContext(ctx, selectRun+`
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var status string
	var keywords, codes []byte
	var riskScore sql.NullInt64
	var riskLevel sql.NullString
	var reportGeneratedAt, completedAt sql.NullTime
	var errorMessage sql.NullString
	if err := row.Scan(
		&run.ID,
		&run.UserID,
		&run.InventionDescription,
		&keywords,
		&codes,
		&status,
		&run.ProgressPercentage,
		&riskScore,
		&riskLevel,
		&reportGeneratedAt,
		&run.Paid,
		&run.NotificationSent,
		&completedAt,
		&errorMessage,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	if err := unmarshalList(keywords, &run.TechnicalKeywords); err != nil {
		return Run{}, fmt.Errorf("decode technical_keywords: %w", err)
	}
	if err := unmarshalList(codes, &run.ClassificationCodes); err != nil {
		return Run{}, fmt.Errorf("decode classification_codes: %w", err)
	}
	if riskScore.Valid {
		score := int(riskScore.Int64)
		run.RiskScore = &score
	}
	if riskLevel.Valid {
		run.RiskLevel = riskLevel.String
	}
	if reportGeneratedAt.Valid {
		run.ReportGeneratedAt = &reportGeneratedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errorMessage.Valid {
		run.ErrorMessage = &errorMessage.String
	}
	return run, nil
}

func marshalList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func unmarshalList(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

var _ Repo = (*PGRepo)(nil)
