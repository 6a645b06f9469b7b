package execlog

import (
	"context"
	"database/sql"
	"encoding/json"

	"iprisk-backend/internal/stages"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Append inserts the entry.
func (r *PGRepo) Append(ctx context.Context, entry Entry) error {
	if err := validate(entry); err != nil {
		return err
	}
	const query = `
INSERT INTO stage_execution_logs (
	id, analysis_run_id, stage_name, outcome, input, output, error_message, duration_millis, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.DB.ExecContext(ctx, query,
		entry.ID,
		entry.AnalysisRunID,
		string(entry.StageName),
		entry.Outcome,
		rawOrNil(entry.Input),
		rawOrNil(entry.Output),
		entry.ErrorMessage,
		entry.DurationMillis,
		entry.CreatedAt,
	)
	return err
}

// ListByRun returns the run's entries in creation order.
func (r *PGRepo) ListByRun(ctx context.Context, runID string) ([]Entry, error) {
	const query = `
SELECT id, analysis_run_id, stage_name, outcome, input, output, error_message, duration_millis, created_at
FROM stage_execution_logs
WHERE analysis_run_id = $1
ORDER BY created_at ASC, id ASC`

	rows, err := r.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var stage string
		var input, output []byte
		var errorMessage sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.AnalysisRunID,
			&stage,
			&e.Outcome,
			&input,
			&output,
			&errorMessage,
			&e.DurationMillis,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.StageName = stages.Name(stage)
		if len(input) > 0 {
			e.Input = json.RawMessage(input)
		}
		if len(output) > 0 {
			e.Output = json.RawMessage(output)
		}
		if errorMessage.Valid {
			e.ErrorMessage = &errorMessage.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

var _ Repo = (*PGRepo)(nil)
