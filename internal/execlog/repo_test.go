package execlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iprisk-backend/internal/stages"
)

func entry(id string, stage stages.Name, outcome string) Entry {
	return Entry{
		ID:             id,
		AnalysisRunID:  "run-1",
		StageName:      stage,
		Outcome:        outcome,
		Input:          json.RawMessage(`{"analysisRunId":"run-1"}`),
		DurationMillis: 12,
		CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryRepoKeepsAppendOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Append(ctx, entry("e1", stages.Search, OutcomeSuccess)))
	require.NoError(t, repo.Append(ctx, entry("e2", stages.Analysis, OutcomeFailed)))

	list, err := repo.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, stages.Search, list[0].StageName)
	assert.Equal(t, OutcomeFailed, list[1].Outcome)
}

func TestAppendValidates(t *testing.T) {
	repo := NewMemoryRepo()
	assert.ErrorIs(t, repo.Append(context.Background(), entry("e1", stages.Name("billing"), OutcomeSuccess)), ErrInvalidEntry)
	assert.ErrorIs(t, repo.Append(context.Background(), entry("e1", stages.Search, "partial")), ErrInvalidEntry)

	bad := entry("e1", stages.Search, OutcomeSuccess)
	bad.AnalysisRunID = ""
	assert.ErrorIs(t, repo.Append(context.Background(), bad), ErrInvalidEntry)
}

func TestPGRepoAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := entry("e1", stages.Report, OutcomeFailed)
	msg := "provider exhausted"
	e.ErrorMessage = &msg

	mock.ExpectExec("INSERT INTO stage_execution_logs").
		WithArgs("e1", "run-1", "report", "failed", []byte(e.Input), nil, "provider exhausted", int64(12), e.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, (&PGRepo{DB: db}).Append(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoListByRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "analysis_run_id", "stage_name", "outcome", "input", "output", "error_message", "duration_millis", "created_at",
	}).
		AddRow("e1", "run-1", "search", "success", []byte(`{}`), []byte(`{"candidates":12}`), nil, int64(40), created).
		AddRow("e2", "run-1", "analysis", "failed", []byte(`{}`), nil, "timeout", int64(90), created.Add(time.Second))
	mock.ExpectQuery("SELECT (.+) FROM stage_execution_logs (.+) ORDER BY created_at ASC").WithArgs("run-1").WillReturnRows(rows)

	list, err := (&PGRepo{DB: db}).ListByRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.JSONEq(t, `{"candidates":12}`, string(list[0].Output))
	assert.Nil(t, list[0].ErrorMessage)
	require.NotNil(t, list[1].ErrorMessage)
	assert.Equal(t, "timeout", *list[1].ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}
