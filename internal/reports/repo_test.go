package reports

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(version int) Report {
	return Report{
		ID:               "rep-1",
		AnalysisRunID:    "run-1",
		Version:          version,
		ExecutiveSummary: "Moderate exposure.",
		DetailedAnalysis: DetailedAnalysis{
			MitigationPlan: MitigationPlan{Immediate: []string{"Commission FTO opinion"}},
			Methodology:    Methodology{ConflictCount: 2, MeanSeverity: 7.5},
		},
		RiskScore: 72,
		RiskLevel: "high",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryRepoLatest(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	_, err := repo.Latest(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Create(ctx, sampleReport(1)))
	require.NoError(t, repo.Create(ctx, sampleReport(2)))
	assert.ErrorIs(t, repo.Create(ctx, sampleReport(1)), ErrAlreadyExists)

	latest, err := repo.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
}

func TestMitigationPlanEmpty(t *testing.T) {
	assert.True(t, MitigationPlan{}.Empty())
	assert.False(t, MitigationPlan{LongTerm: []string{"x"}}.Empty())
}

func TestPGRepoCreateDuplicateVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rep := sampleReport(1)
	mock.ExpectExec("INSERT INTO reports").
		WithArgs(rep.ID, rep.AnalysisRunID, 1, rep.ExecutiveSummary, sqlmock.AnyArg(), 72, "high", nil, rep.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = (&PGRepo{DB: db}).Create(context.Background(), rep)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoLatestDecodesDetailedAnalysis(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "analysis_run_id", "version", "executive_summary", "detailed_analysis",
		"risk_score", "risk_level", "artifact_key", "created_at",
	}).AddRow("rep-1", "run-1", 1, "Summary", []byte(`{"mitigationPlan":{"immediate":["a"],"nearTerm":[],"longTerm":["b"]},"methodology":{"conflictCount":3}}`), 86, "critical", "reports/x/run-1/report.json", created)
	mock.ExpectQuery("SELECT (.+) FROM reports").WithArgs("run-1").WillReturnRows(rows)

	rep, err := (&PGRepo{DB: db}).Latest(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rep.DetailedAnalysis.MitigationPlan.Immediate)
	assert.Equal(t, 3, rep.DetailedAnalysis.Methodology.ConflictCount)
	assert.Equal(t, "reports/x/run-1/report.json", rep.ArtifactKey)
	require.NoError(t, mock.ExpectationsWereMet())
}
