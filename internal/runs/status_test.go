package runs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRun() Run {
	return Run{
		ID:                   "run-1",
		UserID:               "user-1",
		InventionDescription: "A self-cleaning solar panel coating",
		Status:               InitialStatus,
		ProgressPercentage:   InitialProgress,
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusSearching, StatusAnalyzing, true},
		{StatusAnalyzing, StatusAnalyzing, true},
		{StatusAnalyzing, StatusReviewing, true},
		{StatusAnalyzing, StatusPreviewReady, true},
		{StatusReviewing, StatusComplete, true},
		{StatusReviewing, StatusPreviewReady, true},
		{StatusPreviewReady, StatusComplete, true},
		{StatusSearching, StatusFailed, true},
		{StatusReviewing, StatusFailed, true},
		{StatusSearching, StatusReviewing, false},
		{StatusReviewing, StatusAnalyzing, false},
		{StatusComplete, StatusAnalyzing, false},
		{StatusComplete, StatusFailed, false},
		{StatusFailed, StatusComplete, false},
		{StatusFailed, StatusFailed, false},
		{StatusSearching, Status("bogus"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestApplyHappyPathProgress(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run := newRun()
	seen := []int{run.ProgressPercentage}

	steps := []Update{
		{Status: StatusAnalyzing, Progress: Progress(25)},
		{Status: StatusAnalyzing, Progress: Progress(50)},
		{Status: StatusReviewing, Progress: Progress(90), RiskScore: Progress(86), RiskLevel: RiskCritical, ReportGeneratedAt: &now},
		{Status: StatusComplete, Progress: Progress(100)},
	}
	for _, u := range steps {
		next, err := run.Apply(u, now)
		require.NoError(t, err)
		run = next
		seen = append(seen, run.ProgressPercentage)
	}

	assert.Equal(t, []int{5, 25, 50, 90, 100}, seen)
	assert.Equal(t, StatusComplete, run.Status)
	require.NotNil(t, run.CompletedAt)
	require.NotNil(t, run.RiskScore)
	assert.Equal(t, 86, *run.RiskScore)
}

func TestApplyRejectsCompleteToAnalyzing(t *testing.T) {
	run := newRun()
	run.Status = StatusComplete
	run.ProgressPercentage = 100

	_, err := run.Apply(Update{Status: StatusAnalyzing, Progress: Progress(25)}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyFailedIsTerminal(t *testing.T) {
	run := newRun()
	failed, err := run.Apply(Update{Status: StatusFailed, ErrorMessage: "provider down\nretry exhausted"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "provider down retry exhausted", *failed.ErrorMessage)
	assert.Equal(t, InitialProgress, failed.ProgressPercentage)

	_, err = failed.Apply(Update{Status: StatusComplete, Progress: Progress(100)}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyRejectsProgressRegression(t *testing.T) {
	run := newRun()
	run.Status = StatusAnalyzing
	run.ProgressPercentage = 50

	_, err := run.Apply(Update{Status: StatusAnalyzing, Progress: Progress(25)}, time.Now())
	assert.ErrorIs(t, err, ErrProgressRegression)
}

func TestApplyProgressHundredOnlyWithComplete(t *testing.T) {
	run := newRun()
	run.Status = StatusReviewing
	run.ProgressPercentage = 90

	_, err := run.Apply(Update{Status: StatusReviewing, Progress: Progress(100)}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidProgress)

	_, err = run.Apply(Update{Status: StatusComplete, Progress: Progress(95)}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidProgress)
}

func TestApplyReportGeneratedAtSetOnce(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run := newRun()
	run.Status = StatusAnalyzing
	run.ProgressPercentage = 50
	run.ReportGeneratedAt = &first

	second := first.Add(time.Hour)
	_, err := run.Apply(Update{Status: StatusReviewing, Progress: Progress(90), ReportGeneratedAt: &second}, time.Now())
	assert.ErrorIs(t, err, ErrReportAlreadyGenerated)
}

func TestApplyRejectsRiskScoreOutOfRange(t *testing.T) {
	run := newRun()
	run.Status = StatusAnalyzing
	run.ProgressPercentage = 50

	_, err := run.Apply(Update{Status: StatusReviewing, Progress: Progress(90), RiskScore: Progress(101)}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidRiskScore)
}
