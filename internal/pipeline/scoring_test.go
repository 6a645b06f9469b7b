package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/runs"
)

func TestSeverityWeights(t *testing.T) {
	cases := []struct {
		name       string
		overlap    int
		status     string
		likelihood string
		want       int
	}{
		{"active high", 90, patents.StatusActive, LikelihoodHigh, 9},
		{"expired medium", 10, patents.StatusExpired, LikelihoodMedium, 2},
		{"pending high", 50, patents.StatusPending, LikelihoodHigh, 6},
		{"pending low", 5, patents.StatusPending, LikelihoodLow, 1},
		{"active high lower overlap", 70, patents.StatusActive, LikelihoodHigh, 8},
		{"zero", 0, "", LikelihoodLow, 0},
		{"max", 100, "Granted", "HIGH", 9},
		{"unknown likelihood counts as low", 50, patents.StatusActive, "maybe", 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Severity(tc.overlap, tc.status, tc.likelihood))
		})
	}
}

func TestSeverityNeverExceedsTen(t *testing.T) {
	for overlap := 0; overlap <= 100; overlap += 5 {
		s := Severity(overlap, patents.StatusActive, LikelihoodHigh)
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 10)
	}
}

func TestRiskLevelThresholds(t *testing.T) {
	cases := map[int]string{
		0:   runs.RiskLow,
		30:  runs.RiskLow,
		31:  runs.RiskMedium,
		60:  runs.RiskMedium,
		61:  runs.RiskHigh,
		85:  runs.RiskHigh,
		86:  runs.RiskCritical,
		100: runs.RiskCritical,
	}
	for score, want := range cases {
		assert.Equal(t, want, RiskLevel(score), "score %d", score)
	}
}

func TestRiskScore(t *testing.T) {
	score, level := RiskScore([]int{9, 8, 7})
	assert.Equal(t, 86, score)
	assert.Equal(t, runs.RiskCritical, level)

	score, level = RiskScore(nil)
	assert.Equal(t, 0, score)
	assert.Equal(t, runs.RiskLow, level)

	score, level = RiskScore([]int{4, 5})
	assert.Equal(t, 32, score)
	assert.Equal(t, runs.RiskMedium, level)

	score, _ = RiskScore([]int{10, 10, 10, 10, 10})
	assert.Equal(t, 100, score)
}
