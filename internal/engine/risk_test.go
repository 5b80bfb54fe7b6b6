package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"event-contract-bot/internal/store"
	"event-contract-bot/internal/types"
)

func riskConfig() *store.Config {
	cfg := &store.Config{}
	cfg.Risk.MaxShares = 2
	cfg.Risk.MaxDailyLossCents = 1000
	cfg.Risk.MaxConsecutiveLosses = 7
	cfg.Risk.MinBalanceCents = 500
	cfg.Risk.MinMinutesToExpiry = 2.0
	return cfg
}

func TestCheckRiskPasses(t *testing.T) {
	reason, vetoed := CheckRisk(types.Stats{}, 10_000, riskConfig())
	assert.False(t, vetoed)
	assert.Empty(t, reason)
}

func TestCheckRiskBalanceFloor(t *testing.T) {
	_, vetoed := CheckRisk(types.Stats{}, 499, riskConfig())
	assert.True(t, vetoed)
}

func TestCheckRiskDailyLoss(t *testing.T) {
	stats := types.Stats{TodayPnLCents: -1000}
	reason, vetoed := CheckRisk(stats, 10_000, riskConfig())
	assert.True(t, vetoed)
	assert.Contains(t, reason, "daily loss")
}

func TestCheckRiskLossStreak(t *testing.T) {
	stats := types.Stats{CurrentStreak: -7}
	reason, vetoed := CheckRisk(stats, 10_000, riskConfig())
	assert.True(t, vetoed)
	assert.Contains(t, reason, "consecutive losses")
}

func TestCheckRiskBalanceCheckedFirst(t *testing.T) {
	stats := types.Stats{TodayPnLCents: -5000, CurrentStreak: -10}
	reason, vetoed := CheckRisk(stats, 0, riskConfig())
	assert.True(t, vetoed)
	assert.Contains(t, reason, "balance")
}

func TestKellySharesInvalidInputs(t *testing.T) {
	assert.Equal(t, 0, KellyShares(0, 50, 3))
	assert.Equal(t, 0, KellyShares(1, 50, 3))
	assert.Equal(t, 0, KellyShares(0.6, 0, 3))
	assert.Equal(t, 0, KellyShares(0.6, 100, 3))
}

func TestKellySharesNoEdge(t *testing.T) {
	// Fair coin at fair price: zero Kelly fraction.
	assert.Equal(t, 0, KellyShares(0.5, 50, 3))
	// Negative edge.
	assert.Equal(t, 0, KellyShares(0.3, 50, 3))
}

func TestKellySharesSmallEdge(t *testing.T) {
	// b=1, f=0.2, ceil(0.5*0.2*5)=1
	assert.Equal(t, 1, KellyShares(0.6, 50, 3))
}

func TestKellySharesCapped(t *testing.T) {
	// Strong edge wants 3 shares; cap is min(maxShares, 3).
	assert.Equal(t, 3, KellyShares(0.9, 30, 5))
	assert.Equal(t, 2, KellyShares(0.9, 30, 2))
}

func TestValidateEdgeNoProbability(t *testing.T) {
	reason, vetoed := ValidateEdge(nil, nil, 40, 0)
	assert.True(t, vetoed)
	assert.Contains(t, reason, "no estimated probability")
}

func TestValidateEdgeProbabilityRange(t *testing.T) {
	bad := 0.5
	_, vetoed := ValidateEdge(&bad, nil, 40, 0)
	assert.True(t, vetoed)

	tooHigh := 99.5
	_, vetoed = ValidateEdge(&tooHigh, nil, 40, 0)
	assert.True(t, vetoed)
}

func TestValidateEdgeDefaultEdgeFromPrice(t *testing.T) {
	prob := 70.0
	// |70 - 50| = 20 >= 8, price at the 50¢ cap.
	reason, vetoed := ValidateEdge(&prob, nil, 50, 0)
	assert.False(t, vetoed, reason)
}

func TestValidateEdgeMinimumEdge(t *testing.T) {
	prob := 55.0
	edge := 5.0
	_, vetoed := ValidateEdge(&prob, &edge, 40, 0)
	assert.True(t, vetoed)

	edge = 8.0
	_, vetoed = ValidateEdge(&prob, &edge, 40, 0)
	assert.False(t, vetoed)
}

func TestValidateEdgeStreakRaisesMinimum(t *testing.T) {
	prob := 55.0
	edge := 10.0
	_, vetoed := ValidateEdge(&prob, &edge, 40, -3)
	assert.True(t, vetoed)

	edge = 12.0
	_, vetoed = ValidateEdge(&prob, &edge, 40, -3)
	assert.False(t, vetoed)
}

func TestValidateEdgePriceCap(t *testing.T) {
	prob := 80.0
	edge := 25.0
	reason, vetoed := ValidateEdge(&prob, &edge, 55, 0)
	assert.True(t, vetoed)
	assert.Contains(t, reason, "50¢ max")
}
