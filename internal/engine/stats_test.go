package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"event-contract-bot/internal/types"
)

func row(result string, pnl int64, ts string) types.LedgerRow {
	return types.LedgerRow{Timestamp: ts, Ticker: "T", Side: "yes", Shares: 1, Price: 40, Result: result, PnLCents: pnl}
}

func TestComputeStatsEmpty(t *testing.T) {
	s := ComputeStats(nil)
	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 0.0, s.WinRate)
}

func TestComputeStatsSkipsNonScoringRows(t *testing.T) {
	rows := []types.LedgerRow{
		row(types.ResultPending, 0, "2026-08-01T00:00:00Z"),
		row(types.ResultCancelled, 0, "2026-08-01T00:00:00Z"),
		row(types.ResultUnknown, 0, "2026-08-01T00:00:00Z"),
		row(types.ResultWin, 60, "2026-08-01T00:00:00Z"),
	}
	s := ComputeStats(rows)
	assert.Equal(t, 1, s.TotalTrades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, int64(60), s.TotalPnLCents)
}

func TestComputeStatsStreakAndDrawdown(t *testing.T) {
	rows := []types.LedgerRow{
		row(types.ResultWin, 20, "2026-08-01T00:00:00Z"),
		row(types.ResultLoss, -30, "2026-08-02T00:00:00Z"),
		row(types.ResultWin, 10, "2026-08-03T00:00:00Z"),
	}
	s := ComputeStats(rows)
	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, int64(0), s.TotalPnLCents)
	// Peak 20, trough -10.
	assert.Equal(t, int64(30), s.MaxDrawdownCents)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-9)
	assert.InDelta(t, 15.0, s.AvgWinCents, 1e-9)
	assert.InDelta(t, -30.0, s.AvgLossCents, 1e-9)
}

func TestComputeStatsLossStreakIsNegative(t *testing.T) {
	rows := []types.LedgerRow{
		row(types.ResultWin, 20, "2026-08-01T00:00:00Z"),
		row(types.ResultLoss, -30, "2026-08-02T00:00:00Z"),
		row(types.ResultLoss, -30, "2026-08-03T00:00:00Z"),
	}
	s := ComputeStats(rows)
	assert.Equal(t, -2, s.CurrentStreak)
}

func TestComputeStatsTodayPnL(t *testing.T) {
	today := time.Now().UTC().Format(time.RFC3339)
	rows := []types.LedgerRow{
		row(types.ResultLoss, -40, "2020-01-01T00:00:00Z"),
		row(types.ResultWin, 60, today),
	}
	s := ComputeStats(rows)
	assert.Equal(t, int64(60), s.TodayPnLCents)
	assert.Equal(t, int64(20), s.TotalPnLCents)
}

// Breakeven rows count as losses: pnl must be strictly positive to score
// as a win.
func TestComputeStatsBreakevenIsLoss(t *testing.T) {
	rows := []types.LedgerRow{row("exit_stop_loss", 0, "2026-08-01T00:00:00Z")}
	s := ComputeStats(rows)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, -1, s.CurrentStreak)
}
