package engine

import (
	"time"

	"event-contract-bot/internal/types"
)

// ComputeStats derives performance stats from the ledger. Cancelled and
// unknown rows are excluded from the win/loss record; pending rows are
// excluded from everything.
func ComputeStats(rows []types.LedgerRow) types.Stats {
	var s types.Stats

	today := time.Now().UTC().Format("2006-01-02")
	var cumulative, peak int64
	var winSum, lossSum int64

	for _, r := range rows {
		if !r.Terminal() || r.Result == types.ResultCancelled {
			continue
		}
		if r.Result == types.ResultUnknown {
			// Zombie rows carry no pnl and say nothing about skill.
			continue
		}

		s.TotalTrades++
		s.TotalPnLCents += r.PnLCents
		if len(r.Timestamp) >= 10 && r.Timestamp[:10] == today {
			s.TodayPnLCents += r.PnLCents
		}

		if r.PnLCents > 0 {
			s.Wins++
			winSum += r.PnLCents
			if s.CurrentStreak > 0 {
				s.CurrentStreak++
			} else {
				s.CurrentStreak = 1
			}
		} else {
			s.Losses++
			lossSum += r.PnLCents
			if s.CurrentStreak < 0 {
				s.CurrentStreak--
			} else {
				s.CurrentStreak = -1
			}
		}

		cumulative += r.PnLCents
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > s.MaxDrawdownCents {
			s.MaxDrawdownCents = dd
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	if s.Wins > 0 {
		s.AvgWinCents = float64(winSum) / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLossCents = float64(lossSum) / float64(s.Losses)
	}
	return s
}
