package engine

import (
	"fmt"
	"math"

	"event-contract-bot/internal/store"
	"event-contract-bot/internal/types"
)

// CheckRisk applies the ordered pre-trade vetoes: balance floor, daily
// loss limit, consecutive-loss streak. The first failing check wins; an
// empty reason means the trade may proceed.
func CheckRisk(stats types.Stats, balanceCents int64, cfg *store.Config) (reason string, vetoed bool) {
	if balanceCents < cfg.Risk.MinBalanceCents {
		return fmt.Sprintf("balance %d¢ < %d¢ minimum", balanceCents, cfg.Risk.MinBalanceCents), true
	}
	if stats.TodayPnLCents <= -cfg.Risk.MaxDailyLossCents {
		return fmt.Sprintf("daily loss: %d¢", stats.TodayPnLCents), true
	}
	if stats.CurrentStreak <= -cfg.Risk.MaxConsecutiveLosses {
		return fmt.Sprintf("%d consecutive losses", -stats.CurrentStreak), true
	}
	return "", false
}

// KellyShares sizes a bet with half-Kelly, scaled to shares and capped at
// min(maxShares, 3) regardless of bankroll. Invalid inputs yield 0.
func KellyShares(winProb float64, priceCents, maxShares int) int {
	if winProb <= 0 || winProb >= 1 || priceCents <= 0 || priceCents >= 100 {
		return 0
	}
	b := (100.0 - float64(priceCents)) / float64(priceCents) // payout ratio
	f := (winProb*b - (1.0 - winProb)) / b                   // Kelly fraction
	if f <= 0 {
		return 0
	}
	shares := int(math.Ceil(f * 0.5 * 5.0))
	cap := maxShares
	if cap > 3 {
		cap = 3
	}
	if shares < 1 {
		shares = 1
	}
	if shares > cap {
		shares = cap
	}
	return shares
}

// ValidateEdge checks that a candidate trade carries enough edge. A nil
// probability vetoes outright; a nil edge defaults to |prob − price|.
// A losing streak of −3 or worse raises the minimum edge from 8 to 12
// points, and price above 50¢ is never paid.
func ValidateEdge(estimatedProbability, estimatedEdge *float64, priceCents, currentStreak int) (reason string, vetoed bool) {
	if estimatedProbability == nil {
		return "no estimated probability provided, blocking trade", true
	}
	prob := *estimatedProbability
	if prob < 1 || prob > 99 {
		return fmt.Sprintf("probability %.0f out of valid range [1,99]", prob), true
	}

	edge := 0.0
	if estimatedEdge != nil {
		edge = *estimatedEdge
	} else {
		edge = math.Abs(prob - float64(priceCents))
	}

	minEdge := 8.0
	if currentStreak <= -3 {
		minEdge = 12.0
	}
	if edge < minEdge {
		return fmt.Sprintf("edge %.1fpt < %.0fpt minimum (streak=%d, prob=%.0f, price=%d¢)",
			edge, minEdge, currentStreak, prob, priceCents), true
	}

	if priceCents > 50 {
		return fmt.Sprintf("price %d¢ > 50¢ max", priceCents), true
	}
	return "", false
}
