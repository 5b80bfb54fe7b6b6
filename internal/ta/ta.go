package ta

import (
	"fmt"
	"math"

	"event-contract-bot/internal/types"
)

// RSI computes the standard relative strength index over `period` candles
// (typically 9). Returns the neutral 50.0 when there is not enough data.
func RSI(candles []types.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return 50.0
	}
	gains, losses := 0.0, 0.0
	start := len(candles) - period - 1
	for i := start + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// EMA computes the exponential moving average over `period` candles,
// seeded with the simple average of the first `period` closes. With fewer
// candles than the period it degrades to the simple average of all closes.
func EMA(candles []types.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if len(candles) <= period {
		sum := 0.0
		for _, c := range candles {
			sum += c.Close
		}
		return sum / float64(len(candles))
	}
	multiplier := 2.0 / (float64(period) + 1.0)
	seed := 0.0
	for _, c := range candles[:period] {
		seed += c.Close
	}
	ema := seed / float64(period)
	for _, c := range candles[period:] {
		ema = (c.Close-ema)*multiplier + ema
	}
	return ema
}

// OrderbookImbalance is the depth-weighted yes/no volume ratio over the
// best 5 levels per side, weight 1/(rank+1). > 1.0 means yes-side heavy.
// The ratio is clamped to [0.2, 5.0].
func OrderbookImbalance(book types.Orderbook) float64 {
	weighted := func(levels []types.Level) float64 {
		sum := 0.0
		for i, l := range levels {
			if i >= 5 {
				break
			}
			sum += float64(l.Qty) / float64(i+1)
		}
		return sum
	}
	bidVol := weighted(book.Yes)
	askVol := weighted(book.No)
	if askVol == 0 {
		if bidVol > 0 {
			return 5.0
		}
		return 1.0
	}
	ratio := bidVol / askVol
	return math.Min(math.Max(ratio, 0.2), 5.0)
}

// Trend classifies whether the 5m, 15m and 1h windows agree in direction,
// at a ±0.05% threshold.
func Trend(pct5m, pct15m, pct1h float64) types.TrendAlignment {
	const threshold = 0.05
	up := func(p float64) bool { return p > threshold }
	down := func(p float64) bool { return p < -threshold }
	flat := func(p float64) bool { return !up(p) && !down(p) }

	switch {
	case up(pct5m) && up(pct15m) && up(pct1h):
		return types.TrendAllUp
	case down(pct5m) && down(pct15m) && down(pct1h):
		return types.TrendAllDown
	case flat(pct5m) && flat(pct15m) && flat(pct1h):
		return types.TrendAllFlat
	default:
		return types.TrendMixed
	}
}

// Compute derives the full indicator set from 1m and 5m candles plus spot.
func Compute(candles1m, candles5m []types.Candle, spot float64) types.PriceIndicators {
	pctChange15m := 0.0
	if len(candles1m) > 0 {
		firstOpen := candles1m[0].Open
		pctChange15m = (spot - firstOpen) / firstOpen * 100.0
	}

	pctChange1h := 0.0
	if len(candles5m) > 0 {
		firstOpen := candles5m[0].Open
		pctChange1h = (spot - firstOpen) / firstOpen * 100.0
	}

	pctChange5m := 0.0
	if len(candles5m) > 0 {
		lastOpen := candles5m[len(candles5m)-1].Open
		pctChange5m = (spot - lastOpen) / lastOpen * 100.0
	}

	momentum := types.MomentumFlat
	if pctChange15m > 0.15 {
		momentum = types.MomentumUp
	} else if pctChange15m < -0.15 {
		momentum = types.MomentumDown
	}

	sma := spot
	if len(candles1m) > 0 {
		sum := 0.0
		for _, c := range candles1m {
			sum += c.Close
		}
		sma = sum / float64(len(candles1m))
	}
	smaDiffPct := (spot - sma) / sma * 100.0
	priceVsSMA := "at SMA"
	if math.Abs(smaDiffPct) >= 0.01 {
		if smaDiffPct > 0 {
			priceVsSMA = fmt.Sprintf("above +%.3f%%", smaDiffPct)
		} else {
			priceVsSMA = fmt.Sprintf("below %.3f%%", smaDiffPct)
		}
	}

	// Population stddev of consecutive 1m percentage returns.
	var returns []float64
	for i := 1; i < len(candles1m); i++ {
		prev := candles1m[i-1].Close
		returns = append(returns, (candles1m[i].Close-prev)/prev*100.0)
	}
	volatility := 0.0
	if len(returns) >= 2 {
		mean := 0.0
		for _, r := range returns {
			mean += r
		}
		mean /= float64(len(returns))
		variance := 0.0
		for _, r := range returns {
			variance += (r - mean) * (r - mean)
		}
		variance /= float64(len(returns))
		volatility = math.Sqrt(variance)
	}

	last3 := candles1m
	if len(last3) > 3 {
		last3 = last3[len(last3)-3:]
	}

	rsi9 := RSI(candles1m, 9)
	ema9 := EMA(candles1m, 9)
	emaDiffPct := 0.0
	if ema9 > 0 {
		emaDiffPct = (spot - ema9) / ema9 * 100.0
	}
	priceVsEMA := "at EMA"
	if math.Abs(emaDiffPct) >= 0.01 {
		if emaDiffPct > 0 {
			priceVsEMA = fmt.Sprintf("above +%.3f%%", emaDiffPct)
		} else {
			priceVsEMA = fmt.Sprintf("below %.3f%%", emaDiffPct)
		}
	}

	return types.PriceIndicators{
		SpotPrice:    spot,
		PctChange5m:  pctChange5m,
		PctChange15m: pctChange15m,
		PctChange1h:  pctChange1h,
		Momentum:     momentum,
		SMA15m:       sma,
		PriceVsSMA:   priceVsSMA,
		Volatility1m: volatility,
		RSI9:         rsi9,
		EMA9:         ema9,
		PriceVsEMA:   priceVsEMA,
		Last3Candles: last3,
	}
}

// SignalSummary synthesizes a probability estimate from all indicators,
// computes the edge for each side against its ask, picks the better side,
// and sizes a half-Kelly bet. The narrative line is included in the
// reasoning-service context.
func SignalSummary(ind types.PriceIndicators, book types.Orderbook, market types.Market) types.SignalSummary {
	probYes := 50.0

	// Momentum
	switch {
	case ind.PctChange15m > 0.15:
		probYes += 8.0
	case ind.PctChange15m < -0.15:
		probYes -= 8.0
	case ind.PctChange15m > 0.05:
		probYes += 3.0
	case ind.PctChange15m < -0.05:
		probYes -= 3.0
	}

	// Trend alignment bonus only when all three windows agree
	trend := Trend(ind.PctChange5m, ind.PctChange15m, ind.PctChange1h)
	switch trend {
	case types.TrendAllUp:
		probYes += 6.0
	case types.TrendAllDown:
		probYes -= 6.0
	}

	// EMA gap
	emaDiffPct := 0.0
	if ind.EMA9 > 0 {
		emaDiffPct = (ind.SpotPrice - ind.EMA9) / ind.EMA9 * 100.0
	}
	if emaDiffPct > 0.05 {
		probYes += 3.0
	} else if emaDiffPct < -0.05 {
		probYes -= 3.0
	}

	// RSI extremes: overbought tends to stay up within the short horizon
	rsiSignal := "NEUTRAL"
	if ind.RSI9 > 70 {
		probYes += 4.0
		rsiSignal = "OVERBOUGHT (>70)"
	} else if ind.RSI9 < 30 {
		probYes -= 4.0
		rsiSignal = "OVERSOLD (<30)"
	}

	// Book imbalance
	imbalance := OrderbookImbalance(book)
	if imbalance > 2.0 {
		probYes += 3.0
	} else if imbalance < 0.5 {
		probYes -= 3.0
	}

	probYes = math.Min(math.Max(probYes, 5.0), 95.0)

	yesAsk := float64(market.YesAsk)
	if market.YesAsk == 0 {
		yesAsk = 99
	}
	noAsk := float64(market.NoAsk)
	if market.NoAsk == 0 {
		noAsk = 99
	}
	yesEdge := probYes - yesAsk
	noEdge := (100.0 - probYes) - noAsk

	var side types.Side
	var bestEdge, bestPrice float64
	switch {
	case yesEdge >= noEdge && yesEdge > 0:
		side, bestEdge, bestPrice = types.SideYes, yesEdge, yesAsk
	case noEdge > 0:
		side, bestEdge, bestPrice = types.SideNo, noEdge, noAsk
	default:
		side, bestEdge, bestPrice = "", math.Max(yesEdge, noEdge), math.Min(yesAsk, noAsk)
	}

	winProb := probYes / 100.0
	if side == types.SideNo {
		winProb = (100.0 - probYes) / 100.0
	}
	halfKelly := 0.0
	if bestPrice > 0 && bestPrice < 100 && winProb > 0 {
		b := (100.0 - bestPrice) / bestPrice
		f := (winProb*b - (1.0 - winProb)) / b
		halfKelly = math.Max(f*0.5, 0)
	}
	kellyShares := 0
	if bestEdge >= 8.0 {
		kellyShares = int(math.Min(math.Max(math.Ceil(halfKelly*5.0), 1), 3))
	}

	sideLabel := "NONE"
	if side != "" {
		sideLabel = string(side)
	}
	narrative := fmt.Sprintf(
		"Trend: %s | RSI(9): %.1f (%s) | EMA(9) gap: %+.3f%% | OB imbalance: %.2f | Est. prob YES: %.0f%% | Best side: %s edge %.1fpt | Kelly: %d shares",
		trend, ind.RSI9, rsiSignal, emaDiffPct, imbalance, probYes, sideLabel, bestEdge, kellyShares,
	)

	return types.SignalSummary{
		Trend:                trend,
		RSISignal:            rsiSignal,
		OrderbookImbalance:   imbalance,
		RecommendedSide:      side,
		EstimatedEdge:        bestEdge,
		EstimatedPriceCents:  bestPrice,
		KellyShares:          kellyShares,
		EstimatedProbability: probYes,
		Narrative:            narrative,
	}
}
