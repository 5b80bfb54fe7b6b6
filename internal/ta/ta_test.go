package ta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-contract-bot/internal/types"
)

func candlesFromCloses(closes ...float64) []types.Candle {
	out := make([]types.Candle, len(closes))
	for i, c := range closes {
		out[i] = types.Candle{Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestRSINotEnoughData(t *testing.T) {
	assert.Equal(t, 50.0, RSI(candlesFromCloses(1, 2, 3), 9))
	assert.Equal(t, 50.0, RSI(nil, 9))
}

func TestRSIAllGains(t *testing.T) {
	candles := candlesFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	assert.Equal(t, 100.0, RSI(candles, 9))
}

func TestRSIMixedStaysInRange(t *testing.T) {
	candles := candlesFromCloses(10, 12, 11, 13, 9, 14, 10, 15, 11, 16, 12)
	rsi := RSI(candles, 9)
	assert.Greater(t, rsi, 0.0)
	assert.Less(t, rsi, 100.0)
}

func TestEMAConstantSeries(t *testing.T) {
	candles := candlesFromCloses(42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42)
	assert.InDelta(t, 42.0, EMA(candles, 9), 1e-9)
}

func TestEMADegradesToSimpleAverage(t *testing.T) {
	candles := candlesFromCloses(10, 20, 30)
	assert.InDelta(t, 20.0, EMA(candles, 9), 1e-9)
	assert.Equal(t, 0.0, EMA(nil, 9))
}

func TestOrderbookImbalance(t *testing.T) {
	empty := types.Orderbook{}
	assert.Equal(t, 1.0, OrderbookImbalance(empty))

	yesOnly := types.Orderbook{Yes: []types.Level{{Price: 40, Qty: 100}}}
	assert.Equal(t, 5.0, OrderbookImbalance(yesOnly))

	noHeavy := types.Orderbook{
		Yes: []types.Level{{Price: 40, Qty: 1}},
		No:  []types.Level{{Price: 40, Qty: 1000}},
	}
	assert.Equal(t, 0.2, OrderbookImbalance(noHeavy))

	balanced := types.Orderbook{
		Yes: []types.Level{{Price: 40, Qty: 10}},
		No:  []types.Level{{Price: 40, Qty: 10}},
	}
	assert.InDelta(t, 1.0, OrderbookImbalance(balanced), 1e-9)
}

func TestTrendAlignment(t *testing.T) {
	assert.Equal(t, types.TrendAllUp, Trend(0.1, 0.2, 0.3))
	assert.Equal(t, types.TrendAllDown, Trend(-0.1, -0.2, -0.3))
	assert.Equal(t, types.TrendAllFlat, Trend(0.01, -0.02, 0.03))
	assert.Equal(t, types.TrendMixed, Trend(0.1, -0.2, 0.3))
}

func TestComputeMomentum(t *testing.T) {
	candles1m := make([]types.Candle, 15)
	for i := range candles1m {
		candles1m[i] = types.Candle{Open: 100, Close: 100}
	}
	candles5m := []types.Candle{{Open: 100, Close: 100}}

	up := Compute(candles1m, candles5m, 100.2)
	assert.Equal(t, types.MomentumUp, up.Momentum)
	assert.InDelta(t, 0.2, up.PctChange15m, 1e-9)

	flat := Compute(candles1m, candles5m, 100.1)
	assert.Equal(t, types.MomentumFlat, flat.Momentum)

	down := Compute(candles1m, candles5m, 99.8)
	assert.Equal(t, types.MomentumDown, down.Momentum)
	assert.Len(t, down.Last3Candles, 3)
}

func TestSignalSummaryStrongUp(t *testing.T) {
	ind := types.PriceIndicators{
		SpotPrice:    101,
		PctChange5m:  0.2,
		PctChange15m: 0.5,
		PctChange1h:  0.3,
		RSI9:         75,
		EMA9:         100, // +1% gap
	}
	book := types.Orderbook{
		Yes: []types.Level{{Price: 40, Qty: 100}},
		No:  []types.Level{{Price: 40, Qty: 10}},
	}
	market := types.Market{YesAsk: 60, NoAsk: 45}

	sig := SignalSummary(ind, book, market)

	// 50 +8 momentum +6 trend +3 ema +4 rsi +3 imbalance
	require.InDelta(t, 74.0, sig.EstimatedProbability, 1e-9)
	assert.Equal(t, types.SideYes, sig.RecommendedSide)
	assert.InDelta(t, 14.0, sig.EstimatedEdge, 1e-9)
	assert.GreaterOrEqual(t, sig.KellyShares, 1)
	assert.LessOrEqual(t, sig.KellyShares, 3)
	assert.Equal(t, types.TrendAllUp, sig.Trend)
	assert.Contains(t, sig.Narrative, "OVERBOUGHT")
}

func TestSignalSummaryNoEdge(t *testing.T) {
	ind := types.PriceIndicators{SpotPrice: 100, RSI9: 50}
	book := types.Orderbook{
		Yes: []types.Level{{Price: 50, Qty: 10}},
		No:  []types.Level{{Price: 50, Qty: 10}},
	}
	market := types.Market{YesAsk: 55, NoAsk: 55}

	sig := SignalSummary(ind, book, market)

	assert.InDelta(t, 50.0, sig.EstimatedProbability, 1e-9)
	assert.Equal(t, types.Side(""), sig.RecommendedSide)
	assert.Equal(t, 0, sig.KellyShares)
	assert.Less(t, sig.EstimatedEdge, 0.0)
}

func TestSignalSummaryProbabilityClamped(t *testing.T) {
	ind := types.PriceIndicators{
		SpotPrice:    90,
		PctChange5m:  -2,
		PctChange15m: -2,
		PctChange1h:  -2,
		RSI9:         10,
		EMA9:         100,
	}
	book := types.Orderbook{No: []types.Level{{Price: 40, Qty: 100}}}
	market := types.Market{YesAsk: 50, NoAsk: 50}

	sig := SignalSummary(ind, book, market)
	assert.GreaterOrEqual(t, sig.EstimatedProbability, 5.0)
	assert.Equal(t, types.SideNo, sig.RecommendedSide)
}

func TestSignalSummaryMissingAsksDefaultTo99(t *testing.T) {
	ind := types.PriceIndicators{SpotPrice: 100, RSI9: 50}
	sig := SignalSummary(ind, types.Orderbook{}, types.Market{})
	assert.Equal(t, types.Side(""), sig.RecommendedSide)
	assert.InDelta(t, 99.0, sig.EstimatedPriceCents, 1e-9)
}
