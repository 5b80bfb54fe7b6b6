package llm

import (
	"fmt"
	"strings"

	"event-contract-bot/internal/types"
)

// BuildPrompt renders the full decision context as markdown sections
// appended to the operator's strategy prompt.
func BuildPrompt(dctx types.DecisionContext) string {
	var b strings.Builder
	b.WriteString(dctx.PromptMD)

	fmt.Fprintf(&b, "\n\n---\n## STATS\n%s", formatStats(dctx.Stats))
	fmt.Fprintf(&b, "\n\n---\n## LAST %d TRADES\n%s", len(dctx.LastTrades), formatTrades(dctx.LastTrades))
	fmt.Fprintf(&b, "\n\n---\n## MARKET\n%s", formatMarket(dctx.Market))
	fmt.Fprintf(&b, "\n\n---\n## ORDERBOOK\nYes bids: %s\nNo bids: %s",
		formatSide(dctx.Orderbook.Yes), formatSide(dctx.Orderbook.No))

	if dctx.Price != nil {
		fmt.Fprintf(&b, "\n\n---\n## %s PRICE\n%s", dctx.PriceLabel, formatPrice(dctx.Price))
	} else {
		fmt.Fprintf(&b, "\n\n---\n## %s PRICE\nUnavailable this cycle.", dctx.PriceLabel)
	}
	if dctx.Signal != nil {
		fmt.Fprintf(&b, "\n\n---\n## SIGNAL\n%s", dctx.Signal.Narrative)
	}
	return b.String()
}

func formatStats(s types.Stats) string {
	return fmt.Sprintf(
		"Trades: %d | W/L: %d/%d | Win rate: %.1f%% | P&L: %d¢ | Today: %d¢ | Streak: %d | Drawdown: %d¢",
		s.TotalTrades, s.Wins, s.Losses, s.WinRate*100,
		s.TotalPnLCents, s.TodayPnLCents, s.CurrentStreak, s.MaxDrawdownCents)
}

func formatTrades(trades []types.LedgerRow) string {
	if len(trades) == 0 {
		return "No trades yet."
	}
	lines := make([]string, 0, len(trades))
	for _, t := range trades {
		lines = append(lines, fmt.Sprintf("%s | %s | %s | %dx @ %d¢ | %s | %d¢",
			t.Timestamp, t.Ticker, t.Side, t.Shares, t.Price, t.Result, t.PnLCents))
	}
	return strings.Join(lines, "\n")
}

func formatMarket(m types.Market) string {
	return fmt.Sprintf(
		"Ticker: %s | Title: %s | Yes bid/ask: %d/%d | No bid/ask: %d/%d | Last: %d | Vol: %d | 24h Vol: %d | OI: %d | Expiry: %s (%.1fmin)",
		m.Ticker, m.Title, m.YesBid, m.YesAsk, m.NoBid, m.NoAsk,
		m.LastPrice, m.Volume, m.Volume24h, m.OpenInterest,
		m.ExpirationTime, m.MinutesToExpiry)
}

func formatSide(levels []types.Level) string {
	if len(levels) == 0 {
		return "empty"
	}
	parts := make([]string, 0, 5)
	for i, l := range levels {
		if i == 5 {
			break
		}
		parts = append(parts, fmt.Sprintf("%d¢ x%d", l.Price, l.Qty))
	}
	return strings.Join(parts, ", ")
}

func formatPrice(snap *types.PriceSnapshot) string {
	ind := snap.Indicators
	var b strings.Builder
	fmt.Fprintf(&b,
		"Spot: $%.2f | 5m change: %+.3f%% | 15m change: %+.3f%% | 1h change: %+.3f%% | Momentum: %s\n",
		ind.SpotPrice, ind.PctChange5m, ind.PctChange15m, ind.PctChange1h, ind.Momentum)
	fmt.Fprintf(&b,
		"SMA(15x1m): $%.2f | Price vs SMA: %s | 1m volatility: %.4f%%\n",
		ind.SMA15m, ind.PriceVsSMA, ind.Volatility1m)
	fmt.Fprintf(&b,
		"RSI(9): %.1f | EMA(9): $%.2f | Price vs EMA: %s",
		ind.RSI9, ind.EMA9, ind.PriceVsEMA)

	if len(ind.Last3Candles) > 0 {
		b.WriteString("\nLast 3 candles (1m): ")
		parts := make([]string, 0, len(ind.Last3Candles))
		for _, c := range ind.Last3Candles {
			parts = append(parts, fmt.Sprintf("O:%.0f H:%.0f L:%.0f C:%.0f V:%.1f",
				c.Open, c.High, c.Low, c.Close, c.Volume))
		}
		b.WriteString(strings.Join(parts, " | "))
	}
	return b.String()
}
