package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"event-contract-bot/internal/logger"
	"event-contract-bot/internal/types"
)

// PositionManager tracks open positions and the latest cached orderbook
// per market ticker. It is owned by the event loop and passed into the
// orchestrator per call; no locking is needed.
type PositionManager struct {
	positions map[string]*types.OpenPosition
	books     map[string]types.Orderbook
	tpCents   int
	slCents   int
}

func NewPositionManager(takeProfitCents, stopLossCents int) *PositionManager {
	return &PositionManager{
		positions: make(map[string]*types.OpenPosition),
		books:     make(map[string]types.Orderbook),
		tpCents:   takeProfitCents,
		slCents:   stopLossCents,
	}
}

// OnFill records an executed order. A repeat fill on an open ticker is
// reconciled into the position: shares are summed and the entry price
// becomes the share-weighted average.
func (pm *PositionManager) OnFill(ctx context.Context, fill types.FillEvent) {
	if p, ok := pm.positions[fill.Ticker]; ok && p.Side == fill.Side {
		total := p.Shares + fill.Shares
		weighted := (p.EntryPriceCents*p.Shares + fill.PriceCents*fill.Shares) / total
		p.Shares = total
		p.EntryPriceCents = weighted
		p.OrderID = fill.OrderID
		logger.Info(ctx, "Position reconciled on repeat fill",
			"ticker", fill.Ticker, "shares", p.Shares, "avg_entry_cents", p.EntryPriceCents)
		return
	}

	pm.positions[fill.Ticker] = &types.OpenPosition{
		Ticker:          fill.Ticker,
		Side:            fill.Side,
		Shares:          fill.Shares,
		EntryPriceCents: fill.PriceCents,
		OrderID:         fill.OrderID,
		EnteredAt:       time.Now().UTC(),
	}
	logger.Info(ctx, "Position opened",
		"ticker", fill.Ticker, "side", fill.Side, "shares", fill.Shares,
		"entry_cents", fill.PriceCents, "order_id", fill.OrderID)
}

// OnOrderbookUpdate replaces the cached book for the ticker wholesale.
func (pm *PositionManager) OnOrderbookUpdate(update types.OrderbookUpdate) {
	pm.books[update.Ticker] = update.Book
}

func (pm *PositionManager) HasPosition(ticker string) bool {
	_, ok := pm.positions[ticker]
	return ok
}

// HasPositionForSeries reports whether any open ticker belongs to the
// series (market tickers are prefixed by their series ticker).
func (pm *PositionManager) HasPositionForSeries(seriesTicker string) bool {
	for ticker := range pm.positions {
		if strings.HasPrefix(ticker, seriesTicker) {
			return true
		}
	}
	return false
}

func (pm *PositionManager) Position(ticker string) (types.OpenPosition, bool) {
	p, ok := pm.positions[ticker]
	if !ok {
		return types.OpenPosition{}, false
	}
	return *p, true
}

// OpenTickers returns the tickers with open positions, sorted for
// deterministic iteration.
func (pm *PositionManager) OpenTickers() []string {
	tickers := make([]string, 0, len(pm.positions))
	for t := range pm.positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// bestExitPrice is the highest resting price on the side we hold: selling
// a yes position draws on yes-side bid depth, likewise for no.
func (pm *PositionManager) bestExitPrice(ticker string) (int, bool) {
	pos, ok := pm.positions[ticker]
	if !ok {
		return 0, false
	}
	book, ok := pm.books[ticker]
	if !ok {
		return 0, false
	}
	levels := book.Yes
	if pos.Side == types.SideNo {
		levels = book.No
	}
	if len(levels) == 0 {
		return 0, false
	}
	best := levels[0].Price
	for _, l := range levels[1:] {
		if l.Price > best {
			best = l.Price
		}
	}
	return best, true
}

// UnrealizedPnLPerShare is exit price minus entry price in cents. It
// requires both the position and a cached book for the ticker; a missing
// input yields no answer, never a default price.
func (pm *PositionManager) UnrealizedPnLPerShare(ticker string) (int, bool) {
	pos, ok := pm.positions[ticker]
	if !ok {
		return 0, false
	}
	exit, ok := pm.bestExitPrice(ticker)
	if !ok {
		return 0, false
	}
	return exit - pos.EntryPriceCents, true
}

// EvaluateExits returns the independent set of exit signals across all
// open positions: take-profit at or above the threshold, stop-loss at or
// below its negation.
func (pm *PositionManager) EvaluateExits() []types.ExitSignal {
	var signals []types.ExitSignal
	for _, ticker := range pm.OpenTickers() {
		pnl, ok := pm.UnrealizedPnLPerShare(ticker)
		if !ok {
			continue
		}
		if pnl >= pm.tpCents {
			signals = append(signals, types.ExitSignal{Ticker: ticker, Reason: types.ExitTakeProfit})
		} else if pnl <= -pm.slCents {
			signals = append(signals, types.ExitSignal{Ticker: ticker, Reason: types.ExitStopLoss})
		}
	}
	return signals
}

// BuildExitOrder prices a sell of our side at the best available bid.
func (pm *PositionManager) BuildExitOrder(ticker string) (types.OrderRequest, bool) {
	pos, ok := pm.positions[ticker]
	if !ok {
		return types.OrderRequest{}, false
	}
	exit, ok := pm.bestExitPrice(ticker)
	if !ok {
		return types.OrderRequest{}, false
	}
	return types.OrderRequest{
		Ticker:     pos.Ticker,
		Side:       pos.Side,
		Shares:     pos.Shares,
		PriceCents: exit,
	}, true
}

// BuildExitEvent assembles the ledger record for an early exit; total pnl
// is per-share pnl times shares.
func (pm *PositionManager) BuildExitEvent(ticker string, reason types.ExitReason) (types.ExitEvent, bool) {
	pos, ok := pm.positions[ticker]
	if !ok {
		return types.ExitEvent{}, false
	}
	exit, ok := pm.bestExitPrice(ticker)
	if !ok {
		return types.ExitEvent{}, false
	}
	perShare := int64(exit) - int64(pos.EntryPriceCents)
	return types.ExitEvent{
		Ticker:          pos.Ticker,
		Reason:          reason,
		EntryPriceCents: pos.EntryPriceCents,
		ExitPriceCents:  exit,
		Shares:          pos.Shares,
		PnLCents:        perShare * int64(pos.Shares),
		OrderID:         pos.OrderID,
	}, true
}

// Clear removes the position and its cached book. Idempotent.
func (pm *PositionManager) Clear(ticker string) {
	delete(pm.positions, ticker)
	delete(pm.books, ticker)
}
