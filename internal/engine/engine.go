package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"event-contract-bot/internal/interfaces"
	"event-contract-bot/internal/ledger"
	"event-contract-bot/internal/logger"
	"event-contract-bot/internal/store"
	"event-contract-bot/internal/ta"
	"event-contract-bot/internal/types"
)

// ErrUntrackedPosition marks the one unrecoverable failure: a live order
// was placed but the ledger append failed, so a real position is no
// longer tracked by the system of record. The daemon must stop.
var ErrUntrackedPosition = errors.New("live order placed but ledger append failed")

// zombieAge is how long a pending row may wait for a settlement before it
// is force-closed as "unknown" so it cannot stall the engine forever.
const zombieAge = 30 * time.Minute

// Engine orchestrates one entry cycle or one exit over the abstract
// exchange, reasoning and price-feed ports.
type Engine struct {
	cfg     *store.Config
	exch    interfaces.Exchange
	brain   interfaces.Decider
	feed    interfaces.PriceFeed
	ledger  *ledger.Store
	archive *ledger.Archive // optional; nil disables mirroring
}

func New(cfg *store.Config, exch interfaces.Exchange, brain interfaces.Decider,
	feed interfaces.PriceFeed, led *ledger.Store, archive *ledger.Archive) *Engine {
	return &Engine{cfg: cfg, exch: exch, brain: brain, feed: feed, ledger: led, archive: archive}
}

// EntryCycle runs the strict entry protocol for one series. Any exchange
// failure aborts the whole cycle; the next timer tick retries it
// wholesale, never partially.
func (e *Engine) EntryCycle(ctx context.Context, pm *PositionManager, series store.Series) error {
	label := series.Label
	if label == "" {
		label = series.Ticker
	}

	// One live bet per series.
	if pm.HasPositionForSeries(series.Ticker) {
		logger.Debug(ctx, "Holding position, skipping entry cycle", "series", label)
		return nil
	}

	// 1. Cancel stale resting orders from previous cycles. The sweep runs
	// to completion even when individual cancels fail, so one bad order
	// cannot starve the rest; the cycle still aborts afterwards.
	resting, err := e.exch.RestingOrders(ctx)
	if err != nil {
		return fmt.Errorf("listing resting orders: %w", err)
	}
	var cancelErr error
	for _, order := range resting {
		if err := e.exch.CancelOrder(ctx, order.OrderID); err != nil {
			logger.ErrorWithErr(ctx, "Cancel failed", err, "series", label, "order_id", order.OrderID)
			if cancelErr == nil {
				cancelErr = err
			}
			continue
		}
		if err := e.ledger.Cancel(order.OrderID); err != nil {
			return fmt.Errorf("marking order cancelled in ledger: %w", err)
		}
		e.mirrorResult(ctx, order.OrderID, types.ResultCancelled, 0)
		logger.Info(ctx, "Canceled stale order", "series", label, "order_id", order.OrderID)
	}
	if cancelErr != nil {
		return fmt.Errorf("cancel sweep: %w", cancelErr)
	}

	// 2. Settlement reconciliation for the most recent pending row.
	rows, err := e.ledger.Read()
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}
	if pending, ok := newestPending(rows); ok {
		rows, err = e.reconcileSettlement(ctx, pending, label)
		if err != nil {
			return err
		}
	}

	// 3. Risk gate.
	stats := ComputeStats(rows)
	balance, err := e.exch.Balance(ctx)
	if err != nil {
		return fmt.Errorf("fetching balance: %w", err)
	}
	if reason, vetoed := CheckRisk(stats, balance, e.cfg); vetoed {
		logger.Risk(ctx, label, "ENTRY_VETO", "reason", reason)
		return nil
	}

	// 4. Market selection: soonest future expiry with enough runway.
	market, err := e.exch.ActiveMarket(ctx, series.Ticker)
	if err != nil {
		return fmt.Errorf("fetching active market: %w", err)
	}
	if market == nil {
		logger.Info(ctx, "No active market", "series", label)
		return nil
	}
	if market.MinutesToExpiry < e.cfg.Risk.MinMinutesToExpiry {
		logger.Info(ctx, "Too close to expiry", "series", label,
			"ticker", market.Ticker, "minutes", fmt.Sprintf("%.1f", market.MinutesToExpiry))
		return nil
	}

	// 5. Orderbook.
	book, err := e.exch.Orderbook(ctx, market.Ticker)
	if err != nil {
		return fmt.Errorf("fetching orderbook: %w", err)
	}

	// 6. Best-effort price snapshot; absence is non-fatal.
	snapshot := e.fetchPriceSnapshot(ctx, series.Symbol)
	var signal *types.SignalSummary
	if snapshot != nil {
		s := ta.SignalSummary(snapshot.Indicators, book, *market)
		signal = &s
	}

	// 7. Brain decision.
	prompt, err := e.ledger.ReadPrompt()
	if err != nil {
		return fmt.Errorf("reading strategy prompt: %w", err)
	}
	dctx := types.DecisionContext{
		PromptMD:   prompt,
		Stats:      stats,
		LastTrades: lastTradesNewestFirst(rows, 20),
		Market:     *market,
		Orderbook:  book,
		Price:      snapshot,
		Signal:     signal,
		PriceLabel: fmt.Sprintf("%s (%s)", label, series.Symbol),
	}
	decision, err := e.brain.Decide(ctx, dctx)
	if err != nil {
		return fmt.Errorf("reasoning service: %w", err)
	}

	logger.Decision(ctx, market.Ticker, decision.Action, string(decision.Side), decision.Reasoning)
	if decision.Action != types.ActionBuy {
		return nil
	}

	// 8. Clamp and default.
	side := decision.Side
	if side != types.SideYes && side != types.SideNo {
		side = types.SideYes
	}
	shares := decision.Shares
	if shares <= 0 {
		shares = 1
	}
	if shares > e.cfg.Risk.MaxShares {
		shares = e.cfg.Risk.MaxShares
	}
	price := decision.MaxPriceCents
	if price <= 0 {
		price = 50
	}
	if price > 99 {
		price = 99
	}

	// 9. Edge discipline when a deterministic signal is available. The
	// gate judges the side actually being bought: the estimator's
	// probability is for Yes, so a No order is measured against its
	// complement, never against the best-side edge.
	if signal != nil {
		prob := signal.EstimatedProbability
		if side == types.SideNo {
			prob = 100 - prob
		}
		edge := prob - float64(price)
		if reason, vetoed := ValidateEdge(&prob, &edge, price, stats.CurrentStreak); vetoed {
			logger.Risk(ctx, label, "EDGE_VETO", "ticker", market.Ticker,
				"side", string(side), "reason", reason)
			return nil
		}
	}

	// 10. Final position check: a fill may have landed during reasoning.
	fresh, err := e.exch.Positions(ctx)
	if err != nil {
		return fmt.Errorf("re-fetching positions: %w", err)
	}
	for _, p := range fresh {
		if p.Ticker == market.Ticker {
			logger.Warn(ctx, "Exposure appeared during reasoning, aborting order",
				"series", label, "ticker", market.Ticker)
			return nil
		}
	}

	// 11. Execute.
	return e.placeEntry(ctx, label, market.Ticker, side, shares, price, stats)
}

func (e *Engine) placeEntry(ctx context.Context, label, ticker string, side types.Side,
	shares, price int, stats types.Stats) error {
	row := types.LedgerRow{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Ticker:          ticker,
		Side:            string(side),
		Shares:          shares,
		Price:           price,
		Result:          types.ResultPending,
		CumulativeCents: stats.TotalPnLCents,
	}

	if e.cfg.Paper() {
		row.OrderID = "paper-" + uuid.NewString()
		logger.Trade(ctx, ticker, string(side), shares, price, row.OrderID, "mode", "paper")
		if err := e.ledger.Append(row); err != nil {
			return fmt.Errorf("appending paper entry: %w", err)
		}
		e.mirrorEntry(ctx, row)
		return nil
	}

	result, err := e.exch.PlaceOrder(ctx, types.OrderRequest{
		Ticker: ticker, Side: side, Shares: shares, PriceCents: price,
	})
	if err != nil {
		return fmt.Errorf("placing order: %w", err)
	}
	logger.Trade(ctx, ticker, string(side), shares, price, result.OrderID,
		"mode", "live", "status", result.Status)

	row.OrderID = result.OrderID
	if err := e.ledger.Append(row); err != nil {
		logger.ErrorWithErr(ctx, "CRITICAL: order placed but ledger append failed", err,
			"series", label, "order_id", result.OrderID)
		return fmt.Errorf("%w: order %s: %v", ErrUntrackedPosition, result.OrderID, err)
	}
	e.mirrorEntry(ctx, row)
	return nil
}

// reconcileSettlement finalizes the pending row if its market settled, or
// force-closes it as unknown once it ages past the zombie threshold.
// Returns the refreshed ledger rows.
func (e *Engine) reconcileSettlement(ctx context.Context, pending types.LedgerRow, label string) ([]types.LedgerRow, error) {
	settlements, err := e.exch.Settlements(ctx, pending.Ticker)
	if err != nil {
		return nil, fmt.Errorf("fetching settlements: %w", err)
	}

	if len(settlements) > 0 {
		s := settlements[0]
		if err := e.ledger.Settle(s); err != nil {
			return nil, fmt.Errorf("settling ledger row: %w", err)
		}
		rows, err := e.ledger.Read()
		if err != nil {
			return nil, fmt.Errorf("re-reading ledger: %w", err)
		}
		if err := e.ledger.WriteStats(ComputeStats(rows)); err != nil {
			return nil, fmt.Errorf("writing stats: %w", err)
		}
		if updated, ok := rowByOrderID(rows, pending.OrderID); ok {
			e.mirrorResult(ctx, updated.OrderID, updated.Result, updated.PnLCents)
		}
		logger.Info(ctx, "Settled", "series", label, "ticker", s.Ticker,
			"result", s.Result, "market_result", s.MarketResult, "pnl_cents", s.PnLCents)
		return rows, nil
	}

	ts, err := time.Parse(time.RFC3339, pending.Timestamp)
	if err != nil || time.Since(ts) <= zombieAge {
		return e.ledger.Read()
	}

	// Zombie cleanup: a never-settling row must not stall the engine.
	zombie := types.Settlement{
		Ticker:       pending.Ticker,
		Result:       types.ResultUnknown,
		PnLCents:     0,
		MarketResult: types.ResultUnknown,
		SettledTime:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := e.ledger.Settle(zombie); err != nil {
		return nil, fmt.Errorf("zombie cleanup: %w", err)
	}
	e.mirrorResult(ctx, pending.OrderID, types.ResultUnknown, 0)
	logger.Warn(ctx, "Zombie cleanup: pending entry never settled",
		"series", label, "ticker", pending.Ticker,
		"age_min", int(time.Since(ts).Minutes()))
	return e.ledger.Read()
}

// ExecuteExit closes one position early (take-profit or stop-loss). The
// position is cleared unconditionally once the exit is under way.
func (e *Engine) ExecuteExit(ctx context.Context, pm *PositionManager, ticker string, reason types.ExitReason) error {
	event, ok := pm.BuildExitEvent(ticker, reason)
	if !ok {
		logger.Warn(ctx, "Cannot build exit event, no position or orderbook", "ticker", ticker)
		return nil
	}
	order, ok := pm.BuildExitOrder(ticker)
	if !ok {
		logger.Warn(ctx, "Cannot build exit order, no position or orderbook", "ticker", ticker)
		return nil
	}

	logger.Info(ctx, "Exit signal", "ticker", ticker, "reason", reason,
		"side", order.Side, "shares", order.Shares,
		"entry_cents", event.EntryPriceCents, "exit_cents", event.ExitPriceCents,
		"pnl_cents", event.PnLCents)

	if e.cfg.Paper() {
		logger.Trade(ctx, ticker, string(order.Side), order.Shares, order.PriceCents,
			event.OrderID, "mode", "paper", "action", "sell", "reason", string(reason))
	} else {
		result, err := e.exch.SellOrder(ctx, order)
		if err != nil {
			logger.ErrorWithErr(ctx, "Sell order failed", err, "ticker", ticker)
			return fmt.Errorf("selling position: %w", err)
		}
		logger.Trade(ctx, ticker, string(order.Side), order.Shares, order.PriceCents,
			result.OrderID, "mode", "live", "action", "sell", "status", result.Status)
	}

	if err := e.ledger.RecordEarlyExit(event); err != nil {
		logger.ErrorWithErr(ctx, "Failed to record early exit in ledger", err, "ticker", ticker)
	} else {
		e.mirrorResult(ctx, event.OrderID, "exit_"+string(reason), event.PnLCents)
	}

	if rows, err := e.ledger.Read(); err != nil {
		logger.ErrorWithErr(ctx, "Failed to re-read ledger after exit", err, "ticker", ticker)
	} else if err := e.ledger.WriteStats(ComputeStats(rows)); err != nil {
		logger.ErrorWithErr(ctx, "Failed to write stats after exit", err, "ticker", ticker)
	}

	pm.Clear(ticker)
	return nil
}

// fetchPriceSnapshot gathers candles and spot for the reference asset.
// Every failure path yields nil; the cycle proceeds without the snapshot.
func (e *Engine) fetchPriceSnapshot(ctx context.Context, symbol string) *types.PriceSnapshot {
	candles1m, err := e.feed.Candles(ctx, symbol, "1m", 15)
	if err != nil || len(candles1m) == 0 {
		return nil
	}
	candles5m, err := e.feed.Candles(ctx, symbol, "5m", 12)
	if err != nil || len(candles5m) == 0 {
		return nil
	}
	spot, err := e.feed.SpotPrice(ctx, symbol)
	if err != nil || spot <= 0 {
		return nil
	}
	return &types.PriceSnapshot{
		Candles1m:  candles1m,
		Candles5m:  candles5m,
		SpotPrice:  spot,
		Indicators: ta.Compute(candles1m, candles5m, spot),
	}
}

func (e *Engine) mirrorEntry(ctx context.Context, row types.LedgerRow) {
	if e.archive == nil {
		return
	}
	if err := e.archive.RecordEntry(ctx, row); err != nil {
		logger.Warn(ctx, "Archive mirror failed", "order_id", row.OrderID, "error", err)
	}
}

func (e *Engine) mirrorResult(ctx context.Context, orderID, result string, pnlCents int64) {
	if e.archive == nil || orderID == "" {
		return
	}
	if err := e.archive.RecordResult(ctx, orderID, result, pnlCents); err != nil {
		logger.Warn(ctx, "Archive mirror failed", "order_id", orderID, "error", err)
	}
}

func newestPending(rows []types.LedgerRow) (types.LedgerRow, bool) {
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Result == types.ResultPending {
			return rows[i], true
		}
	}
	return types.LedgerRow{}, false
}

func rowByOrderID(rows []types.LedgerRow, orderID string) (types.LedgerRow, bool) {
	if orderID == "" {
		return types.LedgerRow{}, false
	}
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].OrderID == orderID {
			return rows[i], true
		}
	}
	return types.LedgerRow{}, false
}

func lastTradesNewestFirst(rows []types.LedgerRow, n int) []types.LedgerRow {
	out := make([]types.LedgerRow, 0, n)
	for i := len(rows) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, rows[i])
	}
	return out
}
