package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"event-contract-bot/internal/engine"
	"event-contract-bot/internal/exchange/kalshi"
	"event-contract-bot/internal/logger"
)

// positionChannels are the per-market streams followed while holding a
// position. Fills are account-scoped and subscribed once at startup.
var positionChannels = []string{"orderbook_delta", "market_lifecycle_v2"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer a.close()

	if err := run(ctx, a); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "Daemon stopped with error", "error", err)
		logger.Shutdown(context.Background())
		log.Fatal(err)
	}
	logger.Info(ctx, "Daemon stopped")
	logger.Shutdown(context.Background())
}

// run is the single event loop. All position and subscription state is
// owned here; stream tasks only deliver events over channels.
func run(ctx context.Context, a *app) error {
	go a.market.Run(ctx)
	go a.prices.Run(ctx)

	// Fills arrive for the whole account; subscribe once up front.
	a.market.Subscribe(ctx, []string{"fill"}, "")

	logger.Info(ctx, "Daemon starting",
		"mode", a.cfg.Mode, "series", len(a.cfg.Series),
		"tp_cents", a.cfg.Exit.TakeProfitCents, "sl_cents", a.cfg.Exit.StopLossCents)

	// First entry cycle runs immediately; timers take over afterwards.
	if err := runEntryCycles(ctx, a); err != nil {
		return err
	}

	entryTimer := time.NewTicker(time.Duration(a.cfg.Timers.EntrySeconds) * time.Second)
	defer entryTimer.Stop()
	positionTimer := time.NewTicker(time.Duration(a.cfg.Timers.PositionCheckSeconds) * time.Second)
	defer positionTimer.Stop()

	subscribed := make(map[string]bool)
	latestPrices := make(map[string]float64)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Shutdown signal received, exiting event loop")
			return ctx.Err()

		case ev := <-a.market.Events():
			switch {
			case ev.Orderbook != nil:
				a.pm.OnOrderbookUpdate(*ev.Orderbook)

			case ev.Fill != nil:
				fill := *ev.Fill
				a.pm.OnFill(ctx, fill)
				if !subscribed[fill.Ticker] {
					a.market.Subscribe(ctx, positionChannels, fill.Ticker)
					subscribed[fill.Ticker] = true
				}

			case ev.Lifecycle != nil:
				lc := *ev.Lifecycle
				logger.Info(ctx, "Market lifecycle", "ticker", lc.Ticker,
					"status", lc.Status, "result", lc.Result)
				if (lc.Status == "settled" || lc.Status == "finalized") && a.pm.HasPosition(lc.Ticker) {
					logger.Info(ctx, "Market settled, clearing position", "ticker", lc.Ticker)
					a.pm.Clear(lc.Ticker)
					dropSubscription(ctx, a.market, subscribed, lc.Ticker)
				}

			case ev.Disconnected:
				// The stream replays the subscription set on reconnect.
				logger.Warn(ctx, "Market stream disconnected, auto-reconnecting")
			}

		case upd := <-a.prices.Updates():
			latestPrices[upd.Symbol] = upd.Price
			logger.Debug(ctx, "Price update", "symbol", upd.Symbol, "price", upd.Price)

		case <-entryTimer.C:
			for _, s := range a.cfg.Series {
				if spot, ok := latestPrices[s.Symbol]; ok {
					logger.Debug(ctx, "Spot at entry tick", "symbol", s.Symbol, "price", spot)
				}
			}
			if err := runEntryCycles(ctx, a); err != nil {
				return err
			}
			for _, ticker := range a.pm.OpenTickers() {
				if !subscribed[ticker] {
					a.market.Subscribe(ctx, positionChannels, ticker)
					subscribed[ticker] = true
				}
			}

		case <-positionTimer.C:
			for _, sig := range a.pm.EvaluateExits() {
				if err := a.engine.ExecuteExit(ctx, a.pm, sig.Ticker, sig.Reason); err != nil {
					logger.ErrorWithErr(ctx, "Exit execution failed", err, "ticker", sig.Ticker)
					continue
				}
				dropSubscription(ctx, a.market, subscribed, sig.Ticker)
			}
		}
	}
}

// runEntryCycles runs one entry cycle per configured series. Cycle errors
// are logged and absorbed except the untracked-position case, which is
// the one state the daemon must not keep trading through.
func runEntryCycles(ctx context.Context, a *app) error {
	for _, series := range a.cfg.Series {
		err := a.engine.EntryCycle(ctx, a.pm, series)
		if err == nil {
			continue
		}
		if errors.Is(err, engine.ErrUntrackedPosition) {
			return err
		}
		logger.ErrorWithErr(ctx, "Entry cycle failed", err, "series", series.Ticker)
	}
	return nil
}

func dropSubscription(ctx context.Context, stream *kalshi.Stream, subscribed map[string]bool, ticker string) {
	if subscribed[ticker] {
		stream.Unsubscribe(ctx, positionChannels, ticker)
		delete(subscribed, ticker)
	}
}
