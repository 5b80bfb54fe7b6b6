package exchangeobs

import (
	"context"
	"time"

	"event-contract-bot/internal/interfaces"
	"event-contract-bot/internal/logger"
	"event-contract-bot/internal/types"
)

// observableExchange decorates an Exchange with spans and timing so every
// REST call shows up in traces without the adapter knowing about them.
type observableExchange struct {
	exch interfaces.Exchange
}

var _ interfaces.Exchange = (*observableExchange)(nil)

func Wrap(exch interfaces.Exchange) interfaces.Exchange {
	return &observableExchange{exch: exch}
}

func (oe *observableExchange) observe(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := logger.StartSpan(ctx, "exchange."+op)
	start := time.Now()
	return ctx, func(err error) {
		span.End()
		if err != nil {
			logger.ErrorWithErr(ctx, "Exchange call failed", err,
				"op", op, "duration_ms", time.Since(start).Milliseconds())
			return
		}
		logger.Debug(ctx, "Exchange call completed",
			"op", op, "duration_ms", time.Since(start).Milliseconds())
	}
}

func (oe *observableExchange) ActiveMarket(ctx context.Context, seriesTicker string) (*types.Market, error) {
	ctx, done := oe.observe(ctx, "ActiveMarket")
	m, err := oe.exch.ActiveMarket(ctx, seriesTicker)
	done(err)
	return m, err
}

func (oe *observableExchange) Orderbook(ctx context.Context, ticker string) (types.Orderbook, error) {
	ctx, done := oe.observe(ctx, "Orderbook")
	book, err := oe.exch.Orderbook(ctx, ticker)
	done(err)
	return book, err
}

func (oe *observableExchange) RestingOrders(ctx context.Context) ([]types.RestingOrder, error) {
	ctx, done := oe.observe(ctx, "RestingOrders")
	orders, err := oe.exch.RestingOrders(ctx)
	done(err)
	return orders, err
}

func (oe *observableExchange) CancelOrder(ctx context.Context, orderID string) error {
	ctx, done := oe.observe(ctx, "CancelOrder")
	err := oe.exch.CancelOrder(ctx, orderID)
	done(err)
	return err
}

func (oe *observableExchange) PlaceOrder(ctx context.Context, order types.OrderRequest) (types.OrderResult, error) {
	ctx, done := oe.observe(ctx, "PlaceOrder")
	result, err := oe.exch.PlaceOrder(ctx, order)
	done(err)
	return result, err
}

func (oe *observableExchange) SellOrder(ctx context.Context, order types.OrderRequest) (types.OrderResult, error) {
	ctx, done := oe.observe(ctx, "SellOrder")
	result, err := oe.exch.SellOrder(ctx, order)
	done(err)
	return result, err
}

func (oe *observableExchange) Positions(ctx context.Context) ([]types.Position, error) {
	ctx, done := oe.observe(ctx, "Positions")
	positions, err := oe.exch.Positions(ctx)
	done(err)
	return positions, err
}

func (oe *observableExchange) Settlements(ctx context.Context, ticker string) ([]types.Settlement, error) {
	ctx, done := oe.observe(ctx, "Settlements")
	settlements, err := oe.exch.Settlements(ctx, ticker)
	done(err)
	return settlements, err
}

func (oe *observableExchange) Balance(ctx context.Context) (int64, error) {
	ctx, done := oe.observe(ctx, "Balance")
	balance, err := oe.exch.Balance(ctx)
	done(err)
	return balance, err
}
