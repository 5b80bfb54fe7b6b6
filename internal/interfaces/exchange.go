package interfaces

import (
	"context"

	"event-contract-bot/internal/types"
)

// Exchange is the capability set the trading core needs from the contract
// exchange. Concrete integrations are interchangeable; tests use a
// deterministic double.
type Exchange interface {
	// ActiveMarket returns the series' open market with the soonest future
	// expiry, or nil when none is listed.
	ActiveMarket(ctx context.Context, seriesTicker string) (*types.Market, error)
	Orderbook(ctx context.Context, ticker string) (types.Orderbook, error)
	RestingOrders(ctx context.Context) ([]types.RestingOrder, error)
	CancelOrder(ctx context.Context, orderID string) error
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error)
	SellOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error)
	Positions(ctx context.Context) ([]types.Position, error)
	Settlements(ctx context.Context, ticker string) ([]types.Settlement, error)
	Balance(ctx context.Context) (int64, error)
}
