package interfaces

import (
	"context"

	"event-contract-bot/internal/types"
)

// PriceFeed supplies the correlated reference asset's candles and spot
// price. Upstream failures yield an empty answer, never an error; the
// snapshot is optional input to a cycle.
type PriceFeed interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	SpotPrice(ctx context.Context, symbol string) (float64, error)
}
