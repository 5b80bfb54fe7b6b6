package types

import "time"

// Side is one of the two outcomes of a binary event contract.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other side of the contract.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Decision is the structured reply extracted from the reasoning service.
// Zero values mean the field was omitted; the orchestrator applies defaults.
type Decision struct {
	Action        string `json:"action"` // BUY or PASS
	Side          Side   `json:"side,omitempty"`
	Shares        int    `json:"shares,omitempty"`
	MaxPriceCents int    `json:"max_price_cents,omitempty"`
	Reasoning     string `json:"reasoning"`
}

const (
	ActionBuy  = "BUY"
	ActionPass = "PASS"
)

// Market is the fresh-per-cycle view of one time-boxed contract instance.
// Bid/ask fields use 0 for "not quoted".
type Market struct {
	Ticker          string
	EventTicker     string
	Title           string
	YesBid          int
	YesAsk          int
	NoBid           int
	NoAsk           int
	LastPrice       int
	Volume          int64
	Volume24h       int64
	OpenInterest    int64
	ExpirationTime  string
	MinutesToExpiry float64
}

// Level is one resting price level: price in cents and total quantity.
type Level struct {
	Price int
	Qty   int
}

// Orderbook holds the resting depth for both sides of one market.
type Orderbook struct {
	Yes []Level
	No  []Level
}

// OrderbookUpdate replaces the cached book for a ticker wholesale.
type OrderbookUpdate struct {
	Ticker string
	Book   Orderbook
}

// FillEvent notifies that an order executed fully or partially.
type FillEvent struct {
	OrderID    string
	Ticker     string
	Side       Side
	Shares     int
	PriceCents int
}

// MarketLifecycleEvent carries status transitions for a market
// (e.g. settled, finalized).
type MarketLifecycleEvent struct {
	Ticker string
	Status string
	Result string
}

// OpenPosition is one held position, keyed by market ticker.
type OpenPosition struct {
	Ticker          string
	Side            Side
	Shares          int
	EntryPriceCents int
	OrderID         string
	EnteredAt       time.Time
}

type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
)

// ExitSignal pairs a ticker with the reason its position should close.
type ExitSignal struct {
	Ticker string
	Reason ExitReason
}

// ExitEvent records an early exit for the ledger.
type ExitEvent struct {
	Ticker          string
	Reason          ExitReason
	EntryPriceCents int
	ExitPriceCents  int
	Shares          int
	PnLCents        int64
	OrderID         string
}

// OrderRequest is a buy or sell instruction for the exchange.
type OrderRequest struct {
	Ticker     string
	Side       Side
	Shares     int
	PriceCents int
}

type OrderResult struct {
	OrderID string
	Status  string
}

type RestingOrder struct {
	OrderID string
	Ticker  string
}

// Position is the exchange's own view of exposure on one market.
type Position struct {
	Ticker string
	Side   Side
	Count  int
}

type Settlement struct {
	Ticker       string
	Result       string
	PnLCents     int64
	MarketResult string
	SettledTime  string
}

// Candle is one OHLCV bar from the correlated price reference.
type Candle struct {
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64
}

type Momentum string

const (
	MomentumUp   Momentum = "UP"
	MomentumDown Momentum = "DOWN"
	MomentumFlat Momentum = "FLAT"
)

// PriceIndicators is the derived technical view of the reference asset.
type PriceIndicators struct {
	SpotPrice    float64
	PctChange5m  float64
	PctChange15m float64
	PctChange1h  float64
	Momentum     Momentum
	SMA15m       float64
	PriceVsSMA   string
	Volatility1m float64
	RSI9         float64
	EMA9         float64
	PriceVsEMA   string
	Last3Candles []Candle
}

// PriceSnapshot bundles raw candles with derived indicators.
type PriceSnapshot struct {
	Candles1m  []Candle
	Candles5m  []Candle
	SpotPrice  float64
	Indicators PriceIndicators
}

type TrendAlignment string

const (
	TrendAllUp   TrendAlignment = "ALL_UP"
	TrendAllDown TrendAlignment = "ALL_DOWN"
	TrendAllFlat TrendAlignment = "ALL_FLAT"
	TrendMixed   TrendAlignment = "MIXED"
)

// SignalSummary is the deterministic probability/edge synthesis handed to
// the reasoning service alongside the raw data.
type SignalSummary struct {
	Trend                TrendAlignment
	RSISignal            string
	OrderbookImbalance   float64
	RecommendedSide      Side // empty when neither side has positive edge
	EstimatedEdge        float64
	EstimatedPriceCents  float64
	KellyShares          int
	EstimatedProbability float64
	Narrative            string
}

// LedgerRow is one line of the durable trade ledger.
type LedgerRow struct {
	Timestamp       string
	Ticker          string
	Side            string
	Shares          int
	Price           int
	Result          string
	PnLCents        int64
	CumulativeCents int64
	OrderID         string
}

// Terminal reports whether the row has reached a final result.
func (r LedgerRow) Terminal() bool {
	return r.Result != ResultPending
}

const (
	ResultPending   = "pending"
	ResultWin       = "win"
	ResultLoss      = "loss"
	ResultCancelled = "cancelled"
	ResultUnknown   = "unknown"
)

// Stats is a pure derivation over the ledger; never authoritative.
type Stats struct {
	TotalTrades      int
	Wins             int
	Losses           int
	WinRate          float64
	TotalPnLCents    int64
	TodayPnLCents    int64
	CurrentStreak    int
	MaxDrawdownCents int64
	AvgWinCents      float64
	AvgLossCents     float64
}

// DecisionContext is everything the reasoning service sees for one cycle.
type DecisionContext struct {
	PromptMD   string
	Stats      Stats
	LastTrades []LedgerRow // newest first, at most 20
	Market     Market
	Orderbook  Orderbook
	Price      *PriceSnapshot // nil when the feed was unavailable
	Signal     *SignalSummary // nil when no price snapshot was available
	PriceLabel string
}
