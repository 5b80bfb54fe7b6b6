package kalshi

// Wire types for the trade API. Optional numeric fields are pointers so a
// missing value is distinguishable from zero.

type apiMarket struct {
	Ticker                 string `json:"ticker"`
	EventTicker            string `json:"event_ticker"`
	Title                  string `json:"title"`
	Status                 string `json:"status"`
	YesBid                 int    `json:"yes_bid"`
	YesAsk                 int    `json:"yes_ask"`
	NoBid                  int    `json:"no_bid"`
	NoAsk                  int    `json:"no_ask"`
	LastPrice              int    `json:"last_price"`
	Volume                 *int64 `json:"volume"`
	Volume24h              *int64 `json:"volume_24h"`
	OpenInterest           *int64 `json:"open_interest"`
	ExpirationTime         string `json:"expiration_time"`
	ExpectedExpirationTime string `json:"expected_expiration_time"`
}

type marketsResponse struct {
	Markets []apiMarket `json:"markets"`
}

type orderbookResponse struct {
	Orderbook struct {
		Yes [][]int `json:"yes"`
		No  [][]int `json:"no"`
	} `json:"orderbook"`
}

type apiOrder struct {
	OrderID string `json:"order_id"`
	Ticker  string `json:"ticker"`
	Status  string `json:"status"`
}

type ordersResponse struct {
	Orders []apiOrder `json:"orders"`
}

type createOrderRequest struct {
	Ticker        string `json:"ticker"`
	Action        string `json:"action"`
	Side          string `json:"side"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	YesPrice      int    `json:"yes_price"`
	ClientOrderID string `json:"client_order_id"`
}

type createOrderResponse struct {
	Order apiOrder `json:"order"`
}

type apiPosition struct {
	Ticker         string `json:"ticker"`
	MarketExposure *int64 `json:"market_exposure"`
}

type positionsResponse struct {
	MarketPositions []apiPosition `json:"market_positions"`
}

type apiSettlement struct {
	Ticker       string `json:"ticker"`
	MarketResult string `json:"market_result"`
	Revenue      *int64 `json:"revenue"`
	SettledTime  string `json:"settled_time"`
}

type settlementsResponse struct {
	Settlements []apiSettlement `json:"settlements"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}
