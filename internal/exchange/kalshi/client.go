package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"event-contract-bot/internal/logger"
	"event-contract-bot/internal/store"
	"event-contract-bot/internal/types"
)

const apiPrefix = "/trade-api/v2"

// Client is the REST trade client. All price fields are integer cents;
// the no side is expressed through yes_price (100 minus the no price) on
// the wire, so callers never see that inversion.
type Client struct {
	http    *http.Client
	auth    *Auth
	baseURL string
	limiter *rate.Limiter
}

func NewClient(cfg *store.Config) (*Client, error) {
	auth, err := NewAuth(cfg.Exchange.KeyID, cfg.Exchange.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("exchange auth: %w", err)
	}
	rps := cfg.Exchange.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		auth:    auth,
		baseURL: cfg.Exchange.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// request performs one signed API call. A 429 is retried exactly once
// after a 2s pause; any other failure surfaces to the caller.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		reqURL := c.baseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return err
		}
		headers, err := c.auth.Headers(method, path)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("exchange request failed: %w", err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			logger.Warn(ctx, "Exchange rate limited, retrying in 2s", "path", path)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("exchange %s %s -> %d: %s", method, path, resp.StatusCode, respBody)
		}
		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decoding %s response: %w", path, err)
			}
		}
		return nil
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.request(ctx, http.MethodGet, path, query, nil, out)
}

// ActiveMarket returns the open market in the series with the soonest
// future expiry, or nil when none qualifies.
func (c *Client) ActiveMarket(ctx context.Context, seriesTicker string) (*types.Market, error) {
	q := url.Values{}
	q.Set("series_ticker", seriesTicker)
	q.Set("status", "open")

	var resp marketsResponse
	if err := c.get(ctx, apiPrefix+"/markets", q, &resp); err != nil {
		return nil, err
	}

	now := time.Now()
	var candidates []types.Market
	for _, m := range resp.Markets {
		expStr := m.ExpectedExpirationTime
		if expStr == "" {
			expStr = m.ExpirationTime
		}
		exp, err := time.Parse(time.RFC3339, expStr)
		if err != nil {
			continue
		}
		mins := exp.Sub(now).Minutes()
		if mins <= 0 {
			continue
		}
		candidates = append(candidates, types.Market{
			Ticker:          m.Ticker,
			EventTicker:     m.EventTicker,
			Title:           m.Title,
			YesBid:          m.YesBid,
			YesAsk:          m.YesAsk,
			NoBid:           m.NoBid,
			NoAsk:           m.NoAsk,
			LastPrice:       m.LastPrice,
			Volume:          deref(m.Volume),
			Volume24h:       deref(m.Volume24h),
			OpenInterest:    deref(m.OpenInterest),
			ExpirationTime:  expStr,
			MinutesToExpiry: mins,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].MinutesToExpiry < candidates[j].MinutesToExpiry
	})
	m := candidates[0]
	return &m, nil
}

func (c *Client) Orderbook(ctx context.Context, ticker string) (types.Orderbook, error) {
	var resp orderbookResponse
	path := fmt.Sprintf("%s/markets/%s/orderbook", apiPrefix, ticker)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return types.Orderbook{}, err
	}
	return types.Orderbook{
		Yes: parseLevels(resp.Orderbook.Yes),
		No:  parseLevels(resp.Orderbook.No),
	}, nil
}

func parseLevels(raw [][]int) []types.Level {
	var levels []types.Level
	for _, l := range raw {
		if len(l) >= 2 {
			levels = append(levels, types.Level{Price: l[0], Qty: l[1]})
		}
	}
	return levels
}

func (c *Client) RestingOrders(ctx context.Context) ([]types.RestingOrder, error) {
	q := url.Values{}
	q.Set("status", "resting")

	var resp ordersResponse
	if err := c.get(ctx, apiPrefix+"/portfolio/orders", q, &resp); err != nil {
		return nil, err
	}
	out := make([]types.RestingOrder, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		out = append(out, types.RestingOrder{OrderID: o.OrderID, Ticker: o.Ticker})
	}
	return out, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("%s/portfolio/orders/%s", apiPrefix, orderID)
	return c.request(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) PlaceOrder(ctx context.Context, order types.OrderRequest) (types.OrderResult, error) {
	return c.submitOrder(ctx, order, "buy")
}

// SellOrder closes an existing position with a limit sell of our side.
func (c *Client) SellOrder(ctx context.Context, order types.OrderRequest) (types.OrderResult, error) {
	return c.submitOrder(ctx, order, "sell")
}

func (c *Client) submitOrder(ctx context.Context, order types.OrderRequest, action string) (types.OrderResult, error) {
	yesPrice := order.PriceCents
	if order.Side == types.SideNo {
		yesPrice = 100 - order.PriceCents
	}
	body := createOrderRequest{
		Ticker:        order.Ticker,
		Action:        action,
		Side:          string(order.Side),
		Count:         order.Shares,
		Type:          "limit",
		YesPrice:      yesPrice,
		ClientOrderID: uuid.NewString(),
	}

	var resp createOrderResponse
	if err := c.request(ctx, http.MethodPost, apiPrefix+"/portfolio/orders", nil, body, &resp); err != nil {
		return types.OrderResult{}, err
	}
	return types.OrderResult{OrderID: resp.Order.OrderID, Status: resp.Order.Status}, nil
}

// Positions reports only markets with nonzero exposure. Positive exposure
// is a yes position, negative a no position.
func (c *Client) Positions(ctx context.Context) ([]types.Position, error) {
	var resp positionsResponse
	if err := c.get(ctx, apiPrefix+"/portfolio/positions", nil, &resp); err != nil {
		return nil, err
	}
	var out []types.Position
	for _, p := range resp.MarketPositions {
		exposure := deref(p.MarketExposure)
		if exposure == 0 {
			continue
		}
		side := types.SideYes
		if exposure < 0 {
			side = types.SideNo
			exposure = -exposure
		}
		out = append(out, types.Position{Ticker: p.Ticker, Side: side, Count: int(exposure)})
	}
	return out, nil
}

// Settlements maps exchange settlements to win/loss by the sign of the
// revenue. Revenue is gross (cost basis not subtracted); the ledger
// derives net pnl.
func (c *Client) Settlements(ctx context.Context, ticker string) ([]types.Settlement, error) {
	q := url.Values{}
	q.Set("ticker", ticker)

	var resp settlementsResponse
	if err := c.get(ctx, apiPrefix+"/portfolio/settlements", q, &resp); err != nil {
		return nil, err
	}
	out := make([]types.Settlement, 0, len(resp.Settlements))
	for _, s := range resp.Settlements {
		revenue := deref(s.Revenue)
		result := types.ResultLoss
		if revenue > 0 {
			result = types.ResultWin
		}
		out = append(out, types.Settlement{
			Ticker:       s.Ticker,
			Result:       result,
			PnLCents:     revenue,
			MarketResult: s.MarketResult,
			SettledTime:  s.SettledTime,
		})
	}
	return out, nil
}

func (c *Client) Balance(ctx context.Context) (int64, error) {
	var resp balanceResponse
	if err := c.get(ctx, apiPrefix+"/portfolio/balance", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
