package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"event-contract-bot/internal/logger"
	"event-contract-bot/internal/types"
)

// Client fetches candles and spot prices for the reference asset. The
// feed is advisory only, so every upstream failure degrades to "no data"
// instead of an error; callers must tolerate empty results.
type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
	}
}

func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	reqURL := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.baseURL, url.QueryEscape(symbol), url.QueryEscape(interval), limit)

	body, ok := c.fetch(ctx, reqURL, "klines")
	if !ok {
		return nil, nil
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		logger.Warn(ctx, "Price feed klines parse error", "symbol", symbol, "error", err)
		return nil, nil
	}

	candles := make([]types.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		candle, ok := parseKlineRow(row)
		if !ok {
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func (c *Client) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	reqURL := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	body, ok := c.fetch(ctx, reqURL, "ticker")
	if !ok {
		return 0, nil
	}

	var ticker struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		logger.Warn(ctx, "Price feed ticker parse error", "symbol", symbol, "error", err)
		return 0, nil
	}
	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, nil
	}
	return price, nil
}

func (c *Client) fetch(ctx context.Context, reqURL, what string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn(ctx, "Price feed request failed", "what", what, "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn(ctx, "Price feed request rejected", "what", what, "status", resp.StatusCode)
		return nil, false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}
	return body, true
}

// Kline rows mix numbers and strings: timestamps are numbers, prices are
// decimal strings.
func parseKlineRow(row []json.RawMessage) (types.Candle, bool) {
	var c types.Candle
	if err := json.Unmarshal(row[0], &c.OpenTime); err != nil {
		return c, false
	}
	if err := json.Unmarshal(row[6], &c.CloseTime); err != nil {
		return c, false
	}
	fields := []struct {
		raw json.RawMessage
		dst *float64
	}{
		{row[1], &c.Open},
		{row[2], &c.High},
		{row[3], &c.Low},
		{row[4], &c.Close},
		{row[5], &c.Volume},
	}
	for _, f := range fields {
		var s string
		if err := json.Unmarshal(f.raw, &s); err != nil {
			return c, false
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return c, false
		}
		*f.dst = v
	}
	return c, true
}
