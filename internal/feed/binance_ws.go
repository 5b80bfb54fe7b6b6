package feed

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"event-contract-bot/internal/logger"
)

// PriceUpdate is one streamed close-price observation.
type PriceUpdate struct {
	Symbol string
	Price  float64
}

// Stream follows the 1m kline channel for one or more symbols and pushes
// close prices to the updates channel. Reconnects forever with a fixed
// backoff; the stream is advisory and never fails the daemon.
type Stream struct {
	wsURL   string
	symbols []string
	updates chan PriceUpdate
}

func NewStream(wsURL string, symbols []string) *Stream {
	return &Stream{
		wsURL:   wsURL,
		symbols: symbols,
		updates: make(chan PriceUpdate, 64),
	}
}

func (s *Stream) Updates() <-chan PriceUpdate { return s.updates }

func (s *Stream) Run(ctx context.Context) error {
	url := s.streamURL()
	for {
		if err := s.connect(ctx, url); err != nil {
			logger.Warn(ctx, "Price stream disconnected", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			logger.Info(ctx, "Price stream reconnecting")
		}
	}
}

// streamURL builds a combined-stream URL: one kline_1m stream per symbol.
func (s *Stream) streamURL() string {
	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, strings.ToLower(sym)+"@kline_1m")
	}
	return s.wsURL + "/stream?streams=" + strings.Join(streams, "/")
}

func (s *Stream) connect(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info(ctx, "Price stream connected", "symbols", len(s.symbols))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		update, ok := parseKline(msg)
		if !ok {
			continue
		}
		select {
		case s.updates <- update:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// parseKline handles both the combined-stream envelope and the single
// stream format.
func parseKline(msg []byte) (PriceUpdate, bool) {
	var combined struct {
		Data json.RawMessage `json:"data"`
	}
	payload := msg
	if err := json.Unmarshal(msg, &combined); err == nil && len(combined.Data) > 0 {
		payload = combined.Data
	}

	var event struct {
		Kline struct {
			Symbol string `json:"s"`
			Close  string `json:"c"`
		} `json:"k"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return PriceUpdate{}, false
	}
	if event.Kline.Symbol == "" || event.Kline.Close == "" {
		return PriceUpdate{}, false
	}
	price, err := strconv.ParseFloat(event.Kline.Close, 64)
	if err != nil {
		return PriceUpdate{}, false
	}
	return PriceUpdate{Symbol: event.Kline.Symbol, Price: price}, true
}
