package kalshi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"event-contract-bot/internal/logger"
	"event-contract-bot/internal/types"
)

const (
	wsPath         = "/trade-api/ws/v2"
	reconnectDelay = 5 * time.Second
	readDeadline   = 30 * time.Second
)

// Event is one message from the market stream. Exactly one field is set.
type Event struct {
	Orderbook    *types.OrderbookUpdate
	Fill         *types.FillEvent
	Lifecycle    *types.MarketLifecycleEvent
	Disconnected bool
}

type streamCmd struct {
	subscribe bool
	channels  []string
	ticker    string
}

// Stream maintains the market data websocket across reconnects. Callers
// interact only through the command channel (Subscribe/Unsubscribe) and
// the event channel; the connection itself is owned by Run.
//
// Subscriptions survive reconnects: the desired set is replayed after
// every successful dial.
type Stream struct {
	wsURL  string
	auth   *Auth
	events chan Event
	cmds   chan streamCmd

	// All fields below are touched only from the Run goroutine.
	desired map[string][]string               // ticker → channels
	books   map[string]map[string]map[int]int // ticker → side → price → qty
	cmdSeq  int64
}

func NewStream(wsURL string, auth *Auth) *Stream {
	return &Stream{
		wsURL:   wsURL,
		auth:    auth,
		events:  make(chan Event, 256),
		cmds:    make(chan streamCmd, 32),
		desired: make(map[string][]string),
		books:   make(map[string]map[string]map[int]int),
	}
}

func (s *Stream) Events() <-chan Event { return s.events }

// Subscribe registers interest in a ticker's channels. Safe from any
// goroutine; the Run loop applies it.
func (s *Stream) Subscribe(ctx context.Context, channels []string, ticker string) {
	select {
	case s.cmds <- streamCmd{subscribe: true, channels: channels, ticker: ticker}:
	case <-ctx.Done():
	}
}

func (s *Stream) Unsubscribe(ctx context.Context, channels []string, ticker string) {
	select {
	case s.cmds <- streamCmd{subscribe: false, channels: channels, ticker: ticker}:
	case <-ctx.Done():
	}
}

// Run drives the connect/read/reconnect cycle until the context ends.
func (s *Stream) Run(ctx context.Context) error {
	for {
		conn, err := s.dial(ctx)
		if err != nil {
			logger.Warn(ctx, "Market stream connect failed", "error", err)
		} else {
			s.session(ctx, conn)
			s.emit(ctx, Event{Disconnected: true})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
			logger.Info(ctx, "Market stream reconnecting")
		}
	}
}

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	headers, err := s.auth.Headers(http.MethodGet, wsPath)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, h)
	if err != nil {
		return nil, err
	}

	// The server pings every ~10s; each ping or pong extends the deadline.
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	return conn, nil
}

// session owns one live connection: replays subscriptions, then serves
// commands and inbound messages until the connection drops.
func (s *Stream) session(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	// Orderbook state is connection-scoped; fresh snapshots follow subscribe.
	s.books = make(map[string]map[string]map[int]int)

	for ticker, channels := range s.desired {
		if err := s.writeCmd(conn, "subscribe", channels, ticker); err != nil {
			logger.Warn(ctx, "Market stream resubscribe failed", "ticker", ticker, "error", err)
			return
		}
	}
	logger.Info(ctx, "Market stream connected", "subscriptions", len(s.desired))

	msgs := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(readDeadline))
			msgs <- msg
		}
	}()

	ping := time.NewTicker(10 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				logger.Debug(ctx, "Market stream ping failed", "error", err)
				return
			}
		case cmd := <-s.cmds:
			if cmd.subscribe {
				s.desired[cmd.ticker] = cmd.channels
				if err := s.writeCmd(conn, "subscribe", cmd.channels, cmd.ticker); err != nil {
					logger.Warn(ctx, "Market stream subscribe failed", "ticker", cmd.ticker, "error", err)
					return
				}
			} else {
				delete(s.desired, cmd.ticker)
				delete(s.books, cmd.ticker)
				if err := s.writeCmd(conn, "unsubscribe", cmd.channels, cmd.ticker); err != nil {
					logger.Warn(ctx, "Market stream unsubscribe failed", "ticker", cmd.ticker, "error", err)
					return
				}
			}
		case msg, ok := <-msgs:
			if !ok {
				err := <-readErr
				logger.Warn(ctx, "Market stream read error", "error", err)
				return
			}
			if ev, ok := s.parse(msg); ok {
				s.emit(ctx, ev)
			}
		}
	}
}

// writeCmd sends one subscribe/unsubscribe command. An empty ticker means
// an account-scoped channel (fills) with no market filter.
func (s *Stream) writeCmd(conn *websocket.Conn, cmd string, channels []string, ticker string) error {
	s.cmdSeq++
	params := map[string]any{"channels": channels}
	if ticker != "" {
		params["market_tickers"] = []string{ticker}
	}
	payload := map[string]any{
		"id":     s.cmdSeq,
		"cmd":    cmd,
		"params": params,
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetWriteDeadline(time.Time{})
	return conn.WriteJSON(payload)
}

func (s *Stream) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

func (s *Stream) parse(raw []byte) (Event, bool) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, false
	}

	switch env.Type {
	case "orderbook_snapshot":
		var p struct {
			MarketTicker string  `json:"market_ticker"`
			Yes          [][]int `json:"yes"`
			No           [][]int `json:"no"`
		}
		if err := json.Unmarshal(env.Msg, &p); err != nil {
			return Event{}, false
		}
		book := map[string]map[int]int{"yes": levelMap(p.Yes), "no": levelMap(p.No)}
		s.books[p.MarketTicker] = book
		return s.bookEvent(p.MarketTicker), true

	case "orderbook_delta":
		var p struct {
			MarketTicker string `json:"market_ticker"`
			Price        int    `json:"price"`
			Delta        int    `json:"delta"`
			Side         string `json:"side"`
		}
		if err := json.Unmarshal(env.Msg, &p); err != nil {
			return Event{}, false
		}
		book, ok := s.books[p.MarketTicker]
		if !ok {
			// Deltas before the snapshot carry no usable state.
			return Event{}, false
		}
		side, ok := book[p.Side]
		if !ok {
			return Event{}, false
		}
		side[p.Price] += p.Delta
		if side[p.Price] <= 0 {
			delete(side, p.Price)
		}
		return s.bookEvent(p.MarketTicker), true

	case "fill":
		var p struct {
			OrderID      string `json:"order_id"`
			MarketTicker string `json:"market_ticker"`
			Side         string `json:"side"`
			Count        int    `json:"count"`
			YesPrice     int    `json:"yes_price"`
		}
		if err := json.Unmarshal(env.Msg, &p); err != nil {
			return Event{}, false
		}
		side := types.Side(p.Side)
		if side != types.SideYes && side != types.SideNo {
			return Event{}, false
		}
		price := p.YesPrice
		if side == types.SideNo {
			price = 100 - p.YesPrice
		}
		return Event{Fill: &types.FillEvent{
			OrderID:    p.OrderID,
			Ticker:     p.MarketTicker,
			Side:       side,
			Shares:     p.Count,
			PriceCents: price,
		}}, true

	case "market_lifecycle", "market_lifecycle_v2":
		var p struct {
			MarketTicker string `json:"market_ticker"`
			Status       string `json:"status"`
			Result       string `json:"result"`
		}
		if err := json.Unmarshal(env.Msg, &p); err != nil {
			return Event{}, false
		}
		return Event{Lifecycle: &types.MarketLifecycleEvent{
			Ticker: p.MarketTicker,
			Status: p.Status,
			Result: p.Result,
		}}, true
	}
	return Event{}, false
}

// bookEvent renders the tracked book as a wholesale replacement update.
func (s *Stream) bookEvent(ticker string) Event {
	book := s.books[ticker]
	return Event{Orderbook: &types.OrderbookUpdate{
		Ticker: ticker,
		Book: types.Orderbook{
			Yes: sortedLevels(book["yes"]),
			No:  sortedLevels(book["no"]),
		},
	}}
}

func levelMap(raw [][]int) map[int]int {
	m := make(map[int]int, len(raw))
	for _, l := range raw {
		if len(l) >= 2 {
			m[l[0]] = l[1]
		}
	}
	return m
}

func sortedLevels(m map[int]int) []types.Level {
	if len(m) == 0 {
		return nil
	}
	levels := make([]types.Level, 0, len(m))
	for price, qty := range m {
		levels = append(levels, types.Level{Price: price, Qty: qty})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	return levels
}
