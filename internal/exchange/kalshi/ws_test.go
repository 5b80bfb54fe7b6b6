package kalshi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-contract-bot/internal/types"
)

func TestParseOrderbookSnapshot(t *testing.T) {
	s := NewStream("", nil)
	raw := []byte(`{"type":"orderbook_snapshot","msg":{"market_ticker":"KXBTC-A","yes":[[30,10],[42,5]],"no":[[55,7]]}}`)

	ev, ok := s.parse(raw)
	require.True(t, ok)
	require.NotNil(t, ev.Orderbook)
	assert.Equal(t, "KXBTC-A", ev.Orderbook.Ticker)
	assert.Equal(t, []types.Level{{Price: 30, Qty: 10}, {Price: 42, Qty: 5}}, ev.Orderbook.Book.Yes)
	assert.Equal(t, []types.Level{{Price: 55, Qty: 7}}, ev.Orderbook.Book.No)
}

func TestParseOrderbookDeltaAppliesToSnapshot(t *testing.T) {
	s := NewStream("", nil)
	_, ok := s.parse([]byte(`{"type":"orderbook_snapshot","msg":{"market_ticker":"KXBTC-A","yes":[[30,10]],"no":[]}}`))
	require.True(t, ok)

	ev, ok := s.parse([]byte(`{"type":"orderbook_delta","msg":{"market_ticker":"KXBTC-A","price":30,"delta":-4,"side":"yes"}}`))
	require.True(t, ok)
	require.NotNil(t, ev.Orderbook)
	assert.Equal(t, []types.Level{{Price: 30, Qty: 6}}, ev.Orderbook.Book.Yes)

	// Depletion removes the level entirely.
	ev, ok = s.parse([]byte(`{"type":"orderbook_delta","msg":{"market_ticker":"KXBTC-A","price":30,"delta":-6,"side":"yes"}}`))
	require.True(t, ok)
	assert.Empty(t, ev.Orderbook.Book.Yes)
}

func TestParseDeltaBeforeSnapshotDropped(t *testing.T) {
	s := NewStream("", nil)
	_, ok := s.parse([]byte(`{"type":"orderbook_delta","msg":{"market_ticker":"KXBTC-A","price":30,"delta":5,"side":"yes"}}`))
	assert.False(t, ok)
}

func TestParseFillYesSide(t *testing.T) {
	s := NewStream("", nil)
	ev, ok := s.parse([]byte(`{"type":"fill","msg":{"order_id":"ord-1","market_ticker":"KXBTC-A","side":"yes","count":2,"yes_price":37}}`))
	require.True(t, ok)
	require.NotNil(t, ev.Fill)
	assert.Equal(t, types.SideYes, ev.Fill.Side)
	assert.Equal(t, 37, ev.Fill.PriceCents)
	assert.Equal(t, 2, ev.Fill.Shares)
}

func TestParseFillNoSideInvertsPrice(t *testing.T) {
	s := NewStream("", nil)
	ev, ok := s.parse([]byte(`{"type":"fill","msg":{"order_id":"ord-1","market_ticker":"KXBTC-A","side":"no","count":1,"yes_price":37}}`))
	require.True(t, ok)
	require.NotNil(t, ev.Fill)
	assert.Equal(t, types.SideNo, ev.Fill.Side)
	assert.Equal(t, 63, ev.Fill.PriceCents)
}

func TestParseLifecycle(t *testing.T) {
	s := NewStream("", nil)
	ev, ok := s.parse([]byte(`{"type":"market_lifecycle_v2","msg":{"market_ticker":"KXBTC-A","status":"settled","result":"yes"}}`))
	require.True(t, ok)
	require.NotNil(t, ev.Lifecycle)
	assert.Equal(t, "settled", ev.Lifecycle.Status)
	assert.Equal(t, "yes", ev.Lifecycle.Result)
}

func TestParseUnknownTypeIgnored(t *testing.T) {
	s := NewStream("", nil)
	_, ok := s.parse([]byte(`{"type":"ok","msg":[{"channel":"fill","sid":1}]}`))
	assert.False(t, ok)
	_, ok = s.parse([]byte(`not json`))
	assert.False(t, ok)
}
