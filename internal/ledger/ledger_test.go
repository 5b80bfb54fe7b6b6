package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-contract-bot/internal/types"
)

const header = "| Timestamp | Ticker | Side | Shares | Price | Result | PnL | Cumulative | OrderID |\n" +
	"|---|---|---|---|---|---|---|---|---|\n"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger.md"), []byte(header), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompt.md"), []byte("# Strategy\nTrade carefully."), 0o644))
	return NewStore(dir)
}

func pendingRow(ticker, orderID string) types.LedgerRow {
	return types.LedgerRow{
		Timestamp:       "2026-08-23T10:00:00Z",
		Ticker:          ticker,
		Side:            "yes",
		Shares:          2,
		Price:           40,
		Result:          types.ResultPending,
		CumulativeCents: 100,
		OrderID:         orderID,
	}
}

// settledRow is a prior terminal trade carrying the running total forward.
func settledRow(ticker, orderID string) types.LedgerRow {
	return types.LedgerRow{
		Timestamp:       "2026-08-23T09:00:00Z",
		Ticker:          ticker,
		Side:            "yes",
		Shares:          2,
		Price:           40,
		Result:          types.ResultWin,
		PnLCents:        100,
		CumulativeCents: 100,
		OrderID:         orderID,
	}
}

func TestAppendAndRead(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(pendingRow("KXBTC-A", "ord-1")))

	rows, err := s.Read()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "KXBTC-A", rows[0].Ticker)
	assert.Equal(t, 2, rows[0].Shares)
	assert.Equal(t, 40, rows[0].Price)
	assert.Equal(t, types.ResultPending, rows[0].Result)
	assert.Equal(t, "ord-1", rows[0].OrderID)
	assert.False(t, rows[0].Terminal())
}

func TestReadSkipsHeaderAndSeparator(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.Read()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCancelMarksRow(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(pendingRow("KXBTC-A", "ord-1")))
	require.NoError(t, s.Cancel("ord-1"))

	rows, err := s.Read()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.ResultCancelled, rows[0].Result)
	assert.Equal(t, int64(0), rows[0].PnLCents)
}

func TestSettleWinDerivesNetPnL(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(settledRow("KXBTC-0", "ord-0")))
	require.NoError(t, s.Append(pendingRow("KXBTC-A", "ord-1")))

	require.NoError(t, s.Settle(types.Settlement{
		Ticker:   "KXBTC-A",
		Result:   types.ResultWin,
		PnLCents: 200, // gross revenue; cost 2x40 = 80
	}))

	rows, err := s.Read()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, types.ResultWin, rows[1].Result)
	assert.Equal(t, int64(120), rows[1].PnLCents)
	assert.Equal(t, int64(220), rows[1].CumulativeCents)
	assert.True(t, rows[1].Terminal())
}

func TestSettleUnknownClosesWithZeroPnL(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(settledRow("KXBTC-0", "ord-0")))
	require.NoError(t, s.Append(pendingRow("KXBTC-A", "ord-1")))

	require.NoError(t, s.Settle(types.Settlement{
		Ticker: "KXBTC-A",
		Result: types.ResultUnknown,
	}))

	rows, err := s.Read()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, types.ResultUnknown, rows[1].Result)
	assert.Equal(t, int64(0), rows[1].PnLCents)
	assert.Equal(t, int64(100), rows[1].CumulativeCents)
}

func TestInterleavedSettlementsKeepCumulativeChain(t *testing.T) {
	s := newTestStore(t)
	older := pendingRow("KXBTC-A", "ord-1")
	older.Shares, older.Price, older.CumulativeCents = 1, 40, 0
	newer := pendingRow("KXETH-B", "ord-2")
	newer.Shares, newer.Price, newer.CumulativeCents = 1, 40, 0
	require.NoError(t, s.Append(older))
	require.NoError(t, s.Append(newer))

	// The newer market settles first; each trade nets 100-40 = 60.
	require.NoError(t, s.Settle(types.Settlement{Ticker: "KXETH-B", Result: types.ResultWin, PnLCents: 100}))
	require.NoError(t, s.Settle(types.Settlement{Ticker: "KXBTC-A", Result: types.ResultWin, PnLCents: 100}))

	rows, err := s.Read()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(60), rows[0].PnLCents)
	assert.Equal(t, int64(60), rows[0].CumulativeCents)
	assert.Equal(t, int64(60), rows[1].PnLCents)
	assert.Equal(t, int64(120), rows[1].CumulativeCents)
}

func TestSettleTargetsNewestPending(t *testing.T) {
	s := newTestStore(t)
	settled := pendingRow("KXBTC-A", "ord-1")
	settled.Result = types.ResultWin
	require.NoError(t, s.Append(settled))
	require.NoError(t, s.Append(pendingRow("KXBTC-B", "ord-2")))

	require.NoError(t, s.Settle(types.Settlement{Ticker: "KXBTC-B", Result: types.ResultLoss, PnLCents: 0}))

	rows, err := s.Read()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, types.ResultWin, rows[0].Result)
	assert.Equal(t, types.ResultLoss, rows[1].Result)
	assert.Equal(t, int64(-80), rows[1].PnLCents)
}

func TestRecordEarlyExit(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(settledRow("KXBTC-0", "ord-0")))
	require.NoError(t, s.Append(pendingRow("KXBTC-A", "ord-1")))

	require.NoError(t, s.RecordEarlyExit(types.ExitEvent{
		Ticker:   "KXBTC-A",
		Reason:   types.ExitTakeProfit,
		PnLCents: 44,
	}))

	rows, err := s.Read()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "exit_take_profit", rows[1].Result)
	assert.Equal(t, int64(44), rows[1].PnLCents)
	assert.Equal(t, int64(144), rows[1].CumulativeCents)
}

func TestReadFallsBackToBackupOnCorruption(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(pendingRow("KXBTC-A", "ord-1")))
	// The next mutation snapshots the one-row ledger into the backup.
	require.NoError(t, s.Append(pendingRow("KXBTC-B", "ord-2")))

	// Corrupt the primary: data lines present, none parseable.
	corrupt := header + "| garbage |\n| more garbage |\n"
	require.NoError(t, os.WriteFile(s.ledgerPath(), []byte(corrupt), 0o644))

	rows, err := s.Read()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ord-1", rows[0].OrderID)
}

func TestReadFallsBackToBackupWhenPrimaryMissing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(pendingRow("KXBTC-A", "ord-1")))
	require.NoError(t, s.Append(pendingRow("KXBTC-B", "ord-2")))
	require.NoError(t, os.Remove(s.ledgerPath()))

	rows, err := s.Read()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestWriteStats(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteStats(types.Stats{TotalTrades: 3, Wins: 2, Losses: 1, WinRate: 2.0 / 3.0}))

	b, err := os.ReadFile(s.statsPath())
	require.NoError(t, err)
	assert.Contains(t, string(b), "Total trades: 3")
	assert.Contains(t, string(b), "66.7%")
}

func TestReadPrompt(t *testing.T) {
	s := newTestStore(t)
	prompt, err := s.ReadPrompt()
	require.NoError(t, err)
	assert.Contains(t, prompt, "Strategy")
}
