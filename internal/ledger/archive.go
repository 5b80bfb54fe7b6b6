package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"event-contract-bot/internal/types"
)

// Archive is an optional sqlite mirror of the text ledger for ad-hoc
// queries. It is never read by the trading core and failures to write it
// are absorbed; the text ledger stays the system of record.
type Archive struct {
	db *sql.DB
}

const archiveDDL = `
CREATE TABLE IF NOT EXISTS trades (
	order_id     TEXT PRIMARY KEY,
	ts           TEXT NOT NULL,
	ticker       TEXT NOT NULL,
	side         TEXT NOT NULL,
	shares       INTEGER NOT NULL,
	price_cents  INTEGER NOT NULL,
	result       TEXT NOT NULL,
	pnl_cents    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades(ticker);
CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts);
`

func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec(archiveDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error { return a.db.Close() }

// RecordEntry mirrors a freshly appended ledger row.
func (a *Archive) RecordEntry(ctx context.Context, row types.LedgerRow) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO trades (order_id, ts, ticker, side, shares, price_cents, result, pnl_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			result = excluded.result,
			pnl_cents = excluded.pnl_cents`,
		row.OrderID, row.Timestamp, row.Ticker, row.Side,
		row.Shares, row.Price, row.Result, row.PnLCents,
	)
	return err
}

// RecordResult mirrors a ledger row reaching a terminal result.
func (a *Archive) RecordResult(ctx context.Context, orderID, result string, pnlCents int64) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE trades SET result = ?, pnl_cents = ? WHERE order_id = ?`,
		result, pnlCents, orderID,
	)
	return err
}
