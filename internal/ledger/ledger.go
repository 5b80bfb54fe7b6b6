package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"event-contract-bot/internal/types"
)

// Store is the append-only, human-readable trade ledger: pipe-delimited
// rows in ledger.md, a backup copy refreshed before every write, and a
// derived stats summary. It is the system of record; everything else is
// recomputable from it.
type Store struct {
	mu  sync.Mutex
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) ledgerPath() string { return filepath.Join(s.dir, "ledger.md") }
func (s *Store) backupPath() string { return filepath.Join(s.dir, "ledger.md.bak") }
func (s *Store) statsPath() string  { return filepath.Join(s.dir, "stats.md") }
func (s *Store) promptPath() string { return filepath.Join(s.dir, "prompt.md") }

// ReadPrompt returns the strategy prompt text.
func (s *Store) ReadPrompt() (string, error) {
	b, err := os.ReadFile(s.promptPath())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Read parses all ledger rows. If the primary file is unreadable, or it
// contains candidate data lines none of which parse, the backup is used.
func (s *Store) Read() ([]types.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *Store) readLocked() ([]types.LedgerRow, error) {
	content, err := os.ReadFile(s.ledgerPath())
	if err != nil {
		backup, berr := os.ReadFile(s.backupPath())
		if berr != nil {
			return nil, fmt.Errorf("ledger unreadable and backup unreadable: %w", err)
		}
		return parseRows(string(backup)), nil
	}

	rows := parseRows(string(content))
	if len(rows) == 0 && countDataLines(string(content)) > 0 {
		// Primary is corrupt. Fall back to the backup transparently.
		backup, berr := os.ReadFile(s.backupPath())
		if berr != nil {
			return nil, fmt.Errorf("ledger corrupt and backup unreadable: %w", berr)
		}
		return parseRows(string(backup)), nil
	}
	return rows, nil
}

// isDataLine keeps table rows and drops headers/separators.
func isDataLine(line string) bool {
	return strings.HasPrefix(line, "|") &&
		!strings.Contains(line, "---") &&
		!strings.Contains(line, "Timestamp")
}

func countDataLines(content string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if isDataLine(line) {
			n++
		}
	}
	return n
}

func parseRows(content string) []types.LedgerRow {
	var rows []types.LedgerRow
	for _, line := range strings.Split(content, "\n") {
		if !isDataLine(line) {
			continue
		}
		if row, ok := parseRow(line); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func parseRow(line string) (types.LedgerRow, bool) {
	cols := splitCols(line)
	if len(cols) < 9 {
		return types.LedgerRow{}, false
	}
	shares, err1 := strconv.Atoi(cols[4])
	price, err2 := strconv.Atoi(cols[5])
	pnl, err3 := strconv.ParseInt(cols[7], 10, 64)
	cumulative, err4 := strconv.ParseInt(cols[8], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return types.LedgerRow{}, false
	}
	orderID := ""
	if len(cols) >= 10 {
		orderID = cols[9]
	}
	return types.LedgerRow{
		Timestamp:       cols[1],
		Ticker:          cols[2],
		Side:            cols[3],
		Shares:          shares,
		Price:           price,
		Result:          cols[6],
		PnLCents:        pnl,
		CumulativeCents: cumulative,
		OrderID:         orderID,
	}, true
}

func splitCols(line string) []string {
	parts := strings.Split(line, "|")
	cols := make([]string, len(parts))
	for i, p := range parts {
		cols[i] = strings.TrimSpace(p)
	}
	return cols
}

func formatRow(r types.LedgerRow) string {
	return fmt.Sprintf("| %s | %s | %s | %d | %d | %s | %d | %d | %s |",
		r.Timestamp, r.Ticker, r.Side, r.Shares, r.Price,
		r.Result, r.PnLCents, r.CumulativeCents, r.OrderID)
}

// backupLocked overwrites the backup with the current pre-mutation content.
func (s *Store) backupLocked() error {
	content, err := os.ReadFile(s.ledgerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.WriteFile(s.backupPath(), content, 0o644)
}

// Append adds one row to the ledger. The backup is refreshed first.
func (s *Store) Append(row types.LedgerRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backupLocked(); err != nil {
		return fmt.Errorf("ledger backup: %w", err)
	}
	f, err := os.OpenFile(s.ledgerPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, formatRow(row)); err != nil {
		return err
	}
	return nil
}

// mutateLast rewrites the newest line matching `match`, replacing it with
// the result of `rewrite`. Returns false when no line matched.
func (s *Store) mutateLast(match func(types.LedgerRow) bool, rewrite func(types.LedgerRow) types.LedgerRow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backupLocked(); err != nil {
		return false, fmt.Errorf("ledger backup: %w", err)
	}
	content, err := os.ReadFile(s.ledgerPath())
	if err != nil {
		return false, err
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if !isDataLine(lines[i]) {
			continue
		}
		row, ok := parseRow(lines[i])
		if !ok || !match(row) {
			continue
		}
		lines[i] = formatRow(rewrite(row))
		rechain(lines)
		return true, os.WriteFile(s.ledgerPath(), []byte(strings.Join(lines, "\n")+"\n"), 0o644)
	}
	return false, nil
}

// rechain recomputes the cumulative column over terminal rows in file
// order. Settlements can land out of append order when several series
// hold pendings at once, so the stored running total cannot be trusted
// at mutation time.
func rechain(lines []string) {
	var running int64
	for i, line := range lines {
		if !isDataLine(line) {
			continue
		}
		row, ok := parseRow(line)
		if !ok || !row.Terminal() {
			continue
		}
		running += row.PnLCents
		if row.CumulativeCents != running {
			row.CumulativeCents = running
			lines[i] = formatRow(row)
		}
	}
}

// Cancel marks the pending row carrying orderID as cancelled, pnl 0.
func (s *Store) Cancel(orderID string) error {
	_, err := s.mutateLast(
		func(r types.LedgerRow) bool {
			return r.Result == types.ResultPending && r.OrderID == orderID
		},
		func(r types.LedgerRow) types.LedgerRow {
			r.Result = types.ResultCancelled
			r.PnLCents = 0
			return r
		})
	return err
}

// Settle finalizes the newest pending row from a settlement. The trade's
// pnl is the settlement revenue minus the original cost, except for the
// "unknown" zombie result, which closes the row with pnl 0. The
// cumulative column is rechained over the whole file afterwards.
func (s *Store) Settle(settlement types.Settlement) error {
	_, err := s.mutateLast(
		func(r types.LedgerRow) bool { return r.Result == types.ResultPending },
		func(r types.LedgerRow) types.LedgerRow {
			var pnl int64
			if settlement.Result != types.ResultUnknown {
				cost := int64(r.Price) * int64(r.Shares)
				pnl = settlement.PnLCents - cost
			}
			r.Result = settlement.Result
			r.PnLCents = pnl
			return r
		})
	return err
}

// RecordEarlyExit finalizes the newest pending row for the exited ticker.
func (s *Store) RecordEarlyExit(exit types.ExitEvent) error {
	_, err := s.mutateLast(
		func(r types.LedgerRow) bool {
			return r.Result == types.ResultPending && r.Ticker == exit.Ticker
		},
		func(r types.LedgerRow) types.LedgerRow {
			r.Result = "exit_" + string(exit.Reason)
			r.PnLCents = exit.PnLCents
			return r
		})
	return err
}

// WriteStats persists the derived stats summary via write-temp-then-rename.
func (s *Store) WriteStats(stats types.Stats) error {
	content := fmt.Sprintf(
		"# Stats\n"+
			"- Total trades: %d\n"+
			"- Wins: %d | Losses: %d\n"+
			"- Win rate: %.1f%%\n"+
			"- Total P&L: %d¢\n"+
			"- Today P&L: %d¢\n"+
			"- Streak: %d\n"+
			"- Max drawdown: %d¢\n"+
			"- Avg win: %.0f¢ | Avg loss: %.0f¢\n",
		stats.TotalTrades, stats.Wins, stats.Losses, stats.WinRate*100,
		stats.TotalPnLCents, stats.TodayPnLCents, stats.CurrentStreak,
		stats.MaxDrawdownCents, stats.AvgWinCents, stats.AvgLossCents)

	tmp := s.statsPath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.statsPath())
}
