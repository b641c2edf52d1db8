package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/google/uuid"

	"stablevault/core/events"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    direction TEXT NOT NULL,
    amount_in TEXT NOT NULL,
    amount_out TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS dividends (
    id TEXT PRIMARY KEY,
    amount TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS ownership_changes (
    id TEXT PRIMARY KEY,
    previous_owner TEXT NOT NULL,
    new_owner TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_created ON trades(created_at);
CREATE INDEX IF NOT EXISTS idx_dividends_created ON dividends(created_at);
`

// TradeRecord is a persisted trade receipt.
type TradeRecord struct {
	ID        string
	Direction string
	AmountIn  *big.Int
	AmountOut *big.Int
	CreatedAt time.Time
}

// DividendRecord is a persisted dividend receipt.
type DividendRecord struct {
	ID        string
	Amount    *big.Int
	CreatedAt time.Time
}

// History persists trade and dividend receipts in sqlite. It doubles as an
// event emitter so the engine's settlement events land in the audit trail
// without extra wiring.
type History struct {
	db     *sql.DB
	logger *slog.Logger
	clock  func() time.Time
}

// OpenHistory initialises the history store at the supplied sqlite DSN.
func OpenHistory(path string, logger *slog.Logger) (*History, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("storage: history path must be configured")
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("storage: open history: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply history schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &History{db: db, logger: logger, clock: time.Now}, nil
}

// SetClock overrides the timestamp source. Intended for tests.
func (h *History) SetClock(clock func() time.Time) {
	if h == nil || clock == nil {
		return
	}
	h.clock = clock
}

// Close releases the underlying handle.
func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

func amountText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Emit implements events.Emitter. Persistence failures are logged rather than
// propagated: the operation that produced the event has already settled.
func (h *History) Emit(event events.Event) {
	if h == nil || event == nil {
		return
	}
	now := h.clock().UTC()
	var err error
	switch ev := event.(type) {
	case events.Sold:
		err = h.insertTrade("sell", ev.AmountIn, ev.AmountOut, now)
	case events.Bought:
		err = h.insertTrade("buy", ev.AmountIn, ev.AmountOut, now)
	case events.DividendsDistributed:
		_, err = h.db.Exec(
			"INSERT INTO dividends (id, amount, created_at) VALUES (?, ?, ?)",
			uuid.NewString(), amountText(ev.Amount), now.Unix(),
		)
	case events.OwnershipTransferred:
		_, err = h.db.Exec(
			"INSERT INTO ownership_changes (id, previous_owner, new_owner, created_at) VALUES (?, ?, ?, ?)",
			uuid.NewString(), ev.Previous.Hex(), ev.Current.Hex(), now.Unix(),
		)
	}
	if err != nil {
		h.logger.Error("history: record event", "type", event.EventType(), "err", err)
	}
}

func (h *History) insertTrade(direction string, in, out *big.Int, now time.Time) error {
	_, err := h.db.Exec(
		"INSERT INTO trades (id, direction, amount_in, amount_out, created_at) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), direction, amountText(in), amountText(out), now.Unix(),
	)
	return err
}

// ListTrades returns the most recent trade receipts, newest first.
func (h *History) ListTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx,
		"SELECT id, direction, amount_in, amount_out, created_at FROM trades ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list trades: %w", err)
	}
	defer rows.Close()
	var records []TradeRecord
	for rows.Next() {
		var (
			record  TradeRecord
			in, out string
			created int64
		)
		if err := rows.Scan(&record.ID, &record.Direction, &in, &out, &created); err != nil {
			return nil, fmt.Errorf("storage: scan trade: %w", err)
		}
		record.AmountIn, _ = new(big.Int).SetString(in, 10)
		record.AmountOut, _ = new(big.Int).SetString(out, 10)
		record.CreatedAt = time.Unix(created, 0).UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListDividends returns the most recent dividend receipts, newest first.
func (h *History) ListDividends(ctx context.Context, limit int) ([]DividendRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx,
		"SELECT id, amount, created_at FROM dividends ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list dividends: %w", err)
	}
	defer rows.Close()
	var records []DividendRecord
	for rows.Next() {
		var (
			record  DividendRecord
			amount  string
			created int64
		)
		if err := rows.Scan(&record.ID, &amount, &created); err != nil {
			return nil, fmt.Errorf("storage: scan dividend: %w", err)
		}
		record.Amount, _ = new(big.Int).SetString(amount, 10)
		record.CreatedAt = time.Unix(created, 0).UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}
