// Package store persists executed trades to an embedded sqlite database
// so strategy code can query execution history after a run. It is fed by
// the session adapter; the matching core never touches it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"tickex/internal/model"
)

// Store provides trade history persistence
type Store struct {
	db *sql.DB
}

// Open creates or opens the trade store
func Open(path string) (*Store, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables
func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY,
			instrument TEXT NOT NULL,
			buy_order_id INTEGER NOT NULL,
			sell_order_id INTEGER NOT NULL,
			price INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			sequence INTEGER NOT NULL UNIQUE,
			tick INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_instrument_seq
			ON trades(instrument, sequence)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveTrades inserts a batch of trades in one transaction. Replaying a
// journal re-inserts known sequences; those are ignored.
func (s *Store) SaveTrades(ctx context.Context, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO trades
			(id, instrument, buy_order_id, sell_order_id, price, quantity, sequence, tick)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Instrument, t.BuyOrderID, t.SellOrderID,
			t.Price, t.Quantity, t.Sequence, t.Tick,
		); err != nil {
			return fmt.Errorf("failed to insert trade %d: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// ListTrades returns up to limit trades with sequence greater than
// fromSeq, in sequence order. Empty instrument means all instruments.
func (s *Store) ListTrades(ctx context.Context, instrument string, fromSeq uint64, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, instrument, buy_order_id, sell_order_id, price, quantity, sequence, tick
		FROM trades
		WHERE sequence > ?`
	args := []any{fromSeq}
	if instrument != "" {
		query += ` AND instrument = ?`
		args = append(args, instrument)
	}
	query += ` ORDER BY sequence ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.ID, &t.Instrument, &t.BuyOrderID, &t.SellOrderID,
			&t.Price, &t.Quantity, &t.Sequence, &t.Tick); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// CountTrades returns the number of persisted trades
func (s *Store) CountTrades(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}
