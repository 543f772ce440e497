// Package storage persists placed orders in SQLite. The journal is
// advisory: strategies work without it, but the grid registry needs it
// for cancel-all across process restarts.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"futures_bot/internal/domain"

	_ "github.com/glebarez/go-sqlite"
)

// Journal records every order this bot places plus the grid registry.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (or creates) the journal database with WAL mode.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id INTEGER PRIMARY KEY,
			client_order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			price TEXT NOT NULL,
			orig_qty TEXT NOT NULL,
			executed_qty TEXT NOT NULL,
			update_time INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create orders table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS grid_orders (
			symbol TEXT NOT NULL,
			order_id INTEGER NOT NULL,
			price TEXT NOT NULL,
			side TEXT NOT NULL,
			PRIMARY KEY (symbol, order_id)
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create grid_orders table: %w", err)
	}

	return &Journal{db: db}, nil
}

// RecordOrder upserts an order record.
func (j *Journal) RecordOrder(ctx context.Context, rec domain.OrderRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, client_order_id, symbol, side, type, status, price, orig_qty, executed_qty, update_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			status=excluded.status,
			executed_qty=excluded.executed_qty,
			update_time=excluded.update_time`,
		rec.OrderID, rec.ClientOrderID, rec.Symbol, string(rec.Side), string(rec.Type),
		string(rec.Status), rec.Price.String(), rec.OrigQty.String(), rec.ExecutedQty.String(),
		rec.UpdateTimeMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record order %d: %w", rec.OrderID, err)
	}
	return nil
}

// AddGridOrder registers an order id in the grid registry.
func (j *Journal) AddGridOrder(ctx context.Context, symbol string, rec domain.OrderRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO grid_orders (symbol, order_id, price, side) VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, order_id) DO NOTHING`,
		symbol, rec.OrderID, rec.Price.String(), string(rec.Side),
	)
	if err != nil {
		return fmt.Errorf("failed to register grid order %d: %w", rec.OrderID, err)
	}
	return nil
}

// GridOrderIDs returns every registered grid order id for a symbol.
func (j *Journal) GridOrderIDs(ctx context.Context, symbol string) ([]int64, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT order_id FROM grid_orders WHERE symbol = ? ORDER BY order_id ASC", symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query grid orders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan grid order: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return ids, nil
}

// ClearGridOrders empties the grid registry for a symbol.
// Called after a cancel-all sweep has attempted every id.
func (j *Journal) ClearGridOrders(ctx context.Context, symbol string) error {
	_, err := j.db.ExecContext(ctx, "DELETE FROM grid_orders WHERE symbol = ?", symbol)
	if err != nil {
		return fmt.Errorf("failed to clear grid orders: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}
