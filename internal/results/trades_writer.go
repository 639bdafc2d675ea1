// Package results persists finished runs: the trades of a run as a parquet
// file and its summary as a yaml stats file.
package results

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/tradermind/internal/types"
)

var tradeColumns = []string{"symbol", "entry_date", "entry_price", "exit_date", "exit_price", "size", "return_pct", "pnl"}

// TradesWriter collects trades in an in-memory DuckDB table and exports them to parquet.
type TradesWriter struct {
	db         *sql.DB
	outputPath string
	sq         squirrel.StatementBuilderType
	mu         sync.Mutex
}

// NewTradesWriter creates a new TradesWriter.
// outputPath is the full path to the parquet file.
func NewTradesWriter(outputPath string) *TradesWriter {
	return &TradesWriter{
		db:         nil,
		outputPath: outputPath,
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		mu:         sync.Mutex{},
	}
}

// Initialize sets up the trades table.
func (w *TradesWriter) Initialize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	w.db = db

	_, err = w.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trades (
			symbol TEXT,
			entry_date TIMESTAMP,
			entry_price DOUBLE,
			exit_date TIMESTAMP,
			exit_price DOUBLE,
			size DOUBLE,
			return_pct DOUBLE,
			pnl DOUBLE
		)
	`)
	if err != nil {
		w.db.Close()
		w.db = nil

		return fmt.Errorf("failed to create trades table: %w", err)
	}

	return nil
}

// Write inserts trades in one statement.
func (w *TradesWriter) Write(ctx context.Context, trades []types.Trade) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return fmt.Errorf("writer not initialized")
	}

	if len(trades) == 0 {
		return nil
	}

	insert := w.sq.Insert("trades").Columns(tradeColumns...)
	for _, trade := range trades {
		insert = insert.Values(trade.Symbol, trade.EntryDate.UTC(), trade.EntryPrice,
			trade.ExitDate.UTC(), trade.ExitPrice, trade.Size, trade.ReturnPct, trade.PnL)
	}

	if _, err := insert.RunWith(w.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to insert trades: %w", err)
	}

	return nil
}

// Flush exports the table to the parquet file.
func (w *TradesWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return fmt.Errorf("writer not initialized")
	}

	_, err := w.db.ExecContext(ctx, fmt.Sprintf(`
		COPY (SELECT * FROM trades ORDER BY exit_date ASC, symbol ASC)
		TO '%s' (FORMAT PARQUET)
	`, w.outputPath))
	if err != nil {
		return fmt.Errorf("failed to export to parquet: %w", err)
	}

	return nil
}

// GetOutputPath returns the parquet file path.
func (w *TradesWriter) GetOutputPath() string {
	return w.outputPath
}

// GetTradeCount returns the number of trades stored.
func (w *TradesWriter) GetTradeCount(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return 0, fmt.Errorf("writer not initialized")
	}

	var count int

	err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trades").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}

	return count, nil
}

// Close releases database resources.
func (w *TradesWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}

		w.db = nil
	}

	return nil
}

// ReadTrades loads the trades of a parquet file written by TradesWriter.
func ReadTrades(ctx context.Context, path string) ([]types.Trade, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	rows, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question).
		Select(tradeColumns...).
		From(fmt.Sprintf("read_parquet('%s')", path)).
		RunWith(db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []types.Trade

	for rows.Next() {
		var t types.Trade
		if err := rows.Scan(&t.Symbol, &t.EntryDate, &t.EntryPrice, &t.ExitDate, &t.ExitPrice, &t.Size, &t.ReturnPct, &t.PnL); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		t.EntryDate = t.EntryDate.UTC()
		t.ExitDate = t.ExitDate.UTC()
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}

	return trades, nil
}
