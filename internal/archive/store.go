package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/shopspring/decimal"

	"github.com/nathanyu/trading-oms/internal/domain"
)

// Store persists executions to SQLite for offline audit. Writes are
// best-effort: the trading flow never waits on or fails because of the
// archive.
type Store struct {
	db *sql.DB
}

// Open creates an execution archive at dbPath with WAL mode enabled.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS executions (
			execution_id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			price TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			commission TEXT NOT NULL,
			venue TEXT NOT NULL,
			ts INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create executions table: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveExecution stores one execution in the archive.
func (s *Store) SaveExecution(ctx context.Context, exec domain.Execution) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO executions (execution_id, order_id, symbol, side, price, quantity, commission, venue, ts) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		exec.ExecutionID, exec.OrderID, exec.Symbol, string(exec.Side),
		exec.Price.String(), exec.Quantity, exec.Commission.String(),
		exec.Venue, exec.Timestamp.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

// LoadExecutions returns all archived executions in insertion order.
func (s *Store) LoadExecutions(ctx context.Context) ([]domain.Execution, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT execution_id, order_id, symbol, side, price, quantity, commission, venue, ts FROM executions ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		var e domain.Execution
		var side, price, commission string
		var ts int64
		if err := rows.Scan(&e.ExecutionID, &e.OrderID, &e.Symbol, &side,
			&price, &e.Quantity, &commission, &e.Venue, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.Side = domain.Side(side)
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse price %q: %w", price, err)
		}
		if e.Commission, err = decimal.NewFromString(commission); err != nil {
			return nil, fmt.Errorf("failed to parse commission %q: %w", commission, err)
		}
		e.Timestamp = time.UnixMicro(ts)
		execs = append(execs, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return execs, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
