// Package storage persists per-user watchlists and their alert state in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/luckfunc/stockbot/internal/models"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// ErrNotWatched the user does not watch the symbol
var ErrNotWatched = errors.New("symbol is not on the watchlist")

const schema = `
CREATE TABLE IF NOT EXISTS watchlist (
	user_id    TEXT    NOT NULL,
	symbol     TEXT    NOT NULL,
	alert_up   INTEGER,
	alert_down INTEGER,
	added_at   INTEGER NOT NULL,
	PRIMARY KEY (user_id, symbol)
);
CREATE INDEX IF NOT EXISTS idx_watchlist_symbol ON watchlist (symbol);
`

// Store wraps the database connection
type Store struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open creates the database file if needed and applies the schema
func Open(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection serializes writers, and keeps an in-memory database alive
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{conn: conn, path: dbPath, now: time.Now}
	if err := s.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path database file location
func (s *Store) Path() string {
	return s.path
}

// Migrate applies the schema
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// GetPortfolio a user's watchlist, empty when they watch nothing
func (s *Store) GetPortfolio(ctx context.Context, userID string) (models.Portfolio, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT user_id, symbol, alert_up, alert_down, added_at FROM watchlist WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	all, err := scanPortfolios(rows)
	if err != nil {
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	if p, ok := all[userID]; ok {
		return p, nil
	}
	return models.Portfolio{}, nil
}

// All every user's portfolio keyed by user id
func (s *Store) All(ctx context.Context) (map[string]models.Portfolio, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT user_id, symbol, alert_up, alert_down, added_at FROM watchlist`)
	if err != nil {
		return nil, fmt.Errorf("get all portfolios: %w", err)
	}
	all, err := scanPortfolios(rows)
	if err != nil {
		return nil, fmt.Errorf("get all portfolios: %w", err)
	}
	return all, nil
}

// AddSymbols watches symbols, keeping alert state of ones already watched
func (s *Store) AddSymbols(ctx context.Context, userID string, symbols []string) (models.Portfolio, error) {
	added := s.now().UnixMilli()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, symbol := range symbols {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO watchlist (user_id, symbol, added_at) VALUES (?, ?, ?)
				 ON CONFLICT (user_id, symbol) DO NOTHING`,
				userID, strings.ToUpper(symbol), added)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add symbols: %w", err)
	}
	return s.GetPortfolio(ctx, userID)
}

// RemoveSymbols stops watching symbols; unknown ones are ignored
func (s *Store) RemoveSymbols(ctx context.Context, userID string, symbols []string) (models.Portfolio, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, symbol := range symbols {
			_, err := tx.ExecContext(ctx,
				`DELETE FROM watchlist WHERE user_id = ? AND symbol = ?`,
				userID, strings.ToUpper(symbol))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove symbols: %w", err)
	}
	return s.GetPortfolio(ctx, userID)
}

// UpdateAlerts reads, mutates and writes one entry's alert state in a single
// write transaction. When fn returns an error nothing is written.
func (s *Store) UpdateAlerts(ctx context.Context, userID, symbol string, fn func(*models.PriceAlerts) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var up, down sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT alert_up, alert_down FROM watchlist WHERE user_id = ? AND symbol = ?`,
			userID, symbol).Scan(&up, &down)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotWatched
		}
		if err != nil {
			return fmt.Errorf("read alerts: %w", err)
		}

		alerts := models.PriceAlerts{Up: fromMillis(up), Down: fromMillis(down)}
		if err := fn(&alerts); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE watchlist SET alert_up = ?, alert_down = ? WHERE user_id = ? AND symbol = ?`,
			toMillis(alerts.Up), toMillis(alerts.Down), userID, symbol)
		if err != nil {
			return fmt.Errorf("write alerts: %w", err)
		}
		return nil
	})
}

// Backup writes a consistent copy of the database to dest
func (s *Store) Backup(ctx context.Context, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	_ = os.Remove(dest)
	if _, err := s.conn.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func scanPortfolios(rows *sql.Rows) (map[string]models.Portfolio, error) {
	defer rows.Close()

	out := map[string]models.Portfolio{}
	for rows.Next() {
		var (
			userID, symbol string
			up, down       sql.NullInt64
			added          int64
		)
		if err := rows.Scan(&userID, &symbol, &up, &down, &added); err != nil {
			return nil, err
		}
		p, ok := out[userID]
		if !ok {
			p = models.Portfolio{}
			out[userID] = p
		}
		p[symbol] = models.WatchEntry{
			Symbol:  symbol,
			Alerts:  models.PriceAlerts{Up: fromMillis(up), Down: fromMillis(down)},
			AddedAt: time.UnixMilli(added),
		}
	}
	return out, rows.Err()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
