package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
)

// SQLiteSink is the audit store for evaluated signals and closed tranches.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	sink := &SQLiteSink{db: db}
	if err := sink.initSchema(); err != nil {
		return nil, err
	}

	return sink, nil
}

func (s *SQLiteSink) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			ts DATETIME NOT NULL,
			action TEXT NOT NULL,
			buy_severity REAL NOT NULL,
			sell_severity REAL NOT NULL,
			total_severity REAL NOT NULL,
			anomalies TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_ts ON signals(symbol, ts);`,
		`CREATE TABLE IF NOT EXISTS closed_positions (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			shares REAL NOT NULL,
			entry_price REAL NOT NULL,
			entry_time DATETIME NOT NULL,
			exit_price REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			reason TEXT NOT NULL,
			closed_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_closed_positions_symbol ON closed_positions(symbol);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (s *SQLiteSink) SaveSignal(ctx context.Context, signal *domain.AnomalySignal) error {
	anomalies, err := json.Marshal(signal.Anomalies)
	if err != nil {
		return fmt.Errorf("failed to encode anomalies: %w", err)
	}

	query := `INSERT INTO signals (symbol, ts, action, buy_severity, sell_severity, total_severity, anomalies)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		signal.Symbol, signal.Time, string(signal.Action),
		signal.BuySeverity, signal.SellSeverity, signal.TotalSeverity, string(anomalies))
	return err
}

func (s *SQLiteSink) SaveClosedPosition(ctx context.Context, closed *domain.ClosedPosition) error {
	query := `INSERT INTO closed_positions (id, symbol, shares, entry_price, entry_time, exit_price, realized_pnl, reason, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		closed.ID, closed.Symbol, closed.Shares, closed.EntryPrice, closed.EntryTime,
		closed.ExitPrice, closed.RealizedPnL, closed.Reason, closed.ClosedAt)
	return err
}

// ListSignals returns the most recent evaluated signals, newest first.
func (s *SQLiteSink) ListSignals(ctx context.Context, limit int) ([]*domain.AnomalySignal, error) {
	query := `SELECT symbol, ts, action, buy_severity, sell_severity, total_severity, anomalies
			  FROM signals ORDER BY ts DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*domain.AnomalySignal
	for rows.Next() {
		var sig domain.AnomalySignal
		var action, anomalies string
		var ts time.Time
		if err := rows.Scan(&sig.Symbol, &ts, &action,
			&sig.BuySeverity, &sig.SellSeverity, &sig.TotalSeverity, &anomalies); err != nil {
			return nil, err
		}
		sig.Time = ts
		sig.Action = domain.Action(action)
		if err := json.Unmarshal([]byte(anomalies), &sig.Anomalies); err != nil {
			return nil, fmt.Errorf("failed to decode anomalies: %w", err)
		}
		signals = append(signals, &sig)
	}
	return signals, rows.Err()
}

// ListClosedPositions returns the most recently closed tranches, newest first.
func (s *SQLiteSink) ListClosedPositions(ctx context.Context, limit int) ([]*domain.ClosedPosition, error) {
	query := `SELECT id, symbol, shares, entry_price, entry_time, exit_price, realized_pnl, reason, closed_at
			  FROM closed_positions ORDER BY closed_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var closed []*domain.ClosedPosition
	for rows.Next() {
		var c domain.ClosedPosition
		if err := rows.Scan(&c.ID, &c.Symbol, &c.Shares, &c.EntryPrice, &c.EntryTime,
			&c.ExitPrice, &c.RealizedPnL, &c.Reason, &c.ClosedAt); err != nil {
			return nil, err
		}
		closed = append(closed, &c)
	}
	return closed, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
