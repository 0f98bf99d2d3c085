// Package journal persists the trade ledger and equity curve of each replay run.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/wonny/aegis-signal/internal/contracts"
)

// ErrRunNotFound is returned when a run id has no runs row
var ErrRunNotFound = errors.New("journal: run not found")

// RunInfo describes one recorded run
type RunInfo struct {
	RunID          string    `json:"run_id"`
	StrategyName   string    `json:"strategy_name"`
	InitialCapital float64   `json:"initial_capital"`
	ConfigHash     string    `json:"config_hash"`
	Predictions    string    `json:"predictions"` // prediction table fingerprint
	CreatedAt      time.Time `json:"created_at"`
}

// SQLite is a contracts.Journal backed by a single SQLite file
type SQLite struct {
	db *sql.DB
}

var _ contracts.Journal = (*SQLite)(nil)

// Open creates the file (and its directory) if needed and applies Schema
func Open(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// single writer; SQLite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordRun stores run metadata; recording the same run id twice replaces it
func (j *SQLite) RecordRun(ctx context.Context, run RunInfo) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_id, strategy_name, initial_capital, config_hash, predictions, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StrategyName, run.InitialCapital, run.ConfigHash, run.Predictions, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

// Run loads run metadata
func (j *SQLite) Run(ctx context.Context, runID string) (RunInfo, error) {
	var (
		info    RunInfo
		created int64
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT run_id, strategy_name, initial_capital, config_hash, predictions, created_at
		FROM runs WHERE run_id = ?`, runID,
	).Scan(&info.RunID, &info.StrategyName, &info.InitialCapital, &info.ConfigHash, &info.Predictions, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return RunInfo{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return RunInfo{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	info.CreatedAt = time.Unix(0, created).UTC()
	return info, nil
}

// Runs lists recorded runs, newest first
func (j *SQLite) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, strategy_name, initial_capital, config_hash, predictions, created_at
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			info    RunInfo
			created int64
		)
		if err := rows.Scan(&info.RunID, &info.StrategyName, &info.InitialCapital, &info.ConfigHash, &info.Predictions, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		info.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

// RecordTrade appends one fill
func (j *SQLite) RecordTrade(ctx context.Context, runID string, t contracts.Trade) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades
		(run_id, instrument, side, quantity, price, trade_time, commission)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, t.Instrument, string(t.Side), t.Quantity, t.Price, t.Date.UnixNano(), t.Commission,
	)
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}

// RecordEquity upserts one equity sample
func (j *SQLite) RecordEquity(ctx context.Context, runID string, p contracts.EquityPoint) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO equity (run_id, time, equity) VALUES (?, ?, ?)`,
		runID, p.Date.UnixNano(), p.Equity,
	)
	if err != nil {
		return fmt.Errorf("record equity: %w", err)
	}
	return nil
}

// Trades returns the run's ledger in fill order
func (j *SQLite) Trades(ctx context.Context, runID string) ([]contracts.Trade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT instrument, side, quantity, price, trade_time, commission
		FROM trades WHERE run_id = ? ORDER BY trade_time, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []contracts.Trade
	for rows.Next() {
		var (
			t    contracts.Trade
			side string
			ts   int64
		)
		if err := rows.Scan(&t.Instrument, &side, &t.Quantity, &t.Price, &ts, &t.Commission); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = contracts.Side(side)
		t.Date = time.Unix(0, ts).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// EquityCurve returns the run's samples in time order
func (j *SQLite) EquityCurve(ctx context.Context, runID string) ([]contracts.EquityPoint, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, equity FROM equity WHERE run_id = ? ORDER BY time`, runID)
	if err != nil {
		return nil, fmt.Errorf("list equity: %w", err)
	}
	defer rows.Close()

	var out []contracts.EquityPoint
	for rows.Next() {
		var (
			p  contracts.EquityPoint
			ts int64
		)
		if err := rows.Scan(&ts, &p.Equity); err != nil {
			return nil, fmt.Errorf("scan equity: %w", err)
		}
		p.Date = time.Unix(0, ts).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the underlying database
func (j *SQLite) Close() error {
	return j.db.Close()
}
