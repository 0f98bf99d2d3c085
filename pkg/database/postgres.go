package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-signal/pkg/config"
)

// ErrNotConfigured is returned when DATABASE_URL is empty
var ErrNotConfigured = errors.New("database: DATABASE_URL not configured")

// DB wraps the pgxpool.Pool
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool and verifies it with a ping
func New(cfg *config.Config) (*DB, error) {
	if !cfg.Database.Enabled() {
		return nil, ErrNotConfigured
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate creates the schemas used by the prediction, selection and audit repositories
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Schema is idempotent DDL for every table the repositories touch
const Schema = `
CREATE SCHEMA IF NOT EXISTS forecast;
CREATE SCHEMA IF NOT EXISTS selection;
CREATE SCHEMA IF NOT EXISTS audit;

CREATE TABLE IF NOT EXISTS forecast.predictions (
	id          BIGSERIAL PRIMARY KEY,
	pred_date   DATE NOT NULL,
	stock_code  TEXT NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	UNIQUE (pred_date, stock_code)
);

CREATE TABLE IF NOT EXISTS selection.topk_pools (
	rebalance_date   DATE NOT NULL,
	rebalance_period TEXT NOT NULL,
	stock_code       TEXT NOT NULL,
	rank             INT NOT NULL,
	score            DOUBLE PRECISION NOT NULL,
	weight           DOUBLE PRECISION NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (rebalance_date, rebalance_period, stock_code)
);

CREATE TABLE IF NOT EXISTS audit.analytics_reports (
	run_id          TEXT PRIMARY KEY,
	strategy_name   TEXT NOT NULL,
	start_date      DATE,
	end_date        DATE,
	initial_capital DOUBLE PRECISION NOT NULL,
	final_capital   DOUBLE PRECISION NOT NULL,
	total_return    DOUBLE PRECISION NOT NULL,
	sharpe_ratio    DOUBLE PRECISION NOT NULL,
	max_drawdown    DOUBLE PRECISION NOT NULL,
	win_rate        DOUBLE PRECISION NOT NULL,
	total_trades    INT NOT NULL,
	matched_pairs   INT NOT NULL,
	config_hash     TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
