package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// ErrPoolNotFound is returned when no pool is stored for a date
var ErrPoolNotFound = errors.New("selection: pool not found")

// Repository handles Top-K pool persistence
// ⭐ SSOT: Selection 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new selection repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveTargets replaces the stored pool of every target's rebalance date
func (r *Repository) SaveTargets(ctx context.Context, targets []contracts.TargetPortfolio) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, target := range targets {
		date := contracts.DateOf(target.Date)

		_, err = tx.Exec(ctx,
			"DELETE FROM selection.topk_pools WHERE rebalance_date = $1 AND rebalance_period = $2",
			date, string(target.Period))
		if err != nil {
			return fmt.Errorf("failed to delete old pool: %w", err)
		}

		query := `
			INSERT INTO selection.topk_pools (
				rebalance_date, rebalance_period, stock_code, rank, score, weight
			) VALUES ($1, $2, $3, $4, $5, $6)
		`

		for _, pos := range target.Positions {
			_, err := tx.Exec(ctx, query, date, string(target.Period), pos.Code, pos.Rank, pos.Score, pos.Weight)
			if err != nil {
				return fmt.Errorf("failed to insert pool member %s: %w", pos.Code, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTarget returns the latest stored pool at or before date
func (r *Repository) GetTarget(ctx context.Context, date time.Time, period contracts.RebalancePeriod) (*contracts.TargetPortfolio, error) {
	query := `
		SELECT rebalance_date, stock_code, rank, score, weight
		FROM selection.topk_pools
		WHERE rebalance_period = $2
		  AND rebalance_date = (
			SELECT MAX(rebalance_date) FROM selection.topk_pools
			WHERE rebalance_period = $2 AND rebalance_date <= $1
		  )
		ORDER BY rank ASC
	`

	rows, err := r.pool.Query(ctx, query, contracts.DateOf(date), string(period))
	if err != nil {
		return nil, fmt.Errorf("failed to query pool: %w", err)
	}
	defer rows.Close()

	target := &contracts.TargetPortfolio{Period: period}
	for rows.Next() {
		var pos contracts.TargetPosition
		if err := rows.Scan(&target.Date, &pos.Code, &pos.Rank, &pos.Score, &pos.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		target.Positions = append(target.Positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if len(target.Positions) == 0 {
		return nil, fmt.Errorf("%w: %s on or before %s", ErrPoolNotFound, period, date.Format(contracts.DateLayout))
	}

	target.Date = contracts.DateOf(target.Date)
	target.Cash = 1 - target.TotalWeight()
	if target.Cash < 0 {
		target.Cash = 0
	}

	return target, nil
}
