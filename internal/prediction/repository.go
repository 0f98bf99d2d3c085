package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// Repository persists prediction tables in forecast.predictions
// ⭐ SSOT: 예측 점수 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new prediction repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save upserts points in a single batch
func (r *Repository) Save(ctx context.Context, points []contracts.PredictionPoint) error {
	if len(points) == 0 {
		return nil
	}

	query := `
		INSERT INTO forecast.predictions (pred_date, stock_code, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (pred_date, stock_code) DO UPDATE SET
			score = EXCLUDED.score
	`

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(query, contracts.DateOf(p.Date), p.Instrument, p.Score)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to save prediction %d: %w", i, err)
		}
	}

	return nil
}

// LoadRange reads predictions within [from, to] in insertion order per date
func (r *Repository) LoadRange(ctx context.Context, from, to time.Time) (*Table, error) {
	query := `
		SELECT pred_date, stock_code, score
		FROM forecast.predictions
		WHERE pred_date BETWEEN $1 AND $2
		ORDER BY pred_date, id
	`

	rows, err := r.pool.Query(ctx, query, contracts.DateOf(from), contracts.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	raw := RawTable{IndexNames: []string{"pred_date", "stock_code"}}
	for rows.Next() {
		var (
			date  time.Time
			code  string
			score float64
		)
		if err := rows.Scan(&date, &code, &score); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		raw.Rows = append(raw.Rows, RawRow{
			Keys:  []string{date.Format(contracts.DateLayout), code},
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}

	return NewTable(raw)
}

// LatestDate returns the most recent prediction date
func (r *Repository) LatestDate(ctx context.Context) (time.Time, error) {
	var d *time.Time
	if err := r.pool.QueryRow(ctx, `SELECT MAX(pred_date) FROM forecast.predictions`).Scan(&d); err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest prediction date: %w", err)
	}
	if d == nil {
		return time.Time{}, nil
	}
	return contracts.DateOf(*d), nil
}
