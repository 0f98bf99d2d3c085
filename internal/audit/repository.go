package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// ErrReportNotFound is returned when no report is stored for a run id
var ErrReportNotFound = errors.New("audit: report not found")

// Repository handles analytics report persistence
// ⭐ SSOT: Audit 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveReport upserts a report by run id
func (r *Repository) SaveReport(ctx context.Context, report contracts.AnalyticsReport) error {
	if report.RunID == "" {
		return fmt.Errorf("audit: report has no run id")
	}

	query := `
		INSERT INTO audit.analytics_reports (
			run_id, strategy_name, start_date, end_date,
			initial_capital, final_capital, total_return, sharpe_ratio,
			max_drawdown, win_rate, total_trades, matched_pairs, config_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_id) DO UPDATE SET
			strategy_name = EXCLUDED.strategy_name,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			initial_capital = EXCLUDED.initial_capital,
			final_capital = EXCLUDED.final_capital,
			total_return = EXCLUDED.total_return,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			max_drawdown = EXCLUDED.max_drawdown,
			win_rate = EXCLUDED.win_rate,
			total_trades = EXCLUDED.total_trades,
			matched_pairs = EXCLUDED.matched_pairs,
			config_hash = EXCLUDED.config_hash,
			created_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		report.RunID, report.StrategyName, report.StartDate, report.EndDate,
		report.InitialCapital, report.FinalCapital, report.TotalReturn, report.SharpeRatio,
		report.MaxDrawdown, report.WinRate, report.TotalTrades, report.MatchedPairs, report.ConfigHash,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

const reportColumns = `
	run_id, strategy_name, start_date, end_date,
	initial_capital, final_capital, total_return, sharpe_ratio,
	max_drawdown, win_rate, total_trades, matched_pairs, config_hash
`

func scanReport(row pgx.Row) (contracts.AnalyticsReport, error) {
	var rep contracts.AnalyticsReport
	err := row.Scan(
		&rep.RunID, &rep.StrategyName, &rep.StartDate, &rep.EndDate,
		&rep.InitialCapital, &rep.FinalCapital, &rep.TotalReturn, &rep.SharpeRatio,
		&rep.MaxDrawdown, &rep.WinRate, &rep.TotalTrades, &rep.MatchedPairs, &rep.ConfigHash,
	)
	return rep, err
}

// GetReport retrieves one report by run id
func (r *Repository) GetReport(ctx context.Context, runID string) (*contracts.AnalyticsReport, error) {
	query := `SELECT ` + reportColumns + ` FROM audit.analytics_reports WHERE run_id = $1`

	rep, err := scanReport(r.pool.QueryRow(ctx, query, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return &rep, nil
}

// ListReports returns the most recent reports first
func (r *Repository) ListReports(ctx context.Context, limit int) ([]contracts.AnalyticsReport, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + reportColumns + ` FROM audit.analytics_reports ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	results := make([]contracts.AnalyticsReport, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}
