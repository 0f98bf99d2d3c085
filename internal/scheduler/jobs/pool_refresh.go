package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/portfolio"
	"github.com/wonny/aegis-signal/internal/prediction"
	"github.com/wonny/aegis-signal/internal/selection"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// PredictionSource loads stored predictions (prediction.Repository)
type PredictionSource interface {
	LatestDate(ctx context.Context) (time.Time, error)
	LoadRange(ctx context.Context, from, to time.Time) (*prediction.Table, error)
}

// TargetSink persists rebalance targets (selection.Repository)
type TargetSink interface {
	SaveTargets(ctx context.Context, targets []contracts.TargetPortfolio) error
}

// PoolRefreshJob rebuilds the current rebalance pool from the latest predictions
// Schedule: strategy decision_time_local on weekdays
type PoolRefreshJob struct {
	source   PredictionSource
	sink     TargetSink
	topK     int
	period   contracts.RebalancePeriod
	schedule string
	logger   *logger.Logger

	lastTarget *contracts.TargetPortfolio
}

// NewPoolRefreshJob creates a new pool refresh job. topK of selection.Unlimited keeps every scored instrument.
func NewPoolRefreshJob(source PredictionSource, sink TargetSink, topK int, period contracts.RebalancePeriod, schedule string, log *logger.Logger) *PoolRefreshJob {
	if log == nil {
		log = logger.Nop()
	}
	return &PoolRefreshJob{
		source:   source,
		sink:     sink,
		topK:     topK,
		period:   period,
		schedule: schedule,
		logger:   log.Component("pool_refresh"),
	}
}

// Name returns the job name
func (j *PoolRefreshJob) Name() string {
	return "pool_refresh"
}

// Schedule returns the cron schedule
func (j *PoolRefreshJob) Schedule() string {
	return j.schedule
}

// LastTarget returns the most recently saved target (nil before the first run)
func (j *PoolRefreshJob) LastTarget() *contracts.TargetPortfolio {
	return j.lastTarget
}

// lookback covers at least one whole rebalance bucket before the latest date
func lookback(period contracts.RebalancePeriod) int {
	switch period {
	case contracts.RebalanceWeek:
		return 7
	case contracts.RebalanceMonth:
		return 31
	}
	return 0
}

// Run executes the pool refresh
func (j *PoolRefreshJob) Run(ctx context.Context) error {
	latest, err := j.source.LatestDate(ctx)
	if err != nil {
		return fmt.Errorf("latest prediction date: %w", err)
	}
	if latest.IsZero() {
		j.logger.Info("No predictions stored, skipping")
		return nil
	}

	from := latest.AddDate(0, 0, -lookback(j.period))
	table, err := j.source.LoadRange(ctx, from, latest)
	if err != nil {
		return fmt.Errorf("load predictions: %w", err)
	}

	sel, err := selection.NewSelector(table, j.topK, j.logger)
	if err != nil {
		return err
	}
	pool, err := portfolio.NewPool(sel, from, latest, j.period, j.logger)
	if err != nil {
		return fmt.Errorf("build pool: %w", err)
	}

	target, ok := pool.Target(latest)
	if !ok {
		j.logger.WithField("date", latest.Format(contracts.DateLayout)).Warn("No rebalance date governs latest predictions")
		return nil
	}

	if err := j.sink.SaveTargets(ctx, []contracts.TargetPortfolio{*target}); err != nil {
		return fmt.Errorf("save pool: %w", err)
	}
	j.lastTarget = target

	j.logger.WithFields(map[string]interface{}{
		"rebalance_date": target.Date.Format(contracts.DateLayout),
		"period":         string(j.period),
		"members":        len(target.Positions),
		"cash":           target.Cash,
	}).Info("Pool refreshed")

	return nil
}
