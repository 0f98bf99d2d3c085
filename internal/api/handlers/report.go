package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-signal/internal/audit"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/journal"
	"github.com/wonny/aegis-signal/pkg/logger"
	"github.com/wonny/aegis-signal/pkg/redis"
)

// ReportStore reads persisted reports (audit.Repository)
type ReportStore interface {
	GetReport(ctx context.Context, runID string) (*contracts.AnalyticsReport, error)
}

// RunSource reads a recorded run (journal.SQLite)
type RunSource interface {
	Run(ctx context.Context, runID string) (journal.RunInfo, error)
	Trades(ctx context.Context, runID string) ([]contracts.Trade, error)
	EquityCurve(ctx context.Context, runID string) ([]contracts.EquityPoint, error)
}

// ReportHandler serves analytics reports: cache -> store -> recompute from the journal
type ReportHandler struct {
	cache    *redis.Cache // nil or disabled = no caching
	store    ReportStore  // may be nil
	runs     RunSource    // may be nil
	analyzer *audit.Analyzer
	logger   *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(cache *redis.Cache, store ReportStore, runs RunSource, analyzer *audit.Analyzer, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		cache:    cache,
		store:    store,
		runs:     runs,
		analyzer: analyzer,
		logger:   log,
	}
}

// GetReport returns the analytics report of a run
// GET /api/reports/{run_id}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["run_id"]

	var cached contracts.AnalyticsReport
	hit, err := h.cache.Get(ctx, redis.ReportKey(runID), &cached)
	if err != nil {
		h.logger.WithError(err).Warn("Report cache read failed")
	}
	if hit {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	report, err := h.lookup(ctx, runID)
	if err != nil {
		if errors.Is(err, audit.ErrReportNotFound) || errors.Is(err, journal.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "report not found")
			return
		}
		h.logger.WithError(err).WithField("run_id", runID).Error("Failed to get report")
		respondError(w, http.StatusInternalServerError, "failed to get report")
		return
	}

	if err := h.cache.Set(ctx, redis.ReportKey(runID), report); err != nil {
		h.logger.WithError(err).Warn("Report cache write failed")
	}

	respondJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) lookup(ctx context.Context, runID string) (*contracts.AnalyticsReport, error) {
	if h.store != nil {
		report, err := h.store.GetReport(ctx, runID)
		if err == nil {
			return report, nil
		}
		if !errors.Is(err, audit.ErrReportNotFound) || h.runs == nil {
			return nil, err
		}
	}
	if h.runs == nil {
		return nil, audit.ErrReportNotFound
	}

	info, err := h.runs.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	trades, err := h.runs.Trades(ctx, runID)
	if err != nil {
		return nil, err
	}
	curve, err := h.runs.EquityCurve(ctx, runID)
	if err != nil {
		return nil, err
	}

	report := h.analyzer.Analyze(audit.Run{
		RunID:          info.RunID,
		StrategyName:   info.StrategyName,
		InitialCapital: info.InitialCapital,
		Curve:          curve,
		Trades:         trades,
		ConfigHash:     info.ConfigHash,
	})
	return &report, nil
}
