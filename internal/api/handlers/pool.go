package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/portfolio"
	"github.com/wonny/aegis-signal/internal/selection"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// TargetStore reads persisted pools (selection.Repository)
type TargetStore interface {
	GetTarget(ctx context.Context, date time.Time, period contracts.RebalancePeriod) (*contracts.TargetPortfolio, error)
}

// PoolHandler serves rebalance targets
// ⭐ SSOT: 풀 조회 API 핸들러는 이 구조체에서만
type PoolHandler struct {
	store  TargetStore     // may be nil
	pool   *portfolio.Pool // in-memory pool built from a prediction file, may be nil
	period contracts.RebalancePeriod
	now    func() time.Time
	logger *logger.Logger
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(store TargetStore, pool *portfolio.Pool, period contracts.RebalancePeriod, log *logger.Logger) *PoolHandler {
	return &PoolHandler{
		store:  store,
		pool:   pool,
		period: period,
		now:    time.Now,
		logger: log,
	}
}

// GetPool returns the target governing a date
// GET /api/pool?date=YYYY-MM-DD
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date", contracts.DateOf(h.now()))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date (want YYYY-MM-DD)")
		return
	}

	if h.pool != nil {
		if target, ok := h.pool.Target(date); ok {
			respondJSON(w, http.StatusOK, target)
			return
		}
	}

	if h.store == nil {
		respondError(w, http.StatusNotFound, "no pool for date")
		return
	}

	target, err := h.store.GetTarget(r.Context(), date, h.period)
	if errors.Is(err, selection.ErrPoolNotFound) {
		respondError(w, http.StatusNotFound, "no pool for date")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("date", date.Format(contracts.DateLayout)).Error("Failed to get pool")
		respondError(w, http.StatusInternalServerError, "failed to get pool")
		return
	}

	respondJSON(w, http.StatusOK, target)
}
