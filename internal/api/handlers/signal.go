package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/marketdata"
	"github.com/wonny/aegis-signal/internal/signal"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// SignalHandler serves on-demand decisions; nothing here is persisted
type SignalHandler struct {
	engine   *signal.Engine
	universe marketdata.Universe // price calendars, may be nil
	logger   *logger.Logger
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(engine *signal.Engine, universe marketdata.Universe, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		engine:   engine,
		universe: universe,
		logger:   log,
	}
}

// GetInstrumentSignals sweeps one instrument over its calendar
// GET /api/signals/{instrument}?from=&to=&all=true
func (h *SignalHandler) GetInstrumentSignals(w http.ResponseWriter, r *http.Request) {
	instrument := mux.Vars(r)["instrument"]
	if instrument == "" {
		respondError(w, http.StatusBadRequest, "instrument is required")
		return
	}

	from, err := queryDate(r, "from", time.Time{})
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := queryDate(r, "to", time.Time{})
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid to date")
		return
	}

	var sessions []time.Time
	var version string
	if s, ok := h.universe[instrument]; ok {
		sessions, version = s.Sessions(), s.Version()
	} else if series, ok := h.engine.Selector().Table().Series(instrument); ok {
		// no price data: predictions define the calendar
		sessions = series.Dates()
	} else {
		respondError(w, http.StatusNotFound, "unknown instrument")
		return
	}

	signals, err := h.engine.Signals(instrument, instrument, version, sessions)
	if err != nil {
		h.logger.WithError(err).WithField("instrument", instrument).Error("Failed to compute signals")
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	all := r.URL.Query().Get("all") == "true"
	out := make([]contracts.Signal, 0, len(signals))
	for _, s := range signals {
		if !from.IsZero() && s.Session.Before(from) {
			continue
		}
		if !to.IsZero() && contracts.DateOf(s.Session).After(to) {
			continue
		}
		if !all && !s.Action.Emits() {
			continue
		}
		out = append(out, s)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"instrument": instrument,
		"signals":    out,
	})
}

// GetDateSignals evaluates every scored instrument on one date
// GET /api/signals?date=YYYY-MM-DD
func (h *SignalHandler) GetDateSignals(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		respondError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := contracts.ParseDate(dateStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date (want YYYY-MM-DD)")
		return
	}

	entries := h.engine.Selector().Table().Slice(date)
	out := make([]contracts.Signal, 0, len(entries))
	for _, e := range entries {
		out = append(out, h.engine.Evaluate(e.Instrument, date))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":    date.Format(contracts.DateLayout),
		"top_k":   h.engine.Params().TopK,
		"signals": out,
	})
}
