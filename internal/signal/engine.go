package signal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aegis-signal/internal/calendar"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/prediction"
	"github.com/wonny/aegis-signal/internal/selection"
	"github.com/wonny/aegis-signal/pkg/logger"
)

type decisionKey struct {
	instrument string
	date       time.Time
	version    string
}

// Engine evaluates decisions for one run and implements contracts.SignalComputer
// ⭐ SSOT: 매수/매도 판단은 여기서만
type Engine struct {
	params    Params
	table     *prediction.Table
	selector  *selection.Selector
	calendars *calendar.Cache
	logger    *logger.Logger

	mu        sync.RWMutex
	decisions map[decisionKey]contracts.Signal
}

var _ contracts.SignalComputer = (*Engine)(nil)

// NewEngine wires a prediction table to a fresh selector and calendar cache
func NewEngine(params Params, table *prediction.Table, log *logger.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	sel, err := selection.NewSelector(table, params.TopK, log)
	if err != nil {
		return nil, err
	}

	return &Engine{
		params:    params,
		table:     table,
		selector:  sel,
		calendars: calendar.NewCache(log),
		logger:    log.Component("signal"),
		decisions: make(map[decisionKey]contracts.Signal),
	}, nil
}

// Params returns the engine's decision configuration
func (e *Engine) Params() Params { return e.params }

// Selector exposes the run's Top-K selector
func (e *Engine) Selector() *selection.Selector { return e.selector }

// Reset discards every per-run cache
func (e *Engine) Reset() {
	e.selector.Reset()
	e.calendars.Reset()

	e.mu.Lock()
	e.decisions = make(map[decisionKey]contracts.Signal)
	e.mu.Unlock()
}

// ComputeSignal is called by the replay host once per (instrument, session).
// Sessions absent from the instrument's calendar produce no action.
func (e *Engine) ComputeSignal(bar contracts.BarContext) contracts.Action {
	// build failures are logged once by the calendar cache
	idx, err := e.calendars.Get(bar.SeriesID, bar.Version, bar.Sessions)
	if err != nil {
		return contracts.ActionNone
	}

	session, ok := idx.Lookup(bar.Session)
	if !ok {
		return contracts.ActionNone
	}

	return e.evaluate(bar.Instrument, session, idx.Version()).Action
}

// Evaluate decides for one instrument on one date without calendar alignment
func (e *Engine) Evaluate(instrument string, date time.Time) contracts.Signal {
	d := contracts.DateOf(date)
	return e.evaluate(instrument, calendar.Session{Position: -1, Timestamp: d}, "")
}

func (e *Engine) evaluate(instrument string, session calendar.Session, version string) contracts.Signal {
	key := decisionKey{instrument: instrument, date: contracts.DateOf(session.Timestamp), version: version}

	e.mu.RLock()
	sig, ok := e.decisions[key]
	e.mu.RUnlock()
	if ok {
		return sig
	}

	score, hasScore := e.table.Score(instrument, key.date)
	inTopK := hasScore && e.selector.Contains(key.date, instrument)

	sig = contracts.Signal{
		Instrument: instrument,
		Session:    session.Timestamp,
		Position:   session.Position,
		Score:      score,
		InTopK:     inTopK,
		Action:     Decide(e.params, score, hasScore, inTopK),
	}

	e.mu.Lock()
	e.decisions[key] = sig
	e.mu.Unlock()

	return sig
}

// Signals sweeps an instrument's prediction dates against its price calendar.
// Prediction dates without a session are skipped.
func (e *Engine) Signals(instrument, seriesID, version string, sessions []time.Time) ([]contracts.Signal, error) {
	idx, err := e.calendars.Get(seriesID, version, sessions)
	if err != nil {
		return nil, fmt.Errorf("calendar for %s: %w", seriesID, err)
	}

	series, ok := e.table.Series(instrument)
	if !ok {
		return nil, nil
	}

	out := make([]contracts.Signal, 0, series.Len())
	skipped := 0
	for _, d := range series.Dates() {
		session, ok := idx.Lookup(d)
		if !ok {
			skipped++
			continue
		}
		out = append(out, e.evaluate(instrument, session, idx.Version()))
	}

	if skipped > 0 {
		e.logger.WithFields(map[string]interface{}{
			"instrument": instrument,
			"skipped":    skipped,
		}).Debug("Prediction dates without a trading session skipped")
	}

	return out, nil
}

// SeriesRequest names one instrument's price calendar for SignalsParallel
type SeriesRequest struct {
	Instrument string
	SeriesID   string
	Version    string
	Sessions   []time.Time
}

// SignalsParallel evaluates instruments concurrently. The Top-K cache is filled for
// every prediction date before workers start.
func (e *Engine) SignalsParallel(ctx context.Context, reqs []SeriesRequest, workers int) (map[string][]contracts.Signal, error) {
	if workers <= 0 {
		workers = 1
	}

	if !e.selector.Unlimited() {
		e.selector.Precompute(e.table.Dates())
	}

	type result struct {
		instrument string
		signals    []contracts.Signal
		err        error
	}

	jobs := make(chan SeriesRequest)
	results := make(chan result, len(reqs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				sigs, err := e.Signals(req.Instrument, req.SeriesID, req.Version, req.Sessions)
				results <- result{instrument: req.Instrument, signals: sigs, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, req := range reqs {
			select {
			case jobs <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string][]contracts.Signal, len(reqs))
	var firstErr error
	for r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("signals for %s: %w", r.instrument, r.err)
			continue
		}
		out[r.instrument] = r.signals
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"instruments":    len(out),
		"workers":        workers,
		"calendar_built": e.calendars.Builds(),
	}).Debug("Signals evaluated in parallel")

	return out, nil
}

// Emitted filters signals down to BUY/SELL, ordered by session then instrument
func Emitted(all map[string][]contracts.Signal) []contracts.Signal {
	var out []contracts.Signal
	for _, sigs := range all {
		for _, s := range sigs {
			if s.Action.Emits() {
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Session.Equal(out[j].Session) {
			return out[i].Session.Before(out[j].Session)
		}
		return out[i].Instrument < out[j].Instrument
	})
	return out
}
