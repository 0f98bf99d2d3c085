// Package backtest is a reference replay host: it owns the bar loop, asks a
// contracts.SignalComputer for an action per (instrument, session) and produces
// the trade ledger and equity curve consumed by analytics.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/aegis-signal/internal/audit"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/marketdata"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// Config holds backtest configuration
type Config struct {
	RunID          string
	StrategyName   string
	StartDate      time.Time // zero = from the first bar
	EndDate        time.Time // zero = through the last bar
	InitialCapital float64
	Costs          Costs
	// PositionPct sizes a BUY when no weight provider is set
	PositionPct float64
	ConfigHash  string
}

// Result holds backtest results
type Result struct {
	RunID       string
	Sessions    int
	Duration    time.Duration
	Trades      []contracts.Trade
	EquityCurve []contracts.EquityPoint
	Report      contracts.AnalyticsReport
}

// Engine runs replays
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	analyzer *audit.Analyzer
	journal  contracts.Journal
	logger   *logger.Logger
}

// NewEngine creates a new backtest engine; journal may be nil
func NewEngine(analyzer *audit.Analyzer, journal contracts.Journal, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		analyzer: analyzer,
		journal:  journal,
		logger:   log.Component("backtest"),
	}
}

type tick struct {
	instrument string
	bar        contracts.Bar
}

// Run replays every bar of universe in time order. weights may be nil.
func (e *Engine) Run(
	ctx context.Context,
	cfg Config,
	universe marketdata.Universe,
	computer contracts.SignalComputer,
	weights contracts.WeightProvider,
) (*Result, error) {
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("backtest: initial capital must be > 0, got %v", cfg.InitialCapital)
	}
	if weights == nil && cfg.PositionPct <= 0 {
		return nil, fmt.Errorf("backtest: position pct must be > 0 without a weight provider")
	}

	start := time.Now()

	e.logger.WithFields(map[string]interface{}{
		"run_id":          cfg.RunID,
		"instruments":     len(universe),
		"initial_capital": cfg.InitialCapital,
		"start_date":      cfg.StartDate.Format(contracts.DateLayout),
		"end_date":        cfg.EndDate.Format(contracts.DateLayout),
	}).Info("Starting backtest")

	// calendar inputs are fixed for the whole run
	sessions := make(map[string][]time.Time, len(universe))
	versions := make(map[string]string, len(universe))
	for inst, s := range universe {
		sessions[inst] = s.Sessions()
		versions[inst] = s.Version()
	}

	timeline := e.timeline(cfg, universe)

	sim := NewSimulator(cfg.InitialCapital, cfg.Costs)
	result := &Result{RunID: cfg.RunID}

	for _, ts := range timeline.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, tk := range timeline.ticks[ts] {
			if tk.bar.Close <= 0 {
				continue
			}
			sim.Mark(tk.instrument, tk.bar.Close)

			action := computer.ComputeSignal(contracts.BarContext{
				Instrument: tk.instrument,
				Session:    ts,
				SeriesID:   tk.instrument,
				Sessions:   sessions[tk.instrument],
				Version:    versions[tk.instrument],
			})

			trade := e.execute(sim, cfg, weights, action, tk, ts)
			if trade == nil {
				continue
			}

			result.Trades = append(result.Trades, *trade)
			if e.journal != nil {
				if err := e.journal.RecordTrade(ctx, cfg.RunID, *trade); err != nil {
					return nil, fmt.Errorf("journal trade: %w", err)
				}
			}
		}

		point := contracts.EquityPoint{Date: ts, Equity: sim.Equity()}
		result.EquityCurve = append(result.EquityCurve, point)
		if e.journal != nil {
			if err := e.journal.RecordEquity(ctx, cfg.RunID, point); err != nil {
				return nil, fmt.Errorf("journal equity: %w", err)
			}
		}
	}

	result.Sessions = len(timeline.order)
	result.Report = e.analyzer.Analyze(audit.Run{
		RunID:          cfg.RunID,
		StrategyName:   cfg.StrategyName,
		InitialCapital: cfg.InitialCapital,
		Curve:          result.EquityCurve,
		Trades:         result.Trades,
		ConfigHash:     cfg.ConfigHash,
	})
	result.Duration = time.Since(start)

	e.logger.WithFields(map[string]interface{}{
		"run_id":       cfg.RunID,
		"duration":     result.Duration.Seconds(),
		"sessions":     result.Sessions,
		"trades":       len(result.Trades),
		"total_return": fmt.Sprintf("%.2f%%", result.Report.TotalReturn*100),
		"sharpe_ratio": fmt.Sprintf("%.2f", result.Report.SharpeRatio),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.Report.MaxDrawdown*100),
	}).Info("Backtest completed")

	return result, nil
}

func (e *Engine) execute(sim *Simulator, cfg Config, weights contracts.WeightProvider, action contracts.Action, tk tick, ts time.Time) *contracts.Trade {
	switch action {
	case contracts.ActionBuy:
		if _, held := sim.Position(tk.instrument); held {
			return nil
		}

		weight := cfg.PositionPct
		if weights != nil {
			weight = weights.Weight(ts, tk.instrument)
		}
		if weight <= 0 {
			return nil
		}
		return sim.Buy(tk.instrument, ts, tk.bar.Close, weight*sim.Equity())

	case contracts.ActionSell:
		trade, err := sim.Sell(tk.instrument, ts, tk.bar.Close)
		if err != nil {
			return nil
		}
		return trade
	}
	return nil
}

type timeline struct {
	order []time.Time
	ticks map[time.Time][]tick
}

// timeline merges every instrument's bars into one ordered session list.
// Within a session instruments are visited in id order.
func (e *Engine) timeline(cfg Config, universe marketdata.Universe) timeline {
	tl := timeline{ticks: make(map[time.Time][]tick)}

	for _, inst := range universe.Instruments() {
		for _, b := range universe[inst].Bars {
			d := contracts.DateOf(b.Time)
			if !cfg.StartDate.IsZero() && d.Before(contracts.DateOf(cfg.StartDate)) {
				continue
			}
			if !cfg.EndDate.IsZero() && d.After(contracts.DateOf(cfg.EndDate)) {
				continue
			}
			if _, ok := tl.ticks[b.Time]; !ok {
				tl.order = append(tl.order, b.Time)
			}
			tl.ticks[b.Time] = append(tl.ticks[b.Time], tick{instrument: inst, bar: b})
		}
	}

	sort.Slice(tl.order, func(i, j int) bool { return tl.order[i].Before(tl.order[j]) })
	return tl
}
