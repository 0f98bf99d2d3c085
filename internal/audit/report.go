// Package audit computes performance analytics over an equity curve and a trade ledger.
package audit

import (
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// Run is everything a finished replay hands to analytics
type Run struct {
	RunID          string
	StrategyName   string
	InitialCapital float64 // 0 reports a total return of 0
	Curve          []contracts.EquityPoint
	Trades         []contracts.Trade
	ConfigHash     string
}

// BuildReport computes a fresh report; it never fails, degenerate inputs give zero metrics
func BuildReport(run Run, riskFreeRate float64, policy MatchPolicy) contracts.AnalyticsReport {
	equities := contracts.Equities(run.Curve)

	initial := run.InitialCapital
	final := initial
	if len(equities) > 0 {
		final = equities[len(equities)-1]
	}

	rate, pairs := winStats(MatchTrades(run.Trades, policy))

	report := contracts.AnalyticsReport{
		RunID:          run.RunID,
		StrategyName:   run.StrategyName,
		InitialCapital: initial,
		FinalCapital:   final,
		TotalReturn:    TotalReturn(initial, final),
		SharpeRatio:    SharpeRatio(equities, riskFreeRate),
		MaxDrawdown:    MaxDrawdown(equities),
		WinRate:        rate,
		TotalTrades:    len(run.Trades),
		MatchedPairs:   pairs,
		ConfigHash:     run.ConfigHash,
	}
	if len(run.Curve) > 0 {
		report.StartDate = contracts.DateOf(run.Curve[0].Date)
		report.EndDate = contracts.DateOf(run.Curve[len(run.Curve)-1].Date)
	}

	return report
}

// Analyzer applies one analytics configuration and logs each report
// ⭐ SSOT: 성과 분석 로직은 여기서만
type Analyzer struct {
	riskFreeRate float64
	policy       MatchPolicy
	logger       *logger.Logger
}

// NewAnalyzer creates a new performance analyzer
func NewAnalyzer(riskFreeRate float64, policy MatchPolicy, log *logger.Logger) *Analyzer {
	if policy == "" {
		policy = MatchFIFO
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{
		riskFreeRate: riskFreeRate,
		policy:       policy,
		logger:       log.Component("audit"),
	}
}

// Policy returns the trade matching policy
func (a *Analyzer) Policy() MatchPolicy { return a.policy }

// Analyze builds the report for run
func (a *Analyzer) Analyze(run Run) contracts.AnalyticsReport {
	report := BuildReport(run, a.riskFreeRate, a.policy)

	a.logger.WithFields(map[string]interface{}{
		"run_id":        report.RunID,
		"total_return":  report.TotalReturn,
		"sharpe":        report.SharpeRatio,
		"max_drawdown":  report.MaxDrawdown,
		"win_rate":      report.WinRate,
		"total_trades":  report.TotalTrades,
		"matched_pairs": report.MatchedPairs,
	}).Info("Performance analysis completed")

	return report
}

// Pairs exposes the matched pairs behind the win rate
func (a *Analyzer) Pairs(trades []contracts.Trade) []MatchedPair {
	return MatchTrades(trades, a.policy)
}
