package contracts

import "time"

// AnalyticsReport is the flat result of performance analytics; computed fresh on every call
// ⭐ SSOT: 성과 리포트 포맷
type AnalyticsReport struct {
	RunID          string    `json:"run_id,omitempty"`
	StrategyName   string    `json:"strategy_name"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	TotalReturn    float64   `json:"total_return"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	WinRate        float64   `json:"win_rate"`
	TotalTrades    int       `json:"total_trades"`
	MatchedPairs   int       `json:"matched_pairs"`
	ConfigHash     string    `json:"config_hash,omitempty"`
}
