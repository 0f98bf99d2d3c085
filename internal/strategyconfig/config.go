package strategyconfig

import "time"

// Config는 예측 → 시그널 전략의 전체 설정
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Signal    Signal    `yaml:"signal" json:"signal"`
	Pool      Pool      `yaml:"pool" json:"pool"`
	Analytics Analytics `yaml:"analytics" json:"analytics"`
	Backtest  Backtest  `yaml:"backtest" json:"backtest"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID        string `yaml:"strategy_id" json:"strategy_id"`
	Version           string `yaml:"version" json:"version"`
	Timezone          string `yaml:"timezone" json:"timezone"`
	DecisionTimeLocal string `yaml:"decision_time_local" json:"decision_time_local"` // HH:MM, pool refresh time
}

// Signal 매수/매도 임계값과 Top-K
type Signal struct {
	BuyThreshold  float64 `yaml:"buy_threshold" json:"buy_threshold"`
	SellThreshold float64 `yaml:"sell_threshold" json:"sell_threshold"`
	TopK          *int    `yaml:"top_k" json:"top_k"` // null = 제한 없음
}

// Pool 리밸런싱 풀
type Pool struct {
	RebalancePeriod string `yaml:"rebalance_period" json:"rebalance_period"` // day | week | month
	UseWeights      bool   `yaml:"use_weights" json:"use_weights"`           // size backtest buys by pool weight
}

// Analytics 성과 분석
type Analytics struct {
	RiskFreeRate *float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	MatchPolicy  string   `yaml:"match_policy" json:"match_policy"` // fifo | lifo | single_slot
}

// Backtest 백테스트 비용 / 사이징
type Backtest struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate"`
	SlippageRate   float64 `yaml:"slippage_rate" json:"slippage_rate"`
	LotSize        float64 `yaml:"lot_size" json:"lot_size"`
	PositionPct    float64 `yaml:"position_pct" json:"position_pct"` // used when pool.use_weights is false
}

// DecisionSnapshot 의사결정 스냅샷 (재현성용)
type DecisionSnapshot struct {
	ConfigHash     string    `json:"config_hash"`
	ConfigYAML     string    `json:"config_yaml"`
	StrategyID     string    `json:"strategy_id"`
	GitCommit      string    `json:"git_commit"`
	DataSnapshotID string    `json:"data_snapshot_id"` // prediction table fingerprint
	CreatedAt      time.Time `json:"created_at"`
}
