package strategyconfig

import (
	"errors"
	"fmt"
	"regexp"
	"time"
	_ "time/tzdata" // meta.timezone must resolve without a system zoneinfo

	"github.com/wonny/aegis-signal/internal/audit"
	"github.com/wonny/aegis-signal/internal/backtest"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/signal"
)

// DefaultRiskFreeRate is applied when analytics.risk_free_rate is omitted
const DefaultRiskFreeRate = audit.DefaultRiskFreeRate

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var hhmm = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if cfg.Meta.DecisionTimeLocal != "" {
		if err := validateHHMM(cfg.Meta.DecisionTimeLocal); err != nil {
			return ValidationError{"meta.decision_time_local", err.Error()}
		}
	}
	if cfg.Meta.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil {
			return ValidationError{"meta.timezone", err.Error()}
		}
	}

	// === Signal ===
	if cfg.Signal.TopK != nil && *cfg.Signal.TopK <= 0 {
		return ValidationError{"signal.top_k", "must be > 0 (omit or null for unlimited)"}
	}
	if _, err := cfg.SignalParams(); err != nil {
		return ValidationError{"signal", err.Error()}
	}

	// === Pool ===
	if _, err := cfg.RebalancePeriod(); err != nil {
		return ValidationError{"pool.rebalance_period", err.Error()}
	}

	// === Analytics ===
	if rf := cfg.RiskFreeRate(); rf < -1 || rf > 1 {
		return ValidationError{"analytics.risk_free_rate", "must be in range [-1, 1]"}
	}
	if _, err := cfg.MatchPolicy(); err != nil {
		return ValidationError{"analytics.match_policy", err.Error()}
	}

	// === Backtest ===
	b := cfg.Backtest
	if b.InitialCapital < 0 {
		return ValidationError{"backtest.initial_capital", "must be >= 0"}
	}
	if err := validateRate(b.CommissionRate, "backtest.commission_rate"); err != nil {
		return err
	}
	if err := validateRate(b.SlippageRate, "backtest.slippage_rate"); err != nil {
		return err
	}
	if b.LotSize <= 0 {
		return ValidationError{"backtest.lot_size", "must be > 0"}
	}
	if b.PositionPct <= 0 || b.PositionPct > 1 {
		return ValidationError{"backtest.position_pct", "must be in range (0, 1]"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Signal.TopK == nil {
		warnings = append(warnings, Warning{
			Code:    "UNLIMITED_TOP_K",
			Message: "top_k 미설정: 점수가 있는 모든 종목이 매수 대상",
		})
	}

	if cfg.Signal.BuyThreshold-cfg.Signal.SellThreshold < 0.005 {
		warnings = append(warnings, Warning{
			Code:    "NARROW_BAND",
			Message: "buy/sell 임계값 간격 < 0.5%: 잦은 매매 우려",
		})
	}

	if cfg.Backtest.SlippageRate == 0 {
		warnings = append(warnings, Warning{
			Code:    "ZERO_SLIPPAGE",
			Message: "슬리피지 0: 백테스트 성과가 낙관적일 수 있음",
		})
	}

	if cfg.Pool.UseWeights && cfg.Signal.TopK == nil {
		warnings = append(warnings, Warning{
			Code:    "DILUTED_WEIGHTS",
			Message: "top_k 없이 풀 비중 사용: 종목당 비중이 1/전체종목수로 희석됨",
		})
	}

	return warnings
}

// SignalParams converts the signal section into validated decision parameters
func (c *Config) SignalParams() (signal.Params, error) {
	return signal.NewParams(c.Signal.BuyThreshold, c.Signal.SellThreshold, c.Signal.TopK)
}

// RebalancePeriod parses pool.rebalance_period
func (c *Config) RebalancePeriod() (contracts.RebalancePeriod, error) {
	return contracts.ParseRebalancePeriod(c.Pool.RebalancePeriod)
}

// RiskFreeRate returns analytics.risk_free_rate or the default
func (c *Config) RiskFreeRate() float64 {
	if c.Analytics.RiskFreeRate == nil {
		return DefaultRiskFreeRate
	}
	return *c.Analytics.RiskFreeRate
}

// MatchPolicy parses analytics.match_policy
func (c *Config) MatchPolicy() (audit.MatchPolicy, error) {
	return audit.ParseMatchPolicy(c.Analytics.MatchPolicy)
}

// Costs returns the execution frictions for the replay host
func (c *Config) Costs() backtest.Costs {
	return backtest.Costs{
		CommissionRate: c.Backtest.CommissionRate,
		SlippageRate:   c.Backtest.SlippageRate,
		LotSize:        c.Backtest.LotSize,
	}
}

// CronSpec turns meta.decision_time_local into a weekday cron spec (with seconds)
func (c *Config) CronSpec() (string, error) {
	if c.Meta.DecisionTimeLocal == "" {
		return "", errors.New("meta.decision_time_local not set")
	}
	t, err := time.Parse("15:04", c.Meta.DecisionTimeLocal)
	if err != nil {
		return "", err
	}
	spec := fmt.Sprintf("0 %d %d * * 1-5", t.Minute(), t.Hour())
	if c.Meta.Timezone != "" {
		spec = "CRON_TZ=" + c.Meta.Timezone + " " + spec
	}
	return spec, nil
}

// === Helper Functions ===

func validateHHMM(s string) error {
	if !hhmm.MatchString(s) {
		return errors.New("must be HH:MM format")
	}
	_, err := time.Parse("15:04", s)
	return err
}

// validateRate는 비용 비율이 0~0.1 범위인지 검증
func validateRate(rate float64, field string) error {
	if rate < 0 || rate > 0.1 {
		return ValidationError{field, "must be in range [0, 0.1]"}
	}
	return nil
}
