package strategyconfig

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/wonny/aegis-signal/internal/audit"
	"github.com/wonny/aegis-signal/internal/contracts"
)

const baseYAML = `
meta:
  strategy_id: test_v1
  timezone: Asia/Seoul
  decision_time_local: "08:30"
signal:
  buy_threshold: 0.02
  sell_threshold: -0.01
  top_k: 2
pool:
  rebalance_period: week
`

func TestLoad(t *testing.T) {
	path := "../../config/strategy.yaml"

	cfg, yamlData, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Meta.StrategyID != "topk_signal_v1" {
		t.Errorf("expected strategy_id=topk_signal_v1, got %s", cfg.Meta.StrategyID)
	}
	if cfg.Signal.TopK == nil || *cfg.Signal.TopK != 10 {
		t.Errorf("expected top_k=10, got %v", cfg.Signal.TopK)
	}

	// 해시 생성
	hash, err := Hash(cfg)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(hash))
	}

	snap, err := NewDecisionSnapshot(cfg, yamlData, "abc123", "fp-1")
	if err != nil {
		t.Fatalf("NewDecisionSnapshot failed: %v", err)
	}
	if snap.ConfigHash != hash || snap.DataSnapshotID != "fp-1" || snap.StrategyID != "topk_signal_v1" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(baseYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Backtest.LotSize != 1 {
		t.Errorf("expected lot_size default 1, got %v", cfg.Backtest.LotSize)
	}
	if cfg.Backtest.PositionPct != 0.1 {
		t.Errorf("expected position_pct default 0.1, got %v", cfg.Backtest.PositionPct)
	}
	if math.Abs(cfg.RiskFreeRate()-0.03) > 1e-12 {
		t.Errorf("expected default risk-free 0.03, got %v", cfg.RiskFreeRate())
	}
	policy, err := cfg.MatchPolicy()
	if err != nil || policy != audit.MatchFIFO {
		t.Errorf("expected fifo default, got %v (%v)", policy, err)
	}
	period, err := cfg.RebalancePeriod()
	if err != nil || period != contracts.RebalanceWeek {
		t.Errorf("expected week, got %v (%v)", period, err)
	}

	p, err := cfg.SignalParams()
	if err != nil {
		t.Fatalf("SignalParams failed: %v", err)
	}
	if p.TopK != 2 || p.BuyThreshold != 0.02 || p.SellThreshold != -0.01 {
		t.Errorf("unexpected params: %+v", p)
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte(baseYAML + "\nextra: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParse_UnlimitedTopK(t *testing.T) {
	yml := strings.Replace(baseYAML, "top_k: 2", "top_k: null", 1)
	cfg, err := Parse([]byte(yml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Signal.TopK != nil {
		t.Errorf("expected nil top_k, got %v", *cfg.Signal.TopK)
	}

	found := false
	for _, w := range Warn(cfg) {
		if w.Code == "UNLIMITED_TOP_K" {
			found = true
		}
	}
	if !found {
		t.Error("expected UNLIMITED_TOP_K warning")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		to    string
		field string
	}{
		{"zero top_k", "top_k: 2", "top_k: 0", "signal.top_k"},
		{"negative top_k", "top_k: 2", "top_k: -3", "signal.top_k"},
		{"inverted thresholds", "buy_threshold: 0.02", "buy_threshold: -0.02", "signal"},
		{"equal thresholds", "buy_threshold: 0.02", "buy_threshold: -0.01", "signal"},
		{"bad period", "rebalance_period: week", "rebalance_period: quarter", "pool.rebalance_period"},
		{"bad hhmm", `"08:30"`, `"8:30"`, "meta.decision_time_local"},
		{"bad timezone", "Asia/Seoul", "Mars/Olympus", "meta.timezone"},
		{"missing id", "strategy_id: test_v1", "strategy_id: \"\"", "meta.strategy_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yml := strings.Replace(baseYAML, tt.from, tt.to, 1)
			_, err := Parse([]byte(yml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestValidate_Backtest(t *testing.T) {
	cfg, err := Parse([]byte(baseYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cfg.Backtest.SlippageRate = 0.5
	if err := Validate(cfg); err == nil {
		t.Error("expected slippage_rate range error")
	}
	cfg.Backtest.SlippageRate = 0.001

	cfg.Backtest.PositionPct = 1.5
	if err := Validate(cfg); err == nil {
		t.Error("expected position_pct range error")
	}
	cfg.Backtest.PositionPct = 0.2

	cfg.Analytics.MatchPolicy = "random"
	if err := Validate(cfg); err == nil {
		t.Error("expected match_policy error")
	}
}

func TestWarn_ZeroSlippageAndNarrowBand(t *testing.T) {
	yml := strings.Replace(baseYAML, "sell_threshold: -0.01", "sell_threshold: 0.018", 1)
	cfg, err := Parse([]byte(yml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	codes := map[string]bool{}
	for _, w := range Warn(cfg) {
		codes[w.Code] = true
	}
	if !codes["NARROW_BAND"] {
		t.Error("expected NARROW_BAND warning")
	}
	if !codes["ZERO_SLIPPAGE"] {
		t.Error("expected ZERO_SLIPPAGE warning")
	}
}

func TestHash_Deterministic(t *testing.T) {
	a, _ := Parse([]byte(baseYAML))
	b, _ := Parse([]byte(baseYAML))

	ha, _ := Hash(a)
	hb, _ := Hash(b)
	if ha != hb {
		t.Errorf("hash not deterministic: %s != %s", ha, hb)
	}

	*b.Signal.TopK = 3
	hc, _ := Hash(b)
	if ha == hc {
		t.Error("hash should change when config changes")
	}
}

func TestCronSpec(t *testing.T) {
	cfg, _ := Parse([]byte(baseYAML))
	spec, err := cfg.CronSpec()
	if err != nil {
		t.Fatalf("CronSpec failed: %v", err)
	}
	if spec != "CRON_TZ=Asia/Seoul 0 30 8 * * 1-5" {
		t.Errorf("unexpected cron spec: %s", spec)
	}
}
