package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/strategyconfig"
)

// strategyCmd represents the strategy command
var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "전략 설정 관리",
}

var strategyCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "전략 YAML 검증 및 해시 출력",
	Long: `전략 YAML을 로드하여 검증하고, 경고와 설정 해시를 출력합니다.

Example:
  go run ./cmd/quant strategy check
  go run ./cmd/quant strategy check --strategy config/strategy.yaml`,
	RunE: runStrategyCheck,
}

func init() {
	rootCmd.AddCommand(strategyCmd)
	strategyCmd.AddCommand(strategyCheckCmd)
}

func runStrategyCheck(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	s := e.strategy

	hash, err := strategyconfig.Hash(s)
	if err != nil {
		return err
	}
	params, _ := s.SignalParams()

	topK := "unlimited"
	if s.Signal.TopK != nil {
		topK = fmt.Sprintf("%d", *s.Signal.TopK)
	}

	PrintHeader("Strategy " + s.Meta.StrategyID)
	PrintKeyValue("Buy Threshold", fmt.Sprintf("%g", params.BuyThreshold), 16)
	PrintKeyValue("Sell Threshold", fmt.Sprintf("%g", params.SellThreshold), 16)
	PrintKeyValue("Top-K", topK, 16)
	PrintKeyValue("Rebalance", s.Pool.RebalancePeriod, 16)
	PrintKeyValue("Risk-free Rate", fmt.Sprintf("%g", s.RiskFreeRate()), 16)
	PrintKeyValue("Match Policy", s.Analytics.MatchPolicy, 16)
	PrintKeyValue("Config Hash", hash, 16)
	PrintSeparator()

	warnings := strategyconfig.Warn(s)
	for _, w := range warnings {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	if len(warnings) == 0 {
		PrintSuccess("No warnings")
	}
	return nil
}
