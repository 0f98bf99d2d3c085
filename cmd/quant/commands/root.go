package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyPath string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Aegis Signal - 예측 점수 → 매매 시그널",
	Long: `Aegis Signal Unified CLI

외부 모델의 예측 점수(날짜 × 종목)를 임계값 + Top-K 규칙으로
BUY / SELL / HOLD 시그널로 변환하고, 리밸런싱 풀과 성과 지표를 계산합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant strategy check
  go run ./cmd/quant signals --predictions data/pred.parquet --date 2024-03-04
  go run ./cmd/quant pool --predictions data/pred.csv
  go run ./cmd/quant backtest run --predictions data/pred.parquet --bars data/bars.parquet
  go run ./cmd/quant report <run_id>
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyPath, "strategy", "", "strategy YAML (default: STRATEGY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
