package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/audit"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/journal"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report [run_id]",
	Short: "저널에 기록된 실행의 성과 리포트",
	Long: `저널(SQLite)의 체결 내역과 자산 곡선으로 성과 지표를 다시 계산합니다.
리포트는 항상 새로 계산됩니다.

Example:
  go run ./cmd/quant report run_01HZX...
  go run ./cmd/quant report run_01HZX... --policy lifo
  go run ./cmd/quant report list`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "기록된 실행 목록",
	RunE:  runReportList,
}

var (
	reportPolicy string
	reportPairs  bool
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd)

	reportCmd.Flags().StringVar(&reportPolicy, "policy", "", "trade matching policy override (fifo|lifo|single_slot)")
	reportCmd.Flags().BoolVar(&reportPairs, "pairs", false, "print matched BUY/SELL pairs")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runID := args[0]

	e, err := loadEnv()
	if err != nil {
		return err
	}

	policy, err := e.strategy.MatchPolicy()
	if err != nil {
		return err
	}
	if reportPolicy != "" {
		if policy, err = audit.ParseMatchPolicy(reportPolicy); err != nil {
			return err
		}
	}

	j, err := journal.Open(e.cfg.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	info, err := j.Run(ctx, runID)
	if err != nil {
		return err
	}
	trades, err := j.Trades(ctx, runID)
	if err != nil {
		return err
	}
	curve, err := j.EquityCurve(ctx, runID)
	if err != nil {
		return err
	}

	analyzer := audit.NewAnalyzer(e.strategy.RiskFreeRate(), policy, e.log)
	PrintReport(analyzer.Analyze(audit.Run{
		RunID:          info.RunID,
		StrategyName:   info.StrategyName,
		InitialCapital: info.InitialCapital,
		Curve:          curve,
		Trades:         trades,
		ConfigHash:     info.ConfigHash,
	}))

	if reportPairs {
		widths := []int{12, 12, 12, 10, 12}
		PrintTableHeader([]string{"INSTRUMENT", "BUY", "SELL", "QTY", "PROFIT"}, widths)
		for _, p := range analyzer.Pairs(trades) {
			PrintTableRow([]string{
				p.Instrument,
				p.BuyDate.Format(contracts.DateLayout),
				p.SellDate.Format(contracts.DateLayout),
				fmt.Sprintf("%g", p.Quantity),
				formatNumber(p.Profit),
			}, widths)
		}
	}
	return nil
}

func runReportList(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	j, err := journal.Open(e.cfg.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Runs(cmd.Context())
	if err != nil {
		return err
	}

	widths := []int{32, 20, 16, 20}
	PrintTableHeader([]string{"RUN ID", "STRATEGY", "CAPITAL", "CREATED"}, widths)
	for _, r := range runs {
		PrintTableRow([]string{
			r.RunID,
			r.StrategyName,
			formatNumber(r.InitialCapital),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		}, widths)
	}
	return nil
}
