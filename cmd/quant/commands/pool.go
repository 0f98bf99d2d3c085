package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/portfolio"
	"github.com/wonny/aegis-signal/internal/selection"
)

// poolCmd represents the pool command
var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "리밸런싱 Top-K 풀 생성",
	Long: `리밸런싱 주기(day/week/month)마다 Top-K 종목과 동일 비중을 계산합니다.

Example:
  go run ./cmd/quant pool --predictions pred.parquet
  go run ./cmd/quant pool --from 2024-01-01 --to 2024-03-31 --save`,
	RunE: runPool,
}

var (
	poolPredictions string
	poolFrom        string
	poolTo          string
	poolSave        bool
)

func init() {
	rootCmd.AddCommand(poolCmd)

	poolCmd.Flags().StringVar(&poolPredictions, "predictions", "", "prediction file or URL (.csv/.parquet); empty = postgres")
	poolCmd.Flags().StringVar(&poolFrom, "from", "", "start date (YYYY-MM-DD)")
	poolCmd.Flags().StringVar(&poolTo, "to", "", "end date (YYYY-MM-DD)")
	poolCmd.Flags().BoolVar(&poolSave, "save", false, "store targets in postgres (selection.topk_pools)")
}

func runPool(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	params, err := e.strategy.SignalParams()
	if err != nil {
		return err
	}
	period, err := e.strategy.RebalancePeriod()
	if err != nil {
		return err
	}
	from, to, err := parseRange(poolFrom, poolTo)
	if err != nil {
		return err
	}

	table, err := e.loadPredictions(ctx, poolPredictions, poolFrom, poolTo)
	if err != nil {
		return err
	}
	sel, err := selection.NewSelector(table, params.TopK, e.log)
	if err != nil {
		return err
	}
	pool, err := portfolio.NewPool(sel, from, to, period, e.log)
	if err != nil {
		return err
	}

	targets := pool.Targets()
	PrintHeader(fmt.Sprintf("Pool (%s, %d rebalances)", period, len(targets)))
	widths := []int{12, 5, 12, 10, 8}
	PrintTableHeader([]string{"REBALANCE", "RANK", "INSTRUMENT", "SCORE", "WEIGHT"}, widths)
	for _, t := range targets {
		for _, p := range t.Positions {
			PrintTableRow([]string{
				t.Date.Format(contracts.DateLayout),
				fmt.Sprintf("%d", p.Rank),
				p.Code,
				fmt.Sprintf("%+.4f", p.Score),
				fmt.Sprintf("%.2f%%", p.Weight*100),
			}, widths)
		}
		if t.Cash > 0 {
			PrintTableRow([]string{t.Date.Format(contracts.DateLayout), "", "(cash)", "", fmt.Sprintf("%.2f%%", t.Cash*100)}, widths)
		}
	}

	if !poolSave {
		return nil
	}

	db, err := e.openDB()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("--save requires DATABASE_URL")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	if err := selection.NewRepository(db.Pool).SaveTargets(ctx, targets); err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("Saved %d targets", len(targets)))
	return nil
}
