package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/marketdata"
	"github.com/wonny/aegis-signal/internal/signal"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "예측 점수 → BUY/SELL 시그널 계산",
	Long: `예측 테이블과 (선택) 가격 캘린더로 시그널을 계산합니다.
시그널은 저장하지 않고 매번 새로 계산합니다.

--date 지정 시 해당 날짜의 모든 종목 결정을 출력하고,
미지정 시 전체 기간의 BUY/SELL 이벤트를 출력합니다.

Example:
  go run ./cmd/quant signals --predictions pred.parquet --date 2024-03-04
  go run ./cmd/quant signals --predictions pred.csv --bars bars.parquet --workers 8`,
	RunE: runSignals,
}

var (
	signalsPredictions string
	signalsBars        string
	signalsDate        string
	signalsFrom        string
	signalsTo          string
	signalsWorkers     int
)

func init() {
	rootCmd.AddCommand(signalsCmd)

	signalsCmd.Flags().StringVar(&signalsPredictions, "predictions", "", "prediction file or URL (.csv/.parquet); empty = postgres")
	signalsCmd.Flags().StringVar(&signalsBars, "bars", "", "price bars file (.csv/.parquet) for session calendars")
	signalsCmd.Flags().StringVar(&signalsDate, "date", "", "single date (YYYY-MM-DD)")
	signalsCmd.Flags().StringVar(&signalsFrom, "from", "", "start date for postgres load (YYYY-MM-DD)")
	signalsCmd.Flags().StringVar(&signalsTo, "to", "", "end date for postgres load (YYYY-MM-DD)")
	signalsCmd.Flags().IntVar(&signalsWorkers, "workers", runtime.NumCPU(), "parallel instrument workers")
}

func runSignals(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	params, err := e.strategy.SignalParams()
	if err != nil {
		return err
	}

	table, err := e.loadPredictions(ctx, signalsPredictions, signalsFrom, signalsTo)
	if err != nil {
		return err
	}
	engine, err := signal.NewEngine(params, table, e.log)
	if err != nil {
		return err
	}

	widths := []int{12, 12, 10, 6, 6}
	header := []string{"DATE", "INSTRUMENT", "SCORE", "TOP-K", "ACTION"}

	if signalsDate != "" {
		date, err := contracts.ParseDate(signalsDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		PrintHeader("Signals " + signalsDate)
		PrintTableHeader(header, widths)
		for _, entry := range table.Slice(date) {
			printSignal(engine.Evaluate(entry.Instrument, date), widths)
		}
		return nil
	}

	var universe marketdata.Universe
	if signalsBars != "" {
		if universe, err = marketdata.LoadFile(signalsBars); err != nil {
			return err
		}
	}

	reqs := make([]signal.SeriesRequest, 0, len(table.Instruments()))
	for _, inst := range table.Instruments() {
		req := signal.SeriesRequest{Instrument: inst, SeriesID: inst}
		if s, ok := universe[inst]; ok {
			req.Sessions, req.Version = s.Sessions(), s.Version()
		} else if series, ok := table.Series(inst); ok {
			if universe != nil {
				e.log.Warnf("no price bars for %s, using prediction dates as sessions", inst)
			}
			req.Sessions = series.Dates()
		}
		reqs = append(reqs, req)
	}

	all, err := engine.SignalsParallel(ctx, reqs, signalsWorkers)
	if err != nil {
		return err
	}

	emitted := signal.Emitted(all)
	e.log.WithFields(map[string]interface{}{
		"instruments": len(reqs),
		"events":      len(emitted),
		"topk_sets":   engine.Selector().Builds(),
	}).Info("Signals computed")
	PrintHeader(fmt.Sprintf("Signals (%d BUY/SELL events)", len(emitted)))
	PrintTableHeader(header, widths)
	for _, s := range emitted {
		printSignal(s, widths)
	}
	return nil
}

func printSignal(s contracts.Signal, widths []int) {
	in := ""
	if s.InTopK {
		in = "✓"
	}
	PrintTableRow([]string{
		s.Session.Format(contracts.DateLayout),
		s.Instrument,
		fmt.Sprintf("%+.4f", s.Score),
		in,
		s.Action.String(),
	}, widths)
}
