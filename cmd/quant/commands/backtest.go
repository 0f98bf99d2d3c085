package commands

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/audit"
	"github.com/wonny/aegis-signal/internal/backtest"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/journal"
	"github.com/wonny/aegis-signal/internal/marketdata"
	"github.com/wonny/aegis-signal/internal/portfolio"
	"github.com/wonny/aegis-signal/internal/signal"
	"github.com/wonny/aegis-signal/internal/strategyconfig"
	"github.com/wonny/aegis-signal/pkg/id"
	"github.com/wonny/aegis-signal/pkg/redis"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "백테스팅 (시그널 → 체결 → 성과)",
	Long: `가격 바를 순서대로 재생하며 시그널 엔진에 결정을 묻고,
체결 내역과 자산 곡선을 저널(SQLite)에 기록한 뒤 성과 지표를 계산합니다.

Example:
  go run ./cmd/quant backtest run --predictions pred.parquet --bars bars.parquet
  go run ./cmd/quant backtest run --predictions pred.csv --bars bars.csv --from 2024-01-01 --save`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `지정된 기간 동안 백테스트를 실행합니다.

Flags:
  --predictions 예측 파일 (.csv/.parquet, 비우면 postgres)
  --bars        가격 바 파일 (.csv/.parquet, 필수)
  --from        시작 날짜 (YYYY-MM-DD)
  --to          종료 날짜 (YYYY-MM-DD)
  --capital     초기 자본 (기본: 전략 YAML)
  --save        리포트를 postgres / redis 에 저장`,
		RunE: runBacktest,
	}

	// Flags
	backtestPredictions string
	backtestBars        string
	backtestFrom        string
	backtestTo          string
	backtestCapital     float64
	backtestSave        bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	backtestRunCmd.Flags().StringVar(&backtestPredictions, "predictions", "", "prediction file or URL (.csv/.parquet); empty = postgres")
	backtestRunCmd.Flags().StringVar(&backtestBars, "bars", "", "price bars file (.csv/.parquet)")
	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "시작 날짜 (YYYY-MM-DD)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "종료 날짜 (YYYY-MM-DD)")
	backtestRunCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "초기 자본 (0 = 전략 YAML)")
	backtestRunCmd.Flags().BoolVar(&backtestSave, "save", false, "리포트를 postgres / redis 에 저장")

	backtestRunCmd.MarkFlagRequired("bars")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	s := e.strategy

	params, err := s.SignalParams()
	if err != nil {
		return err
	}
	period, err := s.RebalancePeriod()
	if err != nil {
		return err
	}
	policy, err := s.MatchPolicy()
	if err != nil {
		return err
	}
	from, to, err := parseRange(backtestFrom, backtestTo)
	if err != nil {
		return err
	}

	table, err := e.loadPredictions(ctx, backtestPredictions, backtestFrom, backtestTo)
	if err != nil {
		return err
	}
	universe, err := marketdata.LoadFile(backtestBars)
	if err != nil {
		return err
	}

	engine, err := signal.NewEngine(params, table, e.log)
	if err != nil {
		return err
	}

	var weights contracts.WeightProvider
	if s.Pool.UseWeights {
		pool, err := portfolio.NewPool(engine.Selector(), from, to, period, e.log)
		if err != nil {
			return err
		}
		weights = pool
	}

	snapshot, err := strategyconfig.NewDecisionSnapshot(s, e.strategyYAML, gitCommit(), table.Fingerprint())
	if err != nil {
		return err
	}

	j, err := journal.Open(e.cfg.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	capital := s.Backtest.InitialCapital
	if backtestCapital > 0 {
		capital = backtestCapital
	}

	runID := id.RunID()
	if err := j.RecordRun(ctx, journal.RunInfo{
		RunID:          runID,
		StrategyName:   s.Meta.StrategyID,
		InitialCapital: capital,
		ConfigHash:     snapshot.ConfigHash,
		Predictions:    snapshot.DataSnapshotID,
	}); err != nil {
		return err
	}

	analyzer := audit.NewAnalyzer(s.RiskFreeRate(), policy, e.log)
	bt := backtest.NewEngine(analyzer, j, e.log)

	result, err := bt.Run(ctx, backtest.Config{
		RunID:          runID,
		StrategyName:   s.Meta.StrategyID,
		StartDate:      from,
		EndDate:        to,
		InitialCapital: capital,
		Costs:          s.Costs(),
		PositionPct:    s.Backtest.PositionPct,
		ConfigHash:     snapshot.ConfigHash,
	}, universe, engine, weights)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	PrintReport(result.Report)
	PrintKeyValue("Sessions", fmt.Sprintf("%d", result.Sessions), 16)
	PrintKeyValue("Duration", result.Duration.String(), 16)
	PrintKeyValue("Journal", e.cfg.JournalPath, 16)
	PrintKeyValue("Predictions", snapshot.DataSnapshotID, 16)

	if !backtestSave {
		return nil
	}
	return saveReport(cmd, e, result.Report)
}

// saveReport stores the report in postgres (when configured) and warms the redis cache
func saveReport(cmd *cobra.Command, e *env, report contracts.AnalyticsReport) error {
	ctx := cmd.Context()

	db, err := e.openDB()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		if err := audit.NewRepository(db.Pool).SaveReport(ctx, report); err != nil {
			return err
		}
		PrintSuccess("Report saved to postgres")
	}

	rc, err := redis.New(e.cfg)
	if err != nil {
		e.log.WithError(err).Warn("Redis unavailable, report not cached")
		return nil
	}
	defer rc.Close()
	if err := redis.NewCache(rc, "aegis", e.cfg.Redis.TTL).Set(ctx, redis.ReportKey(report.RunID), report); err != nil {
		e.log.WithError(err).Warn("Report cache write failed")
	}
	return nil
}

// gitCommit returns the short HEAD hash, or "" outside a git checkout
func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
