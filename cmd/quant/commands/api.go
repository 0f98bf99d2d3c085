package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/api"
	"github.com/wonny/aegis-signal/internal/api/handlers"
	"github.com/wonny/aegis-signal/internal/audit"
	"github.com/wonny/aegis-signal/internal/journal"
	"github.com/wonny/aegis-signal/internal/marketdata"
	"github.com/wonny/aegis-signal/internal/portfolio"
	"github.com/wonny/aegis-signal/internal/selection"
	sig "github.com/wonny/aegis-signal/internal/signal"
	"github.com/wonny/aegis-signal/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                        - Health check
  GET  /api/pool?date=                - 날짜의 리밸런싱 풀 / 목표 비중
  GET  /api/signals?date=             - 날짜의 종목별 결정
  GET  /api/signals/{instrument}      - 종목 시그널 (from, to, all)
  GET  /api/reports/{run_id}          - 성과 리포트 (redis → postgres → 저널 재계산)

--predictions 를 지정하면 시그널/풀을 메모리에서 계산하고,
DATABASE_URL 이 있으면 저장된 풀과 리포트를 조회합니다.

Example:
  go run ./cmd/quant api --predictions pred.parquet --bars bars.parquet
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort        string
	apiPredictions string
	apiBars        string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().StringVar(&apiPredictions, "predictions", "", "prediction file served from memory")
	apiCmd.Flags().StringVar(&apiBars, "bars", "", "price bars file for session calendars")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	if apiPort != "" {
		e.cfg.Port = apiPort
	}
	log := e.log

	period, err := e.strategy.RebalancePeriod()
	if err != nil {
		return err
	}
	policy, err := e.strategy.MatchPolicy()
	if err != nil {
		return err
	}

	var h api.Handlers

	// 1. Optional postgres
	db, err := e.openDB()
	if err != nil {
		return err
	}
	var targetStore handlers.TargetStore
	var reportStore handlers.ReportStore
	if db != nil {
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		targetStore = selection.NewRepository(db.Pool)
		reportStore = audit.NewRepository(db.Pool)
		log.Info("Connected to database")
	}

	// 2. Optional in-memory signals / pool
	var pool *portfolio.Pool
	if apiPredictions != "" {
		params, err := e.strategy.SignalParams()
		if err != nil {
			return err
		}
		table, err := e.loadPredictions(ctx, apiPredictions, "", "")
		if err != nil {
			return err
		}
		engine, err := sig.NewEngine(params, table, log)
		if err != nil {
			return err
		}
		if pool, err = portfolio.NewPool(engine.Selector(), time.Time{}, time.Time{}, period, log); err != nil {
			return err
		}

		var universe marketdata.Universe
		if apiBars != "" {
			if universe, err = marketdata.LoadFile(apiBars); err != nil {
				return err
			}
		}
		h.Signals = handlers.NewSignalHandler(engine, universe, log)
	}
	if pool != nil || targetStore != nil {
		h.Pool = handlers.NewPoolHandler(targetStore, pool, period, log)
	}

	// 3. Reports: redis → postgres → journal
	rc, err := redis.New(e.cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, report cache disabled")
		rc = nil
	}
	var cache *redis.Cache
	if rc != nil {
		defer rc.Close()
		cache = redis.NewCache(rc, "aegis", e.cfg.Redis.TTL)
	}

	j, err := journal.Open(e.cfg.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	analyzer := audit.NewAnalyzer(e.strategy.RiskFreeRate(), policy, log)
	h.Reports = handlers.NewReportHandler(cache, reportStore, j, analyzer, log)

	// 4. Router + server
	router := api.NewRouter(h, api.NewLimiter(e.cfg), log)
	server := api.New(e.cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", e.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
