package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/prediction"
	"github.com/wonny/aegis-signal/internal/scheduler"
	"github.com/wonny/aegis-signal/internal/scheduler/jobs"
	"github.com/wonny/aegis-signal/internal/selection"
	"github.com/wonny/aegis-signal/pkg/database"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

등록되는 작업:
- pool_refresh: 평일 decision_time_local (최신 예측으로 리밸런싱 풀 갱신)

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler run pool_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	sched, db, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer db.Close()

	sched.Start()

	PrintSuccess("Scheduler started")
	for _, jobName := range sched.GetAllJobs() {
		next, _ := sched.NextRun(jobName)
		fmt.Printf("  - %s (next: %s)\n", jobName, next.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, db, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer db.Close()

	for name, stat := range sched.GetJobStats() {
		fmt.Printf("  - %s [%s]\n", name, stat.Schedule)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	sched, db, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer db.Close()

	result, err := sched.RunJob(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempts: %s", result.JobName, result.Attempts, result.Error)
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %s", result.JobName, result.Duration))
	return nil
}

func initScheduler(ctx context.Context) (*scheduler.Scheduler, *database.DB, error) {
	e, err := loadEnv()
	if err != nil {
		return nil, nil, err
	}

	db, err := e.openDB()
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		return nil, nil, fmt.Errorf("scheduler requires DATABASE_URL")
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	params, err := e.strategy.SignalParams()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	period, err := e.strategy.RebalancePeriod()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	spec, err := e.strategy.CronSpec()
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	sched := scheduler.New(e.log)
	refresh := jobs.NewPoolRefreshJob(
		prediction.NewRepository(db.Pool),
		selection.NewRepository(db.Pool),
		params.TopK, period, spec, e.log,
	)
	if err := sched.AddJob(refresh); err != nil {
		db.Close()
		return nil, nil, err
	}

	return sched, db, nil
}
