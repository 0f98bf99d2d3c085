package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/pkg/config"
	"github.com/wonny/aegis-signal/pkg/database"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "PostgreSQL 관리",
}

var dbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "PostgreSQL 연결 테스트",
	Long: `데이터베이스 연결을 테스트하고 풀 통계를 표시합니다.

Example:
  go run ./cmd/quant db check`,
	RunE: runDBCheck,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "스키마 생성 (forecast / selection / audit)",
	RunE:  runDBMigrate,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbCheckCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

func connect() (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n", maskPassword(cfg.Database.URL))

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	return db, nil
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("❌ Failed to ping database: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Ping successful (%v)", time.Since(start)))

	stats := db.Pool.Stat()
	fmt.Println("📊 Connection Pool Statistics:")
	PrintKeyValue("Max Connections", fmt.Sprintf("%d", stats.MaxConns()), 20)
	PrintKeyValue("Total Connections", fmt.Sprintf("%d", stats.TotalConns()), 20)
	PrintKeyValue("Acquired", fmt.Sprintf("%d", stats.AcquiredConns()), 20)
	PrintKeyValue("Idle", fmt.Sprintf("%d", stats.IdleConns()), 20)
	PrintKeyValue("Acquire Count", fmt.Sprintf("%d", stats.AcquireCount()), 20)
	PrintKeyValue("Acquire Duration", stats.AcquireDuration().String(), 20)
	return nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context()); err != nil {
		return err
	}
	PrintSuccess("Schema applied")
	return nil
}

// maskPassword hides the password part of a database URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
