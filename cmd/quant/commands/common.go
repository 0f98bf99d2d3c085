package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wonny/aegis-signal/internal/prediction"
	"github.com/wonny/aegis-signal/internal/strategyconfig"
	"github.com/wonny/aegis-signal/pkg/config"
	"github.com/wonny/aegis-signal/pkg/database"
	"github.com/wonny/aegis-signal/pkg/httputil"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// env is what every command needs before doing work
type env struct {
	cfg          *config.Config
	log          *logger.Logger
	strategy     *strategyconfig.Config
	strategyYAML []byte
}

// loadEnv reads process config, builds the logger and loads the strategy YAML
func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := cfg.StrategyConfigPath
	if strategyPath != "" {
		path = strategyPath
	}
	strategy, raw, err := strategyconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load strategy %s: %w", path, err)
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithFields(map[string]interface{}{
			"code": w.Code,
		}).Warn(w.Message)
	}

	return &env{cfg: cfg, log: log, strategy: strategy, strategyYAML: raw}, nil
}

// openDB connects when DATABASE_URL is set; (nil, nil) otherwise
func (e *env) openDB() (*database.DB, error) {
	db, err := database.New(e.cfg)
	if errors.Is(err, database.ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// loadPredictions reads a prediction file or http(s) URL, or the database range when path is empty
func (e *env) loadPredictions(ctx context.Context, path, from, to string) (*prediction.Table, error) {
	if httputil.IsURL(path) {
		dir, err := os.MkdirTemp("", "aegis-predictions-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)

		local, err := httputil.New(e.log).Download(ctx, path, dir)
		if err != nil {
			return nil, fmt.Errorf("fetch predictions: %w", err)
		}
		table, err := prediction.LoadFile(local)
		if err != nil {
			return nil, fmt.Errorf("load predictions: %w", err)
		}
		e.logPredictions(path, table)
		return table, nil
	}

	if path != "" {
		table, err := prediction.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load predictions: %w", err)
		}
		e.logPredictions(path, table)
		return table, nil
	}

	db, err := e.openDB()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, errors.New("--predictions is required when DATABASE_URL is not set")
	}
	defer db.Close()

	start, end, err := parseRange(from, to)
	if err != nil {
		return nil, err
	}
	repo := prediction.NewRepository(db.Pool)
	if end.IsZero() {
		if end, err = repo.LatestDate(ctx); err != nil {
			return nil, err
		}
	}
	table, err := repo.LoadRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	e.logPredictions("postgres", table)
	return table, nil
}

func (e *env) logPredictions(source string, table *prediction.Table) {
	e.log.WithFields(map[string]interface{}{
		"source":      source,
		"index_order": table.Order().String(),
		"rows":        table.Len(),
		"skipped":     table.Skipped(),
		"dates":       len(table.Dates()),
		"instruments": len(table.Instruments()),
		"fingerprint": table.Fingerprint(),
	}).Info("Predictions loaded")
}
