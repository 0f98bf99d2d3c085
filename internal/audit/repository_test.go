package audit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/pkg/config"
	"github.com/wonny/aegis-signal/pkg/database"
	"github.com/wonny/aegis-signal/pkg/id"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(&config.Config{Database: config.DatabaseConfig{URL: url, MaxConns: 2, MinConns: 1}})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestRepository_SaveAndGetReport(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db.Pool)
	ctx := context.Background()

	rep := BuildReport(Run{
		RunID:        id.RunID(),
		StrategyName: "integration",
		Curve:        curve(100, 120, 90, 130),
	}, DefaultRiskFreeRate, MatchFIFO)

	require.NoError(t, repo.SaveReport(ctx, rep))
	// upsert
	require.NoError(t, repo.SaveReport(ctx, rep))

	got, err := repo.GetReport(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, got.RunID)
	assert.InDelta(t, rep.MaxDrawdown, got.MaxDrawdown, 1e-12)
	assert.Equal(t, rep.StartDate, got.StartDate.UTC())

	_, err = repo.GetReport(ctx, "run_missing")
	assert.True(t, errors.Is(err, ErrReportNotFound))

	list, err := repo.ListReports(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}
