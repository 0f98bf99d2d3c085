package selection

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/pkg/config"
	"github.com/wonny/aegis-signal/pkg/database"
)

func TestRepository_SaveAndGetTarget(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(&config.Config{Database: config.DatabaseConfig{URL: url, MaxConns: 2, MinConns: 1}})
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.Migrate(ctx))

	repo := NewRepository(db.Pool)
	rd := time.Date(1999, 1, 4, 0, 0, 0, 0, time.UTC)
	target := contracts.TargetPortfolio{
		Date:   rd,
		Period: contracts.RebalanceWeek,
		Positions: []contracts.TargetPosition{
			{Code: "A", Rank: 1, Score: 0.3, Weight: 0.5},
			{Code: "B", Rank: 2, Score: 0.2, Weight: 0.5},
		},
	}
	require.NoError(t, repo.SaveTargets(ctx, []contracts.TargetPortfolio{target}))

	got, err := repo.GetTarget(ctx, rd.AddDate(0, 0, 3), contracts.RebalanceWeek)
	require.NoError(t, err)
	assert.Equal(t, rd, got.Date)
	assert.Len(t, got.Positions, 2)
	assert.Equal(t, "A", got.Positions[0].Code)
	assert.InDelta(t, 0.0, got.Cash, 1e-12)

	_, err = repo.GetTarget(ctx, rd.AddDate(-1, 0, 0), contracts.RebalanceWeek)
	assert.True(t, errors.Is(err, ErrPoolNotFound))
}
