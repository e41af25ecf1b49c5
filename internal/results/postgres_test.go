package results_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/little-star/internal/platform/database"
	"github.com/p-n-ai/little-star/internal/results"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("learn"),
		postgres.WithUsername("learn"),
		postgres.WithPassword("learn"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(ctx, dsn, database.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db.Pool
}

func TestPostgresLogger_RoundTrip(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	logger := results.NewPostgresLogger(pool)
	require.NoError(t, logger.EnsureSchema(ctx))
	// Idempotent.
	require.NoError(t, logger.EnsureSchema(ctx))

	session := uuid.NewString()
	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, logger.LogResult(ctx, results.GameResult{
		SessionID: session, Subject: "english", UnitID: "b1_starter",
		Mode: results.ModeQuiz, Score: 7, Total: 5, CreatedAt: base,
	}))
	require.NoError(t, logger.LogResult(ctx, results.GameResult{
		SessionID: session, Subject: "english", UnitID: "b1_starter",
		Mode: results.ModeSpelling, Score: 4, Total: 5, CreatedAt: base.Add(time.Minute),
	}))

	recent, err := logger.Recent(ctx, session, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, results.ModeSpelling, recent[0].Mode)
	assert.Equal(t, session, recent[1].SessionID)
	assert.Equal(t, 7, recent[1].Score)

	other, err := logger.Recent(ctx, uuid.NewString(), 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
