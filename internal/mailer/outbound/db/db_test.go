package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("gomailer"),
		postgres.WithUsername("gomailer"),
		postgres.WithPassword("gomailer"),
		postgres.WithInitScripts(filepath.Join("..", "..", "..", "..", "migrations", "0001_mail_delivery_logs.up.sql")),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestDB_DeliveryLogs(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	// Arrange
	store := NewDB(newPostgres(t), instrument.NewNoop())
	ctx := context.Background()
	at := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	first := entity.DeliveryLog{
		ID: 2, JobID: "job-1", Queue: "mail", Provider: "SMTP", Subject: "Hi",
		Recipients: []string{"a@example.com"}, Status: entity.DeliveryStatusRequeued,
		Attempt: 0, ErrorCode: "timeout", Error: "i/o timeout", CreatedAt: at,
	}
	second := entity.DeliveryLog{
		ID: 1, JobID: "job-1", Queue: "mail", Provider: "SMTP", Subject: "Hi",
		Recipients: []string{"a@example.com"}, Status: entity.DeliveryStatusSent,
		Attempt: 1, MessageID: "<m@example.com>", CreatedAt: at.Add(time.Minute),
	}

	// Act
	require.NoError(t, store.CreateDeliveryLog(ctx, first))
	require.NoError(t, store.CreateDeliveryLog(ctx, second))
	dup := store.CreateDeliveryLog(ctx, second)
	logs, err := store.ListDeliveryLogs(ctx, "job-1")
	_, missing := store.ListDeliveryLogs(ctx, "job-2")

	// Assert
	assert.ErrorIs(t, dup, goerror.ErrConflict)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, entity.DeliveryStatusRequeued, logs[0].Status)
	assert.Equal(t, "timeout", logs[0].ErrorCode)
	assert.Equal(t, entity.DeliveryStatusSent, logs[1].Status)
	assert.Equal(t, []string{"a@example.com"}, logs[1].Recipients)
	assert.True(t, at.Add(time.Minute).Equal(logs[1].CreatedAt))
	assert.ErrorIs(t, missing, goerror.ErrNotFound)
}
