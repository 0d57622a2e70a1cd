//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/codewandler/chatlog-go/adapters/nats"
	"github.com/codewandler/chatlog-go/internal/config"
)

func TestChatLog_nats(t *testing.T) {
	cfg := &config.Config{Backend: config.BackendNats, RequestTimeout: 5 * time.Second}
	cfg.Nats.URL = nats.StartTestServer(t)
	cfg.Nats.Stream = "CHATLOG"
	runChatFlow(t, openStore(t, cfg))
}

func TestChatLog_postgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("chatlog"),
		tcpostgres.WithUsername("chatlog"),
		tcpostgres.WithPassword("chatlog"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := &config.Config{Backend: config.BackendPostgres}
	cfg.Postgres.DSN = dsn
	cfg.Postgres.Table = "chatlog_entries"
	runChatFlow(t, openStore(t, cfg))
}
