package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/persistence"
)

func TestPostgresTicketRepository(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := persistence.RunMigrations(ctx, pool, filepath.Join("..", "..", "migrations"), zap.NewNop()); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	runContract(t, func(t *testing.T) TicketRepository {
		if _, err := pool.Exec(ctx, `TRUNCATE tickets, ticket_counters`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return NewTicketRepository(pool)
	})

	t.Run("history", func(t *testing.T) {
		if _, err := pool.Exec(ctx, `TRUNCATE ticket_history`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		runHistoryContract(t, NewTicketHistoryRepository(pool))
	})
}
