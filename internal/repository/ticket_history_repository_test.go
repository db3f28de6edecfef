package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func runHistoryContract(t *testing.T, repo TicketHistoryRepository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	opened := &domain.TicketHistory{
		ID: uuid.NewString(), ChannelID: "c1", GuildID: "g1", EventType: "ticket_opened",
		ActorID: "u1", Payload: map[string]any{"kind": "support"}, CreatedAt: base,
	}
	closed := &domain.TicketHistory{
		ID: uuid.NewString(), ChannelID: "c1", GuildID: "g1", EventType: "ticket_closed",
		ActorID: "system", ActorSystem: true, Payload: map[string]any{}, CreatedAt: base.Add(time.Minute),
	}
	other := &domain.TicketHistory{
		ID: uuid.NewString(), ChannelID: "c2", GuildID: "g1", EventType: "ticket_opened",
		ActorID: "u2", Payload: map[string]any{}, CreatedAt: base,
	}
	for _, e := range []*domain.TicketHistory{closed, opened, other, opened} {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := repo.ListByChannel(ctx, "c1")
	if err != nil {
		t.Fatalf("ListByChannel: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2 (duplicate append ignored)", len(got))
	}
	if got[0].EventType != "ticket_opened" || got[1].EventType != "ticket_closed" || !got[1].ActorSystem {
		t.Errorf("entries = %+v", got)
	}
	if got[0].Payload["kind"] != "support" {
		t.Errorf("payload = %v", got[0].Payload)
	}

	none, err := repo.ListByChannel(ctx, "missing")
	if err != nil || len(none) != 0 {
		t.Fatalf("ListByChannel(missing) = %v, %v", none, err)
	}
}

func TestMemoryTicketHistoryRepository(t *testing.T) {
	runHistoryContract(t, NewMemoryTicketHistoryRepository())
}
