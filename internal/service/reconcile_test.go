package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

func TestReconcileMarksVanishedChannelsDeleted(t *testing.T) {
	h := newHarness(t)
	ticket := h.open("a", "A", domain.TicketKindSupport)
	h.platform.vanish(ticket.ChannelID)
	h.clock.Advance(time.Second)

	report, err := h.svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.TicketsMarked != 1 {
		t.Errorf("report = %+v", report)
	}
	if got := h.ticket(ticket.ChannelID).Status; got != domain.TicketStatusDeleted {
		t.Errorf("status = %s, want deleted", got)
	}
	// The owner can open a fresh ticket now.
	h.open("a", "A", domain.TicketKindSupport)
}

func TestReconcileSkipsTicketsNewerThanListing(t *testing.T) {
	h := newHarness(t)
	ticket := h.open("a", "A", domain.TicketKindSupport)
	h.platform.vanish(ticket.ChannelID)

	// Same instant as creation: the listing may predate the channel.
	report, err := h.svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.TicketsMarked != 0 {
		t.Errorf("report = %+v, want ticket left alone", report)
	}
}

func TestReconcileSendsMissingControls(t *testing.T) {
	h := newHarness(t)
	h.platform.failNextSends = 1
	ticket := h.open("a", "A", domain.TicketKindSupport)
	h.clock.Advance(time.Second)

	report, err := h.svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.ControlsSent != 1 {
		t.Fatalf("report = %+v", report)
	}
	got := h.ticket(ticket.ChannelID)
	if got.ControlMessageID == nil {
		t.Fatal("control message id still missing")
	}
	if ch, ok := h.svc.Bindings().Resolve(*got.ControlMessageID); !ok || ch != ticket.ChannelID {
		t.Errorf("binding = %q, %v", ch, ok)
	}
}

func TestReconcileReapsOrphansAfterGracePeriod(t *testing.T) {
	h := newHarness(t)
	h.open("a", "A", domain.TicketKindSupport)
	h.platform.addChannel("orphan", testGuild, "cat-support", "support-x-0009")
	h.platform.addChannel("unrelated", testGuild, "cat-general", "general")
	ctx := context.Background()

	h.clock.Advance(time.Second)
	report, err := h.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.OrphansSuspected != 1 || report.OrphansDeleted != 0 {
		t.Fatalf("first pass = %+v", report)
	}

	h.clock.Advance(5 * time.Minute)
	if report, _ = h.svc.Reconcile(ctx); report.OrphansDeleted != 0 {
		t.Fatalf("orphan deleted inside grace period: %+v", report)
	}

	h.clock.Advance(5 * time.Minute)
	if report, _ = h.svc.Reconcile(ctx); report.OrphansDeleted != 1 {
		t.Fatalf("third pass = %+v, want orphan deleted", report)
	}
	if _, live := h.platform.channel("orphan"); live {
		t.Error("orphan channel still exists")
	}
	if _, live := h.platform.channel("unrelated"); !live {
		t.Error("channel outside ticket categories was deleted")
	}
}

func TestReconcileFinalizesInterruptedCountdowns(t *testing.T) {
	h := newHarness(t)
	ticket := h.open("a", "A", domain.TicketKindSupport)
	ctx := context.Background()

	// Closed by a process that died before its countdown finished.
	now := h.clock.Now()
	closed := domain.TicketStatusClosed
	reason := "Resolved"
	if _, err := h.repo.Update(ctx, ticket.ChannelID, repository.TicketPatch{Status: &closed, ClosedAt: &now, CloseReason: &reason}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	h.clock.Advance(time.Minute)
	if report, _ := h.svc.Reconcile(ctx); report.TicketsFinalized != 0 {
		t.Fatalf("finalized a recent close: %+v", report)
	}

	h.clock.Advance(15 * time.Minute)
	report, err := h.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.TicketsFinalized != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got := h.ticket(ticket.ChannelID).Status; got != domain.TicketStatusDeleted {
		t.Errorf("status = %s", got)
	}
	if _, live := h.platform.channel(ticket.ChannelID); live {
		t.Error("channel not deleted")
	}
}

func TestReconcileIncludesConfiguredGuildWithoutTickets(t *testing.T) {
	h := newHarness(t)
	h.platform.addChannel("stray", "g2", "cat-claim", "claim-x-0001")

	report, err := h.svc.Reconcile(context.Background(), "g2")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Guilds != 1 || report.OrphansSuspected != 1 {
		t.Errorf("report = %+v", report)
	}
}
