package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestReattachRebindsWithoutNewMessages(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, withSleep(func(time.Duration) { <-release }))
	defer close(release)
	ctx := context.Background()

	open := h.open("a", "A", domain.TicketKindSupport)
	closed := h.open("b", "B", domain.TicketKindSupport)
	if _, err := h.svc.Close(ctx, closed.ChannelID, staffActor, "done"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	before, sendsBefore := h.platform.counts()
	editsBefore := mustMessage(t, h, open).Edits

	restarted := h.restart()
	if restarted.Bindings().Len() != 0 {
		t.Fatal("fresh process should start without bindings")
	}
	report, err := restarted.Reattach(ctx)
	if err != nil {
		t.Fatalf("Reattach: %v", err)
	}
	if report.Bound != 2 || report.Skipped != 0 {
		t.Errorf("report = %+v, want 2 bound", report)
	}
	if ch, ok := restarted.Bindings().Resolve(*open.ControlMessageID); !ok || ch != open.ChannelID {
		t.Errorf("open ticket binding = %q, %v", ch, ok)
	}
	if _, ok := restarted.Bindings().Resolve(*closed.ControlMessageID); !ok {
		t.Error("closed ticket with reopen control was not rebound")
	}

	after, sendsAfter := h.platform.counts()
	if after != before || sendsAfter != sendsBefore {
		t.Errorf("reattach created channels (%d->%d) or messages (%d->%d)", before, after, sendsBefore, sendsAfter)
	}
	if got := mustMessage(t, h, open).Edits; got != editsBefore+1 {
		t.Errorf("control edits = %d, want %d", got, editsBefore+1)
	}

	// Running it again is harmless.
	if _, err := restarted.Reattach(ctx); err != nil {
		t.Fatalf("second Reattach: %v", err)
	}
	if restarted.Bindings().Len() != 2 {
		t.Errorf("bindings = %d, want 2", restarted.Bindings().Len())
	}
}

func TestReattachSkipsMissingMessages(t *testing.T) {
	h := newHarness(t)
	ticket := h.open("a", "A", domain.TicketKindSupport)
	gone := h.open("b", "B", domain.TicketKindSupport)
	h.platform.dropMessage(ticket.ChannelID, *ticket.ControlMessageID)
	h.platform.vanish(gone.ChannelID)

	report, err := h.restart().Reattach(context.Background())
	if err != nil {
		t.Fatalf("Reattach: %v", err)
	}
	if report.Bound != 0 || report.Skipped != 2 {
		t.Errorf("report = %+v, want 2 skipped", report)
	}
}

func mustMessage(t *testing.T, h *harness, ticket *domain.Ticket) fakeMessage {
	t.Helper()
	msg, ok := h.platform.message(ticket.ChannelID, *ticket.ControlMessageID)
	if !ok {
		t.Fatalf("control message of %s missing", ticket.ChannelID)
	}
	return msg
}
