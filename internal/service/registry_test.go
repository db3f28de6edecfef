package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func TestOpenTicketCreatesChannelAndControls(t *testing.T) {
	h := newHarness(t)
	ticket := h.open("a", "A", domain.TicketKindSupport)

	if ticket.Number != 1 || ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("ticket = %+v", ticket)
	}
	ch, ok := h.platform.channel(ticket.ChannelID)
	if !ok {
		t.Fatal("ticket channel was not created")
	}
	if ch.Name != "support-a-0001" || ch.ParentID != "cat-support" {
		t.Errorf("channel = %q under %q, want support-a-0001 under cat-support", ch.Name, ch.ParentID)
	}

	var ownerAllowed, staffAllowed, everyoneDenied bool
	for _, ow := range ch.Overwrites {
		switch {
		case ow.TargetID == "a" && ow.Target == platform.TargetMember:
			ownerAllowed = ow.Allow == platform.PermAll
		case ow.TargetID == testStaffRole:
			staffAllowed = ow.Allow == platform.PermAll
		case ow.TargetID == testGuild:
			everyoneDenied = ow.Deny&platform.PermView != 0
		}
	}
	if !ownerAllowed || !staffAllowed || !everyoneDenied {
		t.Errorf("overwrites = %+v", ch.Overwrites)
	}

	if ticket.ControlMessageID == nil {
		t.Fatal("control message id not persisted")
	}
	if stored := h.ticket(ticket.ChannelID); stored.ControlMessageID == nil || *stored.ControlMessageID != *ticket.ControlMessageID {
		t.Errorf("stored control message id = %v", stored.ControlMessageID)
	}
	if bound, ok := h.svc.Bindings().Resolve(*ticket.ControlMessageID); !ok || bound != ticket.ChannelID {
		t.Errorf("control message bound to %q (%v)", bound, ok)
	}
	msg, ok := h.platform.message(ticket.ChannelID, *ticket.ControlMessageID)
	if !ok || msg.Controls == nil || len(msg.Controls.Rows) != 2 {
		t.Errorf("control message = %+v", msg)
	}
	if got := h.eventsOf(events.EventTicketOpened); len(got) != 1 {
		t.Errorf("opened events = %d, want 1", len(got))
	}
}

func TestOpenTicketRejectsSecondOpenForSameKind(t *testing.T) {
	h := newHarness(t)
	first := h.open("a", "A", domain.TicketKindSupport)

	_, err := h.svc.OpenTicket(context.Background(), OpenRequest{GuildID: testGuild, OwnerID: "a", OwnerName: "A", Kind: domain.TicketKindSupport})
	assertCode(t, err, apperrors.CodeAlreadyOpen)
	if got := detail(err, "channel_id"); got != first.ChannelID {
		t.Errorf("AlreadyOpen points at %v, want %s", got, first.ChannelID)
	}
	if created, _ := h.platform.counts(); created != 1 {
		t.Errorf("channels created = %d, want 1", created)
	}

	other := h.open("a", "A", domain.TicketKindClaim)
	if other.Number != 1 {
		t.Errorf("claim number = %d, want 1 (numbering is per kind)", other.Number)
	}
}

func TestConcurrentOpenTicketHasOneWinner(t *testing.T) {
	h := newHarness(t)
	const racers = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*domain.Ticket
		losers  []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := h.svc.OpenTicket(context.Background(), OpenRequest{GuildID: testGuild, OwnerID: "a", OwnerName: "A", Kind: domain.TicketKindSupport})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				losers = append(losers, err)
				return
			}
			winners = append(winners, ticket)
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("winners = %d, want 1", len(winners))
	}
	for _, err := range losers {
		assertCode(t, err, apperrors.CodeAlreadyOpen)
		if got := detail(err, "channel_id"); got != winners[0].ChannelID {
			t.Errorf("loser points at %v, want %s", got, winners[0].ChannelID)
		}
	}
	if live := h.platform.liveChannels("cat-support"); len(live) != 1 || live[0] != winners[0].ChannelID {
		t.Errorf("live ticket channels = %v, want only %s", live, winners[0].ChannelID)
	}
}

func TestOpenTicketConfigurationErrors(t *testing.T) {
	h := newHarness(t, withConfig(func(c *config.TicketConfig) {
		c.CategoryIDs[domain.TicketKindCustom] = ""
	}))
	_, err := h.svc.OpenTicket(context.Background(), OpenRequest{GuildID: testGuild, OwnerID: "a", Kind: domain.TicketKindCustom})
	assertCode(t, err, apperrors.CodeConfiguration)

	h = newHarness(t, withConfig(func(c *config.TicketConfig) { c.StaffRoleID = "" }))
	_, err = h.svc.OpenTicket(context.Background(), OpenRequest{GuildID: testGuild, OwnerID: "a", Kind: domain.TicketKindSupport})
	assertCode(t, err, apperrors.CodeConfiguration)

	if created, _ := h.platform.counts(); created != 0 {
		t.Errorf("channels created = %d, want 0", created)
	}
}

func TestOpenTicketPlatformFailureBurnsNumber(t *testing.T) {
	h := newHarness(t)
	h.platform.failCreate = errors.New("missing permissions")
	_, err := h.svc.OpenTicket(context.Background(), OpenRequest{GuildID: testGuild, OwnerID: "a", OwnerName: "A", Kind: domain.TicketKindSupport})
	assertCode(t, err, apperrors.CodePlatform)

	h.platform.failCreate = nil
	ticket := h.open("a", "A", domain.TicketKindSupport)
	if ticket.Number != 2 {
		t.Errorf("number after failed open = %d, want 2", ticket.Number)
	}
}

// failingCreateRepo fails Create to leave an orphaned channel behind.
type failingCreateRepo struct {
	repository.TicketRepository
}

func (r failingCreateRepo) Create(context.Context, *domain.Ticket) error {
	return errors.New("connection reset")
}

func TestOpenTicketStoreFailureIsReported(t *testing.T) {
	h := newHarness(t, withRepo(failingCreateRepo{repository.NewMemoryTicketRepository()}))
	_, err := h.svc.OpenTicket(context.Background(), OpenRequest{GuildID: testGuild, OwnerID: "a", OwnerName: "A", Kind: domain.TicketKindSupport})
	assertCode(t, err, apperrors.CodeStore)

	live := h.platform.liveChannels("cat-support")
	if len(live) != 1 {
		t.Fatalf("live channels = %v, want the orphan", live)
	}
	if _, sends := h.platform.counts(); sends != 0 {
		t.Errorf("messages sent = %d, want none after store failure", sends)
	}
}

func TestOpenTicketWithoutControlsStillSucceeds(t *testing.T) {
	h := newHarness(t)
	h.platform.failNextSends = 1
	ticket := h.open("a", "A", domain.TicketKindSupport)
	if ticket.ControlMessageID != nil {
		t.Errorf("control message id = %v, want nil", *ticket.ControlMessageID)
	}
}
