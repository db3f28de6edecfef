package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	testGuild     = "g1"
	testStaffRole = "staff-role"
	testLog       = "log"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t        *testing.T
	svc      *TicketService
	repo     repository.TicketRepository
	platform *fakePlatform
	clock    *fakeClock
	cfg      config.TicketConfig

	mu     sync.Mutex
	events []events.Event
}

type harnessOption func(*harnessOptions)

type harnessOptions struct {
	cfg   func(*config.TicketConfig)
	sleep func(time.Duration)
	repo  repository.TicketRepository
}

func withConfig(fn func(*config.TicketConfig)) harnessOption {
	return func(o *harnessOptions) { o.cfg = fn }
}

func withSleep(fn func(time.Duration)) harnessOption {
	return func(o *harnessOptions) { o.sleep = fn }
}

func withRepo(repo repository.TicketRepository) harnessOption {
	return func(o *harnessOptions) { o.repo = repo }
}

func testConfig() config.TicketConfig {
	return config.TicketConfig{
		StaffRoleID: testStaffRole,
		CategoryIDs: map[domain.TicketKind]string{
			domain.TicketKindClaim:   "cat-claim",
			domain.TicketKindCustom:  "cat-custom",
			domain.TicketKindSupport: "cat-support",
		},
		LogChannelID:            testLog,
		InactivityThresholdMins: 60,
		CloseCountdownSeconds:   5,
		ReconcileSeconds:        600,
		ClosedOwnerAccess:       config.OwnerAccessReadOnly,
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	o := harnessOptions{sleep: func(time.Duration) {}}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := testConfig()
	if o.cfg != nil {
		o.cfg(&cfg)
	}
	repo := o.repo
	if repo == nil {
		repo = repository.NewMemoryTicketRepository()
	}

	fake := newFakePlatform()
	fake.addChannel(testLog, testGuild, "", "ticket-log")
	fake.addMember(platform.Member{UserID: "a", Name: "A"})
	fake.addMember(platform.Member{UserID: "staff-1", Name: "Staff One", RoleIDs: []string{testStaffRole}})

	h := &harness{
		t:        t,
		repo:     repo,
		platform: fake,
		clock:    &fakeClock{now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)},
		cfg:      cfg,
	}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, e)
			return nil
		})
	}
	h.svc = NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Platform:   fake,
		Dispatcher: dispatcher,
		Config:     cfg,
		Now:        h.clock.Now,
		Sleep:      o.sleep,
	})
	t.Cleanup(h.svc.Wait)
	return h
}

// restart builds a second service over the same store and platform, as a
// new process would.
func (h *harness) restart() *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo: h.repo,
		Platform:   h.platform,
		Config:     h.cfg,
		Now:        h.clock.Now,
		Sleep:      func(time.Duration) {},
	})
}

func (h *harness) open(owner, name string, kind domain.TicketKind) *domain.Ticket {
	h.t.Helper()
	ticket, err := h.svc.OpenTicket(context.Background(), OpenRequest{GuildID: testGuild, OwnerID: owner, OwnerName: name, Kind: kind})
	if err != nil {
		h.t.Fatalf("OpenTicket(%s, %s): %v", owner, kind, err)
	}
	return ticket
}

func (h *harness) ticket(channelID string) *domain.Ticket {
	h.t.Helper()
	ticket, err := h.repo.GetByChannelID(context.Background(), channelID)
	if err != nil {
		h.t.Fatalf("GetByChannelID(%s): %v", channelID, err)
	}
	return ticket
}

func (h *harness) eventsOf(et events.EventType) []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []events.Event
	for _, e := range h.events {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

var staffActor = domain.Actor{ID: "staff-1", Name: "Staff One", IsStaff: true}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var de *apperrors.DomainError
	if !errors.As(err, &de) || de.Code != code {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func detail(err error, key string) any {
	return apperrors.ToDomainError(err).Details[key]
}
