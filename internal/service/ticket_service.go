package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TicketService is the ticket lifecycle engine. Every path that mutates a
// ticket, whether triggered by an interaction or a background sweep, goes
// through it so the Store stays the source of truth and the Platform follows.
type TicketService struct {
	tickets    repository.TicketRepository
	platform   platform.Platform
	dispatcher events.Dispatcher
	archive    transcript.Archiver
	staff      *StaffResolver
	bindings   *ControlBindings
	cfg        config.TicketConfig
	logger     *zap.Logger

	now   func() time.Time
	sleep func(time.Duration)

	locks     *keyedMutex
	countdown sync.WaitGroup

	suspectsMu sync.Mutex
	suspects   map[string]orphanSuspect
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Platform   platform.Platform
	Dispatcher events.Dispatcher
	// Archive is optional.
	Archive  transcript.Archiver
	Bindings *ControlBindings
	Config   config.TicketConfig
	Logger   *zap.Logger
	// Now and Sleep replace the wall clock in tests.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:    deps.TicketRepo,
		platform:   deps.Platform,
		dispatcher: deps.Dispatcher,
		archive:    deps.Archive,
		staff:      NewStaffResolver(deps.Platform, deps.Config.StaffRoleID),
		bindings:   deps.Bindings,
		cfg:        deps.Config,
		logger:     deps.Logger,
		now:        deps.Now,
		sleep:      deps.Sleep,
		locks:      newKeyedMutex(),
		suspects:   make(map[string]orphanSuspect),
	}
	if s.bindings == nil {
		s.bindings = NewControlBindings()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	return s
}

// Staff exposes the staff resolver used for permission checks.
func (s *TicketService) Staff() *StaffResolver {
	return s.staff
}

// Bindings exposes the control binding table.
func (s *TicketService) Bindings() *ControlBindings {
	return s.bindings
}

// Wait blocks until every running close countdown has finished.
func (s *TicketService) Wait() {
	s.countdown.Wait()
}

// GetTicket loads a ticket by channel id.
func (s *TicketService) GetTicket(ctx context.Context, channelID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, s.storeErr("get ticket", err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching filter.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, s.storeErr("list tickets", err)
	}
	return tickets, nil
}

// Stats aggregates counts for a guild.
func (s *TicketService) Stats(ctx context.Context, guildID string) (*domain.TicketStats, error) {
	stats, err := s.tickets.Stats(ctx, guildID)
	if err != nil {
		return nil, s.storeErr("ticket stats", err)
	}
	return stats, nil
}

// PostPanel sends the category picker to channelID.
func (s *TicketService) PostPanel(ctx context.Context, channelID string) (string, error) {
	id, err := s.platform.SendMessage(ctx, channelID, PanelMessage())
	if err != nil {
		return "", apperrors.NewPlatformError("send panel", err)
	}
	return id, nil
}

// storeErr maps repository errors; ErrNotFound becomes a NOT_FOUND error.
func (s *TicketService) storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", nil)
	}
	s.logger.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return apperrors.NewStoreError(op, err)
}

// reload reads the ticket again after a guarded update lost a race.
func (s *TicketService) reload(ctx context.Context, channelID string) (*domain.Ticket, error) {
	return s.GetTicket(ctx, channelID)
}

func (s *TicketService) warn(msg string, channelID string, err error) {
	s.logger.Warn(msg, zap.String("channel_id", channelID), zap.Error(err))
}

func (s *TicketService) publishEvent(ctx context.Context, eventType events.EventType, ticket *domain.Ticket, actor domain.Actor, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ChannelID: ticket.ChannelID,
		GuildID:   ticket.GuildID,
		Actor:     events.ActorFrom(actor),
		Timestamp: s.now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func statusPtr(st domain.TicketStatus) *domain.TicketStatus {
	return &st
}

func strPtr(v string) *string {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
