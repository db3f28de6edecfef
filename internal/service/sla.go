package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

// RecordMessage tracks activity for a message posted in a ticket channel and
// records the first staff response time once. Messages outside ticket
// channels are ignored.
func (s *TicketService) RecordMessage(ctx context.Context, msg platform.InboundMessage) error {
	unlock := s.locks.Lock(msg.ChannelID)
	defer unlock()

	ticket, err := s.tickets.GetByChannelID(ctx, msg.ChannelID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return s.storeErr("get ticket", err)
	}
	if ticket.Status == domain.TicketStatusDeleted {
		return nil
	}

	now := s.now()
	ticket, err = s.tickets.Update(ctx, msg.ChannelID, repository.TicketPatch{LastActivityAt: &now})
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return nil
	}
	if err != nil {
		return s.storeErr("touch ticket", err)
	}

	if !ticket.IsOpen() || ticket.FirstStaffResponseSeconds != nil || msg.AuthorID == ticket.OwnerID {
		return nil
	}
	staff, err := s.staff.IsStaff(ctx, ticket.GuildID, msg.AuthorID, msg.AuthorRoleIDs)
	if err != nil {
		s.warn("staff check failed", msg.ChannelID, err)
		return nil
	}
	if !staff {
		return nil
	}

	seconds := max(int64(now.Sub(ticket.CreatedAt).Seconds()), 0)
	updated, err := s.tickets.Update(ctx, msg.ChannelID, repository.TicketPatch{
		FirstStaffResponseSeconds: &seconds,
		ExpectStatuses:            []domain.TicketStatus{domain.TicketStatusOpen},
	})
	if errors.Is(err, repository.ErrPreconditionFailed) {
		// Already recorded or no longer open.
		return nil
	}
	if err != nil {
		return s.storeErr("record first response", err)
	}

	s.logger.Info("first staff response recorded",
		zap.String("channel_id", msg.ChannelID),
		zap.String("staff_id", msg.AuthorID),
		zap.Int64("seconds", seconds))
	s.refreshControls(ctx, updated)
	s.publishEvent(ctx, events.EventTicketFirstResponse, updated, domain.Actor{ID: msg.AuthorID, Name: msg.AuthorName, IsStaff: true},
		events.TicketFirstResponsePayload{StaffID: msg.AuthorID, Seconds: seconds})
	return nil
}
