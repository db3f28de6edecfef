package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// Claim assigns the ticket to actor. A ticket is claimed at most once.
func (s *TicketService) Claim(ctx context.Context, channelID string, actor domain.Actor) (*domain.Ticket, error) {
	unlock := s.locks.Lock(channelID)
	defer unlock()

	ticket, err := s.GetTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := claimable(ticket); err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.tickets.Update(ctx, channelID, repository.TicketPatch{
		ClaimedBy:      &actor.ID,
		LastActivityAt: &now,
		ExpectStatuses: []domain.TicketStatus{domain.TicketStatusOpen},
	})
	if errors.Is(err, repository.ErrPreconditionFailed) {
		current, reloadErr := s.reload(ctx, channelID)
		if reloadErr != nil {
			return nil, reloadErr
		}
		if err := claimable(current); err != nil {
			return nil, err
		}
		return nil, apperrors.NewNotOpen(string(current.Status))
	}
	if err != nil {
		return nil, s.storeErr("claim ticket", err)
	}

	s.refreshControls(ctx, updated)
	s.announce(ctx, channelID, fmt.Sprintf("Ticket claimed by %s.", mentionUser(actor.ID)))
	s.publishEvent(ctx, events.EventTicketClaimed, updated, actor, events.TicketClaimedPayload{ClaimedBy: actor.ID})
	return updated, nil
}

func claimable(t *domain.Ticket) error {
	if !t.IsOpen() {
		return apperrors.NewNotOpen(string(t.Status))
	}
	if t.ClaimedBy != nil {
		return apperrors.NewAlreadyClaimed(*t.ClaimedBy)
	}
	return nil
}

// SetPriority overwrites the ticket priority. Setting the current level
// again succeeds and changes nothing.
func (s *TicketService) SetPriority(ctx context.Context, channelID string, actor domain.Actor, level domain.TicketPriority) (*domain.Ticket, error) {
	if !level.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": level})
	}
	unlock := s.locks.Lock(channelID)
	defer unlock()

	ticket, err := s.GetTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsOpen() {
		return nil, apperrors.NewNotOpen(string(ticket.Status))
	}
	previous := ticket.Priority

	now := s.now()
	updated, err := s.tickets.Update(ctx, channelID, repository.TicketPatch{
		Priority:       &level,
		LastActivityAt: &now,
		ExpectStatuses: []domain.TicketStatus{domain.TicketStatusOpen},
	})
	if errors.Is(err, repository.ErrPreconditionFailed) {
		current, reloadErr := s.reload(ctx, channelID)
		if reloadErr != nil {
			return nil, reloadErr
		}
		return nil, apperrors.NewNotOpen(string(current.Status))
	}
	if err != nil {
		return nil, s.storeErr("set priority", err)
	}

	name := ChannelName(updated.Kind, s.ownerName(ctx, updated), updated.Number, updated.Priority)
	if err := s.platform.EditChannel(ctx, channelID, platform.ChannelEdit{Name: &name}); err != nil {
		s.warn("rename ticket channel failed", channelID, err)
	}
	s.refreshControls(ctx, updated)

	if previous == nil || *previous != level {
		s.publishEvent(ctx, events.EventTicketPriorityChanged, updated, actor, events.TicketPriorityChangedPayload{
			OldPriority: previous,
			NewPriority: level,
		})
	}
	return updated, nil
}

// Reopen returns a closed ticket to open, restoring the owner's access and
// the open controls. It fails once the ticket is deleted.
func (s *TicketService) Reopen(ctx context.Context, channelID string, actor domain.Actor) (*domain.Ticket, error) {
	unlock := s.locks.Lock(channelID)
	defer unlock()

	ticket, err := s.GetTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := reopenable(ticket); err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.tickets.Update(ctx, channelID, repository.TicketPatch{
		Status:         statusPtr(domain.TicketStatusOpen),
		LastActivityAt: &now,
		ExpectStatuses: []domain.TicketStatus{domain.TicketStatusClosed},
	})
	switch {
	case errors.Is(err, repository.ErrOpenTicketExists):
		other, findErr := s.tickets.FindOpen(ctx, ticket.GuildID, ticket.OwnerID, ticket.Kind)
		if findErr != nil {
			return nil, apperrors.NewAlreadyOpen("")
		}
		return nil, apperrors.NewAlreadyOpen(other.ChannelID)
	case errors.Is(err, repository.ErrPreconditionFailed):
		current, reloadErr := s.reload(ctx, channelID)
		if reloadErr != nil {
			return nil, reloadErr
		}
		if err := reopenable(current); err != nil {
			return nil, err
		}
		return nil, apperrors.NewNotClosed(string(current.Status))
	case err != nil:
		return nil, s.storeErr("reopen ticket", err)
	}

	if err := s.platform.EditChannel(ctx, channelID, platform.ChannelEdit{Overwrites: s.openOverwrites(updated)}); err != nil {
		s.warn("restore owner access failed", channelID, err)
	}
	if !s.refreshControls(ctx, updated) {
		s.sendControls(ctx, updated, mentionUser(updated.OwnerID))
	}
	s.announce(ctx, channelID, fmt.Sprintf("Ticket reopened by %s.", mentionUser(actor.ID)))
	s.publishEvent(ctx, events.EventTicketReopened, updated, actor, events.TicketReopenedPayload{OwnerID: updated.OwnerID})
	return updated, nil
}

func reopenable(t *domain.Ticket) error {
	switch t.Status {
	case domain.TicketStatusClosed:
		return nil
	case domain.TicketStatusDeleted:
		return apperrors.NewTicketDeleted(t.ChannelID)
	default:
		return apperrors.NewNotClosed(string(t.Status))
	}
}

// RefreshControls re-renders the control message of one ticket.
func (s *TicketService) RefreshControls(ctx context.Context, channelID string) error {
	unlock := s.locks.Lock(channelID)
	defer unlock()

	ticket, err := s.GetTicket(ctx, channelID)
	if err != nil {
		return err
	}
	s.refreshControls(ctx, ticket)
	return nil
}

// RefreshOpen re-renders the controls of every open ticket so idle times
// stay current. It returns how many messages were refreshed.
func (s *TicketService) RefreshOpen(ctx context.Context) (int, error) {
	hasControls := true
	tickets, err := s.ListTickets(ctx, repository.TicketFilter{
		Statuses:          []domain.TicketStatus{domain.TicketStatusOpen},
		HasControlMessage: &hasControls,
	})
	if err != nil {
		return 0, err
	}
	refreshed := 0
	for _, t := range tickets {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		if err := s.RefreshControls(ctx, t.ChannelID); err != nil {
			s.warn("refresh ticket controls failed", t.ChannelID, err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// refreshControls edits the control message in place. It reports false when
// there is no message to edit or the edit failed.
func (s *TicketService) refreshControls(ctx context.Context, ticket *domain.Ticket) bool {
	if ticket.ControlMessageID == nil {
		return false
	}
	embed, controls := RenderControls(ticket, s.now())
	err := s.platform.EditMessage(ctx, ticket.ChannelID, *ticket.ControlMessageID, platform.MessageEdit{
		Embed:    &embed,
		Controls: &controls,
	})
	if err != nil {
		s.logger.Warn("edit ticket controls failed",
			zap.String("channel_id", ticket.ChannelID),
			zap.String("message_id", *ticket.ControlMessageID),
			zap.Error(err))
		return false
	}
	return true
}

// announce posts a plain notice; failures are cosmetic.
func (s *TicketService) announce(ctx context.Context, channelID, content string) {
	if _, err := s.platform.SendMessage(ctx, channelID, platform.OutgoingMessage{Content: content}); err != nil {
		s.warn("post ticket notice failed", channelID, err)
	}
}

func (s *TicketService) ownerName(ctx context.Context, t *domain.Ticket) string {
	member, err := s.platform.ResolveMember(ctx, t.GuildID, t.OwnerID)
	if err != nil || member.Name == "" {
		return t.OwnerID
	}
	return member.Name
}
