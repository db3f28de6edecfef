package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// OpenRequest identifies who asks for a ticket of which kind.
type OpenRequest struct {
	GuildID   string
	OwnerID   string
	OwnerName string
	Kind      domain.TicketKind
}

// OpenTicket issues a new ticket: number, private channel, record, controls.
// A second request for the same owner and kind fails with ALREADY_OPEN
// pointing at the existing channel, including when both requests race.
func (s *TicketService) OpenTicket(ctx context.Context, req OpenRequest) (*domain.Ticket, error) {
	if !req.Kind.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket kind", map[string]any{"kind": req.Kind})
	}
	categoryID, ok := s.cfg.CategoryFor(req.Kind)
	if !ok {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("%s category", req.Kind))
	}
	if s.staff.RoleID() == "" {
		return nil, apperrors.NewConfigurationError("STAFF_ROLE_ID")
	}

	existing, err := s.tickets.FindOpen(ctx, req.GuildID, req.OwnerID, req.Kind)
	switch {
	case err == nil:
		return nil, apperrors.NewAlreadyOpen(existing.ChannelID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, s.storeErr("find open ticket", err)
	}

	// Numbers burned by a later failure leave a gap; they are never reissued.
	num, err := s.tickets.NextTicketNumber(ctx, req.Kind)
	if err != nil {
		return nil, s.storeErr("next ticket number", err)
	}

	ticket := &domain.Ticket{
		GuildID: req.GuildID,
		OwnerID: req.OwnerID,
		Kind:    req.Kind,
		Number:  num,
	}
	channelID, err := s.platform.CreateChannel(ctx, platform.ChannelSpec{
		GuildID:    req.GuildID,
		Name:       ChannelName(req.Kind, req.OwnerName, num, nil),
		ParentID:   categoryID,
		Topic:      fmt.Sprintf("%s opened by %s", ticket.Label(), mentionUser(req.OwnerID)),
		Overwrites: s.openOverwrites(ticket),
		Reason:     "ticket opened",
	})
	if err != nil {
		s.logger.Warn("create ticket channel failed", zap.String("owner_id", req.OwnerID), zap.Int("ticket_num", num), zap.Error(err))
		return nil, apperrors.NewPlatformError("create channel", err)
	}

	ticket.ChannelID = channelID
	ticket.CreatedAt = s.now()
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrOpenTicketExists) {
			return nil, s.loseOpenRace(ctx, req, channelID)
		}
		// The channel is now orphaned; reconciliation removes it.
		s.logger.Error("persist ticket failed after channel creation",
			zap.String("channel_id", channelID), zap.Int("ticket_num", num), zap.Error(err))
		return nil, apperrors.NewStoreError("create ticket", err)
	}

	s.sendControls(ctx, ticket, fmt.Sprintf("%s %s", mentionUser(req.OwnerID), mentionRole(s.staff.RoleID())))

	s.publishEvent(ctx, events.EventTicketOpened, ticket, domain.Actor{ID: req.OwnerID, Name: req.OwnerName}, events.TicketOpenedPayload{
		OwnerID: req.OwnerID,
		Kind:    req.Kind,
		Number:  num,
	})
	s.logger.Info("ticket opened",
		zap.String("channel_id", channelID),
		zap.String("owner_id", req.OwnerID),
		zap.String("kind", string(req.Kind)),
		zap.Int("ticket_num", num))
	return ticket, nil
}

// loseOpenRace removes the channel created by the request that lost the
// uniqueness race and points the caller at the winner.
func (s *TicketService) loseOpenRace(ctx context.Context, req OpenRequest, channelID string) error {
	if err := s.platform.DeleteChannel(ctx, channelID, "duplicate ticket request"); err != nil && !errors.Is(err, platform.ErrNotFound) {
		s.warn("delete duplicate ticket channel failed", channelID, err)
	}
	winner, err := s.tickets.FindOpen(ctx, req.GuildID, req.OwnerID, req.Kind)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The winner closed in between; the caller may retry.
			return apperrors.NewAlreadyOpen("")
		}
		return s.storeErr("find open ticket", err)
	}
	return apperrors.NewAlreadyOpen(winner.ChannelID)
}

// sendControls posts the control message and persists its id. Failures are
// logged; reconciliation sends controls for open tickets that lack them.
func (s *TicketService) sendControls(ctx context.Context, ticket *domain.Ticket, content string) {
	embed, controls := RenderControls(ticket, s.now())
	messageID, err := s.platform.SendMessage(ctx, ticket.ChannelID, platform.OutgoingMessage{
		Content:  content,
		Embed:    &embed,
		Controls: &controls,
	})
	if err != nil {
		s.warn("send ticket controls failed", ticket.ChannelID, err)
		return
	}
	s.bindings.Bind(messageID, ticket.ChannelID)

	updated, err := s.tickets.Update(ctx, ticket.ChannelID, repository.TicketPatch{ControlMessageID: &messageID})
	if err != nil {
		s.logger.Error("persist control message id failed",
			zap.String("channel_id", ticket.ChannelID), zap.String("message_id", messageID), zap.Error(err))
		return
	}
	*ticket = *updated
}

func (s *TicketService) openOverwrites(t *domain.Ticket) []platform.Overwrite {
	return []platform.Overwrite{
		{TargetID: t.GuildID, Target: platform.TargetRole, Deny: platform.PermAll},
		{TargetID: t.OwnerID, Target: platform.TargetMember, Allow: platform.PermAll},
		{TargetID: s.staff.RoleID(), Target: platform.TargetRole, Allow: platform.PermAll},
	}
}

func (s *TicketService) closedOverwrites(t *domain.Ticket) []platform.Overwrite {
	owner := platform.Overwrite{TargetID: t.OwnerID, Target: platform.TargetMember}
	if s.cfg.ClosedOwnerAccess == config.OwnerAccessNone {
		owner.Deny = platform.PermAll
	} else {
		owner.Allow = platform.PermView | platform.PermReadHistory
		owner.Deny = platform.PermSend | platform.PermAttach
	}
	return []platform.Overwrite{
		{TargetID: t.GuildID, Target: platform.TargetRole, Deny: platform.PermAll},
		owner,
		{TargetID: s.staff.RoleID(), Target: platform.TargetRole, Allow: platform.PermAll},
	}
}
