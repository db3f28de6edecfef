package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// InactivityReason is the close reason used for idle tickets.
func InactivityReason(minutes int) string {
	return fmt.Sprintf("Closed automatically after %d minutes of inactivity.", minutes)
}

// CloseIdle closes every open ticket idle past the configured threshold,
// acting as the system. Tickets closed by an earlier sweep no longer match
// the query, so a ticket is never closed twice.
func (s *TicketService) CloseIdle(ctx context.Context) (int, error) {
	threshold := s.cfg.InactivityThreshold()
	cutoff := s.now().Add(-threshold)
	idle, err := s.ListTickets(ctx, repository.TicketFilter{
		Statuses:           []domain.TicketStatus{domain.TicketStatusOpen},
		LastActivityBefore: &cutoff,
	})
	if err != nil {
		return 0, err
	}

	reason := InactivityReason(int(threshold.Minutes()))
	closed := 0
	for _, t := range idle {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		_, err := s.Close(ctx, t.ChannelID, domain.SystemActor(), reason)
		switch {
		case err == nil:
			closed++
		case apperrors.HasCode(err, apperrors.CodeNotOpen):
			// Closed by staff between the query and now.
		default:
			s.logger.Warn("inactivity close failed", zap.String("channel_id", t.ChannelID), zap.Error(err))
		}
	}
	return closed, nil
}
