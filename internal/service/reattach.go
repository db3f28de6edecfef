package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

// ReattachReport summarizes a reattachment pass.
type ReattachReport struct {
	Bound   int `json:"bound"`
	Skipped int `json:"skipped"`
}

// Reattach rebinds the controls of every open or closed ticket to its stored
// control message after a restart. It never creates messages or channels and
// is safe to run repeatedly; missing messages are logged and skipped.
func (s *TicketService) Reattach(ctx context.Context) (ReattachReport, error) {
	var report ReattachReport
	hasControls := true
	tickets, err := s.ListTickets(ctx, repository.TicketFilter{
		Statuses:          []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusClosed},
		HasControlMessage: &hasControls,
	})
	if err != nil {
		return report, err
	}

	for i := range tickets {
		t := &tickets[i]
		messageID := *t.ControlMessageID
		if _, err := s.platform.FetchMessage(ctx, t.ChannelID, messageID); err != nil {
			s.logger.Warn("control message unavailable, skipping reattach",
				zap.String("channel_id", t.ChannelID),
				zap.String("message_id", messageID),
				zap.Error(err))
			report.Skipped++
			continue
		}

		embed, controls := RenderControls(t, s.now())
		if err := s.platform.EditMessage(ctx, t.ChannelID, messageID, platform.MessageEdit{Embed: &embed, Controls: &controls}); err != nil {
			s.warn("re-render controls during reattach failed", t.ChannelID, err)
		}
		s.bindings.Bind(messageID, t.ChannelID)
		report.Bound++
	}

	s.logger.Info("ticket controls reattached", zap.Int("bound", report.Bound), zap.Int("skipped", report.Skipped))
	return report, nil
}
