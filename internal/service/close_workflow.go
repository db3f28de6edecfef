package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// transcriptOutcome records what happened to the transcript of a close.
type transcriptOutcome struct {
	Delivered bool
	Archived  bool
	Notes     []string
}

func (o transcriptOutcome) summary() string {
	var lines []string
	if o.Delivered {
		lines = append(lines, "Transcript delivered to the log channel.")
	}
	if o.Archived {
		lines = append(lines, "Transcript archived.")
	}
	return strings.Join(append(lines, o.Notes...), "\n")
}

// Close runs the close workflow: mark closed, lock the channel, capture and
// deliver the transcript, post the closing notice, then count down and delete
// the channel in the background. Only the Store update can fail the call.
func (s *TicketService) Close(ctx context.Context, channelID string, actor domain.Actor, reason string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("a close reason is required", nil)
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

	now := s.now()
	closed, err := s.tickets.Update(ctx, channelID, repository.TicketPatch{
		Status:         statusPtr(domain.TicketStatusClosed),
		LastActivityAt: &now,
		ClosedAt:       &now,
		ClosedBy:       &actor.ID,
		CloseReason:    &reason,
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
		return nil, s.storeErr("close ticket", err)
	}

	if err := s.platform.EditChannel(ctx, channelID, platform.ChannelEdit{Overwrites: s.closedOverwrites(closed)}); err != nil {
		s.warn("lock ticket channel failed", channelID, err)
	}
	s.refreshControls(ctx, closed)

	outcome := s.captureTranscript(ctx, closed, actor)

	seconds := int(s.cfg.CloseCountdown() / time.Second)
	noticeID, err := s.platform.SendMessage(ctx, channelID, platform.OutgoingMessage{
		Content: countdownText(seconds),
		Embed: &platform.Embed{
			Title:       "Ticket closed",
			Description: reason,
			Fields: []platform.EmbedField{
				{Name: "Closed by", Value: mentionUser(actor.ID), Inline: true},
				{Name: "Transcript", Value: outcome.summary()},
			},
			Color: colorClosed,
		},
	})
	if err != nil {
		s.warn("post closing notice failed", channelID, err)
		noticeID = ""
	}

	s.publishEvent(ctx, events.EventTicketClosed, closed, actor, events.TicketClosedPayload{
		Reason:              reason,
		TranscriptDelivered: outcome.Delivered,
		TranscriptArchived:  outcome.Archived,
	})
	s.logger.Info("ticket closed",
		zap.String("channel_id", channelID),
		zap.String("actor_id", actor.ID),
		zap.String("reason", reason),
		zap.Bool("transcript_delivered", outcome.Delivered))

	// Once started, the countdown runs to deletion even if the caller's
	// context ends.
	s.countdown.Add(1)
	go s.runCountdown(context.WithoutCancel(ctx), closed, actor, noticeID, seconds)
	return closed, nil
}

func (s *TicketService) captureTranscript(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) transcriptOutcome {
	var outcome transcriptOutcome

	rendered, err := transcript.Render(ticket, s.platform.History(ctx, ticket.ChannelID))
	if err != nil {
		s.warn("capture transcript failed", ticket.ChannelID, err)
		outcome.Notes = append(outcome.Notes, "Transcript could not be captured.")
		return outcome
	}

	if s.cfg.LogChannelID == "" {
		outcome.Notes = append(outcome.Notes, "Transcript not delivered: no log channel is configured.")
	} else {
		_, err := s.platform.SendMessage(ctx, s.cfg.LogChannelID, platform.OutgoingMessage{
			Content: fmt.Sprintf("Transcript of %s (owner %s), closed by %s: %s",
				ticket.Label(), mentionUser(ticket.OwnerID), mentionUser(actor.ID), deref(ticket.CloseReason)),
			Files: []platform.File{{
				Name:        rendered.FileName,
				ContentType: "text/plain; charset=utf-8",
				Data:        rendered.Data,
			}},
		})
		if err != nil {
			s.warn("deliver transcript failed", ticket.ChannelID, err)
			outcome.Notes = append(outcome.Notes, "Transcript delivery to the log channel failed.")
		} else {
			outcome.Delivered = true
		}
	}

	if s.archive != nil {
		key, err := s.archive.Archive(ctx, ticket, rendered)
		if err != nil {
			s.warn("archive transcript failed", ticket.ChannelID, err)
			outcome.Notes = append(outcome.Notes, "Transcript archive upload failed.")
		} else {
			outcome.Archived = true
			s.logger.Debug("transcript archived", zap.String("channel_id", ticket.ChannelID), zap.String("key", key))
		}
	}
	return outcome
}

// runCountdown edits the notice once per tick, then finalizes. Edit failures
// are swallowed so they never block deletion.
func (s *TicketService) runCountdown(ctx context.Context, ticket *domain.Ticket, actor domain.Actor, noticeID string, seconds int) {
	defer s.countdown.Done()
	for remaining := seconds - 1; remaining >= 0; remaining-- {
		s.sleep(time.Second)
		if noticeID == "" {
			continue
		}
		content := countdownText(remaining)
		if err := s.platform.EditMessage(ctx, ticket.ChannelID, noticeID, platform.MessageEdit{Content: &content}); err != nil {
			s.logger.Debug("countdown edit failed", zap.String("channel_id", ticket.ChannelID), zap.Error(err))
		}
	}
	s.finalize(ctx, ticket, actor, "ticket closed: "+deref(ticket.CloseReason), "close")
}

// finalize marks a closed ticket deleted, then deletes its channel. The
// update only applies to the close that produced ticket: a ticket reopened in
// the meantime, or closed again since, keeps its channel.
func (s *TicketService) finalize(ctx context.Context, ticket *domain.Ticket, actor domain.Actor, reason, source string) {
	channelID := ticket.ChannelID
	unlock := s.locks.Lock(channelID)
	defer unlock()

	deleted, err := s.tickets.Update(ctx, channelID, repository.TicketPatch{
		Status:         statusPtr(domain.TicketStatusDeleted),
		ExpectStatuses: []domain.TicketStatus{domain.TicketStatusClosed},
		ExpectClosedAt: ticket.ClosedAt,
	})
	if errors.Is(err, repository.ErrPreconditionFailed) {
		s.logger.Info("ticket no longer in this close, keeping channel", zap.String("channel_id", channelID))
		return
	}
	if err != nil {
		s.logger.Error("mark ticket deleted failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	s.bindings.Unbind(channelID)

	channelDeleted := true
	if err := s.platform.DeleteChannel(ctx, channelID, reason); err != nil && !errors.Is(err, platform.ErrNotFound) {
		// The record stays deleted; reconciliation retries the channel.
		s.warn("delete ticket channel failed", channelID, err)
		channelDeleted = false
	}
	s.publishEvent(ctx, events.EventTicketDeleted, deleted, actor, events.TicketDeletedPayload{
		ChannelDeleted: channelDeleted,
		Source:         source,
	})
}

func countdownText(seconds int) string {
	switch {
	case seconds <= 0:
		return "Deleting this channel now."
	case seconds == 1:
		return "This channel will be deleted in 1 second."
	default:
		return fmt.Sprintf("This channel will be deleted in %d seconds.", seconds)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
