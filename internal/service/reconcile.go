package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// orphanSuspect is a ticket-category channel without a ticket record.
type orphanSuspect struct {
	guildID   string
	firstSeen time.Time
}

// ReconcileReport counts the repairs made by one reconciliation pass.
type ReconcileReport struct {
	Guilds            int `json:"guilds"`
	ChannelsRedeleted int `json:"channels_redeleted"`
	TicketsMarked     int `json:"tickets_marked_deleted"`
	TicketsFinalized  int `json:"tickets_finalized"`
	ControlsSent      int `json:"controls_sent"`
	OrphansSuspected  int `json:"orphans_suspected"`
	OrphansDeleted    int `json:"orphans_deleted"`
}

// Reconcile repairs divergence between the Store and the Platform for every
// known guild plus extraGuilds.
func (s *TicketService) Reconcile(ctx context.Context, extraGuilds ...string) (ReconcileReport, error) {
	var report ReconcileReport
	all, err := s.ListTickets(ctx, repository.TicketFilter{})
	if err != nil {
		return report, err
	}

	byGuild := make(map[string][]domain.Ticket)
	for _, g := range extraGuilds {
		if g != "" {
			byGuild[g] = nil
		}
	}
	for _, t := range all {
		byGuild[t.GuildID] = append(byGuild[t.GuildID], t)
	}
	guilds := make([]string, 0, len(byGuild))
	for g := range byGuild {
		guilds = append(guilds, g)
	}
	sort.Strings(guilds)

	var errs []error
	for _, guildID := range guilds {
		if err := s.reconcileGuild(ctx, guildID, &report); err != nil {
			s.logger.Warn("reconcile guild failed", zap.String("guild_id", guildID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		report.Guilds++
	}
	s.logger.Info("reconciliation finished", zap.Any("report", report))
	return report, errors.Join(errs...)
}

func (s *TicketService) reconcileGuild(ctx context.Context, guildID string, report *ReconcileReport) error {
	// Tickets created after this instant may not have their channel in the
	// listing below and are left for the next pass.
	listedAt := s.now()
	channels := make(map[string]platform.Channel)
	for _, kind := range domain.TicketKinds {
		parentID, ok := s.cfg.CategoryFor(kind)
		if !ok {
			continue
		}
		listed, err := s.platform.ListChannels(ctx, guildID, parentID)
		if err != nil {
			return apperrors.NewPlatformError("list channels", err)
		}
		for _, ch := range listed {
			channels[ch.ID] = ch
		}
	}

	guild := guildID
	tickets, err := s.ListTickets(ctx, repository.TicketFilter{GuildID: &guild})
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(tickets))
	staleClose := s.cfg.CloseCountdown() + s.cfg.ReconcileInterval()
	for i := range tickets {
		t := &tickets[i]
		known[t.ChannelID] = true
		if _, managed := s.cfg.CategoryFor(t.Kind); !managed || !t.CreatedAt.Before(listedAt) {
			continue
		}
		_, exists := channels[t.ChannelID]

		switch {
		case t.Status == domain.TicketStatusDeleted && exists:
			if err := s.platform.DeleteChannel(ctx, t.ChannelID, "ticket already deleted"); err != nil && !errors.Is(err, platform.ErrNotFound) {
				s.warn("retry channel delete failed", t.ChannelID, err)
				continue
			}
			report.ChannelsRedeleted++
		case t.Status != domain.TicketStatusDeleted && !exists:
			if s.markVanished(ctx, t) {
				report.TicketsMarked++
			}
		case t.Status == domain.TicketStatusClosed && t.ClosedAt != nil && listedAt.Sub(*t.ClosedAt) > staleClose:
			// The countdown for this ticket did not survive a restart.
			s.finalize(ctx, t, domain.SystemActor(), "ticket closed: "+deref(t.CloseReason), "reconcile")
			report.TicketsFinalized++
		case t.Status == domain.TicketStatusOpen && t.ControlMessageID == nil:
			if s.resendControls(ctx, t.ChannelID) {
				report.ControlsSent++
			}
		}
	}

	s.reapOrphans(ctx, guildID, channels, known, listedAt, report)
	return nil
}

// markVanished marks a ticket whose channel no longer exists as deleted.
func (s *TicketService) markVanished(ctx context.Context, t *domain.Ticket) bool {
	unlock := s.locks.Lock(t.ChannelID)
	defer unlock()

	updated, err := s.tickets.Update(ctx, t.ChannelID, repository.TicketPatch{
		Status:         statusPtr(domain.TicketStatusDeleted),
		ExpectStatuses: []domain.TicketStatus{t.Status},
	})
	if err != nil {
		if !errors.Is(err, repository.ErrPreconditionFailed) {
			s.logger.Error("mark vanished ticket deleted failed", zap.String("channel_id", t.ChannelID), zap.Error(err))
		}
		return false
	}
	s.bindings.Unbind(t.ChannelID)
	s.publishEvent(ctx, events.EventTicketDeleted, updated, domain.SystemActor(), events.TicketDeletedPayload{
		ChannelDeleted: true,
		Source:         "reconcile",
	})
	return true
}

func (s *TicketService) resendControls(ctx context.Context, channelID string) bool {
	unlock := s.locks.Lock(channelID)
	defer unlock()

	current, err := s.GetTicket(ctx, channelID)
	if err != nil || !current.IsOpen() || current.ControlMessageID != nil {
		return false
	}
	s.sendControls(ctx, current, mentionUser(current.OwnerID))
	return current.ControlMessageID != nil
}

// reapOrphans deletes ticket-category channels that have had no ticket
// record for at least one reconcile interval.
func (s *TicketService) reapOrphans(ctx context.Context, guildID string, channels map[string]platform.Channel, known map[string]bool, now time.Time, report *ReconcileReport) {
	grace := s.cfg.ReconcileInterval()

	s.suspectsMu.Lock()
	defer s.suspectsMu.Unlock()

	for id, suspect := range s.suspects {
		if suspect.guildID != guildID {
			continue
		}
		if _, listed := channels[id]; !listed || known[id] {
			delete(s.suspects, id)
		}
	}

	for id, ch := range channels {
		if known[id] {
			continue
		}
		suspect, suspected := s.suspects[id]
		if !suspected {
			s.suspects[id] = orphanSuspect{guildID: guildID, firstSeen: now}
			report.OrphansSuspected++
			continue
		}
		if now.Sub(suspect.firstSeen) < grace {
			continue
		}
		if err := s.platform.DeleteChannel(ctx, id, "orphaned ticket channel"); err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.warn("delete orphaned channel failed", id, err)
			continue
		}
		s.logger.Info("orphaned ticket channel deleted", zap.String("channel_id", id), zap.String("name", ch.Name))
		delete(s.suspects, id)
		report.OrphansDeleted++
	}
}

// Repairs is the number of corrective actions taken.
func (r ReconcileReport) Repairs() int {
	return r.ChannelsRedeleted + r.TicketsMarked + r.TicketsFinalized + r.ControlsSent + r.OrphansDeleted
}
