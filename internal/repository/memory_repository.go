package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// memoryRepository keeps tickets in process memory. It enforces the same
// constraints as the Postgres schema and is used when no DSN is configured.
type memoryRepository struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	counters map[domain.TicketKind]int
}

// NewMemoryTicketRepository builds an in-memory repository.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryRepository{
		tickets:  make(map[string]*domain.Ticket),
		counters: make(map[domain.TicketKind]int),
	}
}

func (r *memoryRepository) NextTicketNumber(_ context.Context, kind domain.TicketKind) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[kind]++
	return r.counters[kind], nil
}

func (r *memoryRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tickets[ticket.ChannelID]; exists {
		return ErrChannelExists
	}
	for _, existing := range r.tickets {
		if existing.GuildID != ticket.GuildID || existing.Kind != ticket.Kind {
			continue
		}
		if existing.Number == ticket.Number {
			return ErrDuplicateNumber
		}
		if existing.OwnerID == ticket.OwnerID && existing.Status == domain.TicketStatusOpen {
			return ErrOpenTicketExists
		}
	}

	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	stored := &domain.Ticket{
		ChannelID:      ticket.ChannelID,
		GuildID:        ticket.GuildID,
		OwnerID:        ticket.OwnerID,
		Kind:           ticket.Kind,
		Number:         ticket.Number,
		Status:         domain.TicketStatusOpen,
		CreatedAt:      ticket.CreatedAt,
		LastActivityAt: ticket.CreatedAt,
	}
	r.tickets[stored.ChannelID] = stored
	*ticket = *cloneTicket(stored)
	return nil
}

func (r *memoryRepository) FindOpen(_ context.Context, guildID, ownerID string, kind domain.TicketKind) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.GuildID == guildID && t.OwnerID == ownerID && t.Kind == kind && t.Status == domain.TicketStatusOpen {
			return cloneTicket(t), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) GetByChannelID(_ context.Context, channelID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTicket(t), nil
}

func (r *memoryRepository) Update(_ context.Context, channelID string, patch TicketPatch) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	if isEmptyPatch(patch) {
		return cloneTicket(t), nil
	}
	if t.Status == domain.TicketStatusDeleted {
		return nil, ErrPreconditionFailed
	}
	if len(patch.ExpectStatuses) > 0 && !slices.Contains(patch.ExpectStatuses, t.Status) {
		return nil, ErrPreconditionFailed
	}
	if patch.ExpectClosedAt != nil && (t.ClosedAt == nil || !t.ClosedAt.Equal(*patch.ExpectClosedAt)) {
		return nil, ErrPreconditionFailed
	}
	if patch.ClaimedBy != nil && t.ClaimedBy != nil {
		return nil, ErrPreconditionFailed
	}
	if patch.FirstStaffResponseSeconds != nil && t.FirstStaffResponseSeconds != nil {
		return nil, ErrPreconditionFailed
	}
	if patch.Status != nil && *patch.Status == domain.TicketStatusOpen && t.Status != domain.TicketStatusOpen {
		for _, other := range r.tickets {
			if other.ChannelID != t.ChannelID && other.GuildID == t.GuildID && other.OwnerID == t.OwnerID &&
				other.Kind == t.Kind && other.Status == domain.TicketStatusOpen {
				return nil, ErrOpenTicketExists
			}
		}
	}

	next := cloneTicket(t)
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.LastActivityAt != nil {
		next.LastActivityAt = *patch.LastActivityAt
	}
	if patch.ClaimedBy != nil {
		next.ClaimedBy = ptr(*patch.ClaimedBy)
	}
	if patch.Priority != nil {
		next.Priority = ptr(*patch.Priority)
	}
	if patch.FirstStaffResponseSeconds != nil {
		next.FirstStaffResponseSeconds = ptr(*patch.FirstStaffResponseSeconds)
	}
	if patch.ControlMessageID != nil {
		next.ControlMessageID = ptr(*patch.ControlMessageID)
	}
	if patch.ClosedAt != nil {
		next.ClosedAt = ptr(*patch.ClosedAt)
	}
	if patch.ClosedBy != nil {
		next.ClosedBy = ptr(*patch.ClosedBy)
	}
	if patch.CloseReason != nil {
		next.CloseReason = ptr(*patch.CloseReason)
	}
	r.tickets[channelID] = next
	return cloneTicket(next), nil
}

func (r *memoryRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	result := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		if matchesFilter(t, filter) {
			result = append(result, *cloneTicket(t))
		}
	}
	r.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ChannelID < result[j].ChannelID
	})
	if filter.Limit <= 0 {
		return result, nil
	}
	offset := max(filter.Offset, 0)
	if offset >= len(result) {
		return []domain.Ticket{}, nil
	}
	end := min(offset+filter.Limit, len(result))
	return result[offset:end], nil
}

func (r *memoryRepository) Stats(_ context.Context, guildID string) (*domain.TicketStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &domain.TicketStats{OpenByKind: map[domain.TicketKind]int{}}
	var responseTotal int64
	for _, t := range r.tickets {
		if t.GuildID != guildID {
			continue
		}
		switch t.Status {
		case domain.TicketStatusOpen:
			stats.Open++
			stats.OpenByKind[t.Kind]++
		case domain.TicketStatusClosed:
			stats.Closed++
		case domain.TicketStatusDeleted:
			stats.Deleted++
		}
		if t.ClaimedBy != nil {
			stats.Claimed++
		}
		if t.FirstStaffResponseSeconds != nil {
			stats.Responded++
			responseTotal += *t.FirstStaffResponseSeconds
		}
	}
	if stats.Responded > 0 {
		stats.AvgFirstResponseSeconds = float64(responseTotal) / float64(stats.Responded)
	}
	return stats, nil
}

func matchesFilter(t *domain.Ticket, filter TicketFilter) bool {
	if filter.GuildID != nil && t.GuildID != *filter.GuildID {
		return false
	}
	if filter.OwnerID != nil && t.OwnerID != *filter.OwnerID {
		return false
	}
	if len(filter.Kinds) > 0 && !slices.Contains(filter.Kinds, t.Kind) {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
		return false
	}
	if filter.LastActivityBefore != nil && !t.LastActivityAt.Before(*filter.LastActivityBefore) {
		return false
	}
	if filter.HasControlMessage != nil && (t.ControlMessageID != nil) != *filter.HasControlMessage {
		return false
	}
	return true
}

func isEmptyPatch(p TicketPatch) bool {
	return p.Status == nil && p.LastActivityAt == nil && p.ClaimedBy == nil && p.Priority == nil &&
		p.FirstStaffResponseSeconds == nil && p.ControlMessageID == nil && p.ClosedAt == nil &&
		p.ClosedBy == nil && p.CloseReason == nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	c.ClaimedBy = clonePtr(t.ClaimedBy)
	c.Priority = clonePtr(t.Priority)
	c.FirstStaffResponseSeconds = clonePtr(t.FirstStaffResponseSeconds)
	c.ControlMessageID = clonePtr(t.ControlMessageID)
	c.ClosedAt = clonePtr(t.ClosedAt)
	c.ClosedBy = clonePtr(t.ClosedBy)
	c.CloseReason = clonePtr(t.CloseReason)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return ptr(*p)
}

func ptr[T any](v T) *T {
	return &v
}
