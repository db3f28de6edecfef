package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketHistoryRepository stores audit entries. Append is idempotent on the
// entry id.
type TicketHistoryRepository interface {
	Append(ctx context.Context, entry *domain.TicketHistory) error
	ListByChannel(ctx context.Context, channelID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds the Postgres repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Append(ctx context.Context, entry *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (id, channel_id, guild_id, event_type, actor_id, actor_system, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.ChannelID,
		entry.GuildID,
		entry.EventType,
		entry.ActorID,
		entry.ActorSystem,
		entry.Payload,
		entry.CreatedAt,
	)
	return err
}

func (r *ticketHistoryRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, channel_id, guild_id, event_type, actor_id, actor_system, payload, created_at
        FROM ticket_history WHERE channel_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var entry domain.TicketHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.ChannelID,
			&entry.GuildID,
			&entry.EventType,
			&entry.ActorID,
			&entry.ActorSystem,
			&entry.Payload,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

type memoryHistoryRepository struct {
	mu      sync.Mutex
	seen    map[string]bool
	entries map[string][]domain.TicketHistory
}

// NewMemoryTicketHistoryRepository keeps history in process memory.
func NewMemoryTicketHistoryRepository() TicketHistoryRepository {
	return &memoryHistoryRepository{
		seen:    make(map[string]bool),
		entries: make(map[string][]domain.TicketHistory),
	}
}

func (r *memoryHistoryRepository) Append(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[entry.ID] {
		return nil
	}
	r.seen[entry.ID] = true
	r.entries[entry.ChannelID] = append(r.entries[entry.ChannelID], *entry)
	return nil
}

func (r *memoryHistoryRepository) ListByChannel(_ context.Context, channelID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	result := append([]domain.TicketHistory{}, r.entries[channelID]...)
	r.mu.Unlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
