package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const ticketCachePrefix = "ticket:"

// cachedTicketRepository serves GetByChannelID from Redis and writes every
// row returned by a mutation back to the cache. The wrapped repository stays
// authoritative: Redis failures fall through to it and are never surfaced.
type cachedTicketRepository struct {
	TicketRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedTicketRepository wraps inner with a Redis read-through cache.
// A nil client returns inner unchanged.
func NewCachedTicketRepository(inner TicketRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) TicketRepository {
	if client == nil {
		return inner
	}
	return &cachedTicketRepository{TicketRepository: inner, client: client, ttl: ttl, logger: logger}
}

func (r *cachedTicketRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.Ticket, error) {
	raw, err := r.client.Get(ctx, ticketCachePrefix+channelID).Bytes()
	switch {
	case err == nil:
		var ticket domain.Ticket
		if jsonErr := json.Unmarshal(raw, &ticket); jsonErr == nil {
			return &ticket, nil
		}
	case !errors.Is(err, redis.Nil):
		r.logger.Debug("ticket cache read failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	ticket, err := r.TicketRepository.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, ticket)
	return ticket, nil
}

func (r *cachedTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := r.TicketRepository.Create(ctx, ticket); err != nil {
		return err
	}
	r.store(ctx, ticket)
	return nil
}

func (r *cachedTicketRepository) Update(ctx context.Context, channelID string, patch TicketPatch) (*domain.Ticket, error) {
	ticket, err := r.TicketRepository.Update(ctx, channelID, patch)
	if err != nil {
		// A failed guard means the cached copy is likely stale.
		if errors.Is(err, ErrPreconditionFailed) {
			r.evict(ctx, channelID)
		}
		return nil, err
	}
	r.store(ctx, ticket)
	return ticket, nil
}

func (r *cachedTicketRepository) store(ctx context.Context, ticket *domain.Ticket) {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, ticketCachePrefix+ticket.ChannelID, raw, r.ttl).Err(); err != nil {
		r.logger.Debug("ticket cache write failed", zap.String("channel_id", ticket.ChannelID), zap.Error(err))
	}
}

func (r *cachedTicketRepository) evict(ctx context.Context, channelID string) {
	if err := r.client.Del(ctx, ticketCachePrefix+channelID).Err(); err != nil {
		r.logger.Debug("ticket cache evict failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}
