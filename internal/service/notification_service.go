package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// NotificationService fans lifecycle events out to the log, the metrics, the
// audit history and, when configured, the message broker.
type NotificationService struct {
	dispatcher events.Dispatcher
	history    repository.TicketHistoryRepository
	publisher  events.Publisher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators. History and Publisher are
// optional.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	History    repository.TicketHistoryRepository
	Publisher  events.Publisher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		history:    deps.History,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// RegisterHandlers subscribes to every lifecycle event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

// History returns the recorded lifecycle of a ticket channel, oldest first.
func (n *NotificationService) History(ctx context.Context, channelID string) ([]domain.TicketHistory, error) {
	if n.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := n.history.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, apperrors.NewStoreError("list ticket history", err)
	}
	return entries, nil
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("channel_id", event.ChannelID),
		zap.String("actor_id", event.Actor.ID),
		zap.Any("payload", event.Payload))
	n.metrics.RecordEvent(string(event.Type))

	if n.history != nil {
		if err := n.history.Append(ctx, historyEntry(event)); err != nil {
			n.logger.Warn("record ticket history failed",
				zap.String("event_type", string(event.Type)),
				zap.String("channel_id", event.ChannelID),
				zap.Error(err))
		}
	}

	if n.publisher == nil {
		return nil
	}
	// Broker delivery is best-effort; a lost event never fails a transition.
	if err := n.publisher.Publish(ctx, events.RoutingKey(event.Type), event); err != nil {
		n.logger.Warn("publish event to broker failed",
			zap.String("event_type", string(event.Type)),
			zap.String("channel_id", event.ChannelID),
			zap.Error(err))
	}
	return nil
}

func historyEntry(event events.Event) *domain.TicketHistory {
	payload := map[string]any{}
	if raw, err := json.Marshal(event.Payload); err == nil {
		_ = json.Unmarshal(raw, &payload)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return &domain.TicketHistory{
		ID:          event.ID,
		ChannelID:   event.ChannelID,
		GuildID:     event.GuildID,
		EventType:   string(event.Type),
		ActorID:     event.Actor.ID,
		ActorSystem: event.Actor.System,
		Payload:     payload,
		CreatedAt:   event.Timestamp,
	}
}
