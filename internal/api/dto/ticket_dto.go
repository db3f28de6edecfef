package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketResponse is the ops API view of a ticket.
type TicketResponse struct {
	ChannelID                 string                 `json:"channel_id"`
	GuildID                   string                 `json:"guild_id"`
	OwnerID                   string                 `json:"owner_id"`
	Kind                      domain.TicketKind      `json:"kind"`
	Number                    int                    `json:"number"`
	Label                     string                 `json:"label"`
	Status                    domain.TicketStatus    `json:"status"`
	CreatedAt                 time.Time              `json:"created_at"`
	LastActivityAt            time.Time              `json:"last_activity_at"`
	ClaimedBy                 *string                `json:"claimed_by"`
	Priority                  *domain.TicketPriority `json:"priority"`
	FirstStaffResponseSeconds *int64                 `json:"first_staff_response_seconds"`
	ControlMessageID          *string                `json:"control_message_id"`
	ClosedAt                  *time.Time             `json:"closed_at,omitempty"`
	ClosedBy                  *string                `json:"closed_by,omitempty"`
	CloseReason               *string                `json:"close_reason,omitempty"`
}

// TicketListQuery captures list filters.
type TicketListQuery struct {
	GuildID  string
	OwnerID  string
	Statuses []domain.TicketStatus
	Kinds    []domain.TicketKind
	Page     int
	PageSize int
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ChannelID:                 t.ChannelID,
		GuildID:                   t.GuildID,
		OwnerID:                   t.OwnerID,
		Kind:                      t.Kind,
		Number:                    t.Number,
		Label:                     t.Label(),
		Status:                    t.Status,
		CreatedAt:                 t.CreatedAt,
		LastActivityAt:            t.LastActivityAt,
		ClaimedBy:                 t.ClaimedBy,
		Priority:                  t.Priority,
		FirstStaffResponseSeconds: t.FirstStaffResponseSeconds,
		ControlMessageID:          t.ControlMessageID,
		ClosedAt:                  t.ClosedAt,
		ClosedBy:                  t.ClosedBy,
		CloseReason:               t.CloseReason,
	}
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID          string         `json:"id"`
	EventType   string         `json:"event_type"`
	ActorID     string         `json:"actor_id"`
	ActorSystem bool           `json:"actor_system"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewTicketHistoryResponse maps an audit entry.
func NewTicketHistoryResponse(h *domain.TicketHistory) TicketHistoryResponse {
	return TicketHistoryResponse{
		ID:          h.ID,
		EventType:   h.EventType,
		ActorID:     h.ActorID,
		ActorSystem: h.ActorSystem,
		Payload:     h.Payload,
		CreatedAt:   h.CreatedAt,
	}
}
