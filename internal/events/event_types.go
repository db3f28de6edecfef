package events

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened          EventType = "ticket_opened"
	EventTicketClaimed         EventType = "ticket_claimed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketClosed          EventType = "ticket_closed"
	EventTicketReopened        EventType = "ticket_reopened"
	EventTicketDeleted         EventType = "ticket_deleted"
	EventTicketFirstResponse   EventType = "ticket_first_response"
)

// AllEventTypes lists every lifecycle event.
var AllEventTypes = []EventType{
	EventTicketOpened,
	EventTicketClaimed,
	EventTicketPriorityChanged,
	EventTicketClosed,
	EventTicketReopened,
	EventTicketDeleted,
	EventTicketFirstResponse,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	System bool   `json:"system,omitempty"`
}

// ActorFrom converts a domain actor.
func ActorFrom(a domain.Actor) Actor {
	return Actor{ID: a.ID, Name: a.Name, System: a.IsSystem()}
}

// Event represents a lifecycle event emitted by the ticket services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ChannelID string    `json:"channel_id"`
	GuildID   string    `json:"guild_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	OwnerID string            `json:"owner_id"`
	Kind    domain.TicketKind `json:"kind"`
	Number  int               `json:"number"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	ClaimedBy string `json:"claimed_by"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority *domain.TicketPriority `json:"old_priority,omitempty"`
	NewPriority domain.TicketPriority  `json:"new_priority"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Reason              string `json:"reason"`
	TranscriptDelivered bool   `json:"transcript_delivered"`
	TranscriptArchived  bool   `json:"transcript_archived"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	OwnerID string `json:"owner_id"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	ChannelDeleted bool   `json:"channel_deleted"`
	Source         string `json:"source"`
}

// TicketFirstResponsePayload payload.
type TicketFirstResponsePayload struct {
	StaffID string `json:"staff_id"`
	Seconds int64  `json:"seconds"`
}
