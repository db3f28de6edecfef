package domain

import "time"

// TicketHistory is an immutable audit entry recorded for every lifecycle
// event of a ticket.
type TicketHistory struct {
	ID          string
	ChannelID   string
	GuildID     string
	EventType   string
	ActorID     string
	ActorSystem bool
	Payload     map[string]any
	CreatedAt   time.Time
}
