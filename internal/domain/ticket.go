package domain

import (
	"fmt"
	"time"
)

// TicketKind is the fixed category a ticket belongs to.
type TicketKind string

const (
	TicketKindClaim   TicketKind = "claim"
	TicketKindCustom  TicketKind = "custom"
	TicketKindSupport TicketKind = "support"
)

// TicketKinds lists every kind in panel order.
var TicketKinds = []TicketKind{TicketKindClaim, TicketKindCustom, TicketKindSupport}

// Valid reports whether k is a known kind.
func (k TicketKind) Valid() bool {
	switch k {
	case TicketKindClaim, TicketKindCustom, TicketKindSupport:
		return true
	}
	return false
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusClosed  TicketStatus = "closed"
	TicketStatusDeleted TicketStatus = "deleted"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusClosed, TicketStatusDeleted:
		return true
	}
	return false
}

// TicketPriority enumerates staff-set urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is a private channel plus its durable record. ChannelID is the
// primary key and never changes.
type Ticket struct {
	ChannelID                 string
	GuildID                   string
	OwnerID                   string
	Kind                      TicketKind
	Number                    int
	Status                    TicketStatus
	CreatedAt                 time.Time
	LastActivityAt            time.Time
	ClaimedBy                 *string
	Priority                  *TicketPriority
	FirstStaffResponseSeconds *int64
	ControlMessageID          *string
	ClosedAt                  *time.Time
	ClosedBy                  *string
	CloseReason               *string
}

// IsOpen reports whether the ticket accepts staff actions.
func (t *Ticket) IsOpen() bool {
	return t != nil && t.Status == TicketStatusOpen
}

// Label is the short human reference used in notices and transcripts.
func (t *Ticket) Label() string {
	return fmt.Sprintf("%s #%04d", t.Kind, t.Number)
}

// TicketStats aggregates store counts for the stats command.
type TicketStats struct {
	Open                    int                `json:"open"`
	Closed                  int                `json:"closed"`
	Deleted                 int                `json:"deleted"`
	OpenByKind              map[TicketKind]int `json:"open_by_kind"`
	Claimed                 int                `json:"claimed"`
	Responded               int                `json:"responded"`
	AvgFirstResponseSeconds float64            `json:"avg_first_response_seconds"`
}
