package domain

import (
	"fmt"
	"strings"
)

// ControlKind tags the variant held by a ControlAction.
type ControlKind int

const (
	ControlOpen ControlKind = iota + 1
	ControlClaim
	ControlClose
	ControlCloseReason
	ControlSetPriority
	ControlReopen
)

// Custom ids carried by interactive controls.
const (
	ControlIDOpen        = "ticket:open"
	ControlIDClaim       = "ticket:claim"
	ControlIDClose       = "ticket:close"
	ControlIDCloseReason = "ticket:close:reason"
	ControlIDPriority    = "ticket:priority"
	ControlIDReopen      = "ticket:reopen"

	// CloseReasonField is the modal input holding the close reason.
	CloseReasonField = "reason"
)

// ControlAction is a parsed interaction on a ticket control. Kind selects
// which of the payload fields is meaningful.
type ControlAction struct {
	Kind       ControlKind
	TicketKind TicketKind     // ControlOpen
	Priority   TicketPriority // ControlSetPriority
	Reason     string         // ControlCloseReason
}

// ParseControlAction decodes a control custom id and its submitted values.
// Select menus deliver their choice in values; modals deliver fields.
func ParseControlAction(customID string, values []string, fields map[string]string) (ControlAction, error) {
	switch customID {
	case ControlIDOpen:
		kind := TicketKind(firstValue(values))
		if !kind.Valid() {
			return ControlAction{}, fmt.Errorf("unknown ticket kind %q", firstValue(values))
		}
		return ControlAction{Kind: ControlOpen, TicketKind: kind}, nil
	case ControlIDClaim:
		return ControlAction{Kind: ControlClaim}, nil
	case ControlIDClose:
		return ControlAction{Kind: ControlClose}, nil
	case ControlIDCloseReason:
		return ControlAction{Kind: ControlCloseReason, Reason: strings.TrimSpace(fields[CloseReasonField])}, nil
	case ControlIDPriority:
		level := TicketPriority(firstValue(values))
		if !level.Valid() {
			return ControlAction{}, fmt.Errorf("unknown priority %q", firstValue(values))
		}
		return ControlAction{Kind: ControlSetPriority, Priority: level}, nil
	case ControlIDReopen:
		return ControlAction{Kind: ControlReopen}, nil
	}
	return ControlAction{}, fmt.Errorf("unknown control %q", customID)
}

// TicketScoped reports whether the action targets an existing ticket and
// therefore needs a bound control message.
func (a ControlAction) TicketScoped() bool {
	return a.Kind != ControlOpen
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
