package service

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const maxNameSegment = 60

// SanitizeName reduces a display name to a channel-safe slug.
func SanitizeName(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxNameSegment {
		slug = strings.TrimRight(slug[:maxNameSegment], "-")
	}
	if slug == "" {
		return "user"
	}
	return slug
}

// ChannelName builds `{kind}-{owner}-{num}` with an optional priority marker.
func ChannelName(kind domain.TicketKind, ownerName string, num int, priority *domain.TicketPriority) string {
	name := fmt.Sprintf("%s-%s-%04d", kind, SanitizeName(ownerName), num)
	if priority == nil {
		return name
	}
	return priorityMarker(*priority) + "-" + name
}

func priorityMarker(p domain.TicketPriority) string {
	switch p {
	case domain.TicketPriorityLow:
		return "low"
	case domain.TicketPriorityMedium:
		return "med"
	case domain.TicketPriorityHigh:
		return "high"
	default:
		return string(p)
	}
}
