package service

import (
	"fmt"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

const (
	colorOpen   = 0x2ecc71
	colorClosed = 0xe67e22
	colorPanel  = 0x5865f2
)

var kindLabels = map[domain.TicketKind]string{
	domain.TicketKindClaim:   "Claim",
	domain.TicketKindCustom:  "Custom order",
	domain.TicketKindSupport: "Support",
}

// RenderControls builds the status embed and the controls matching the
// ticket's state. Deleted tickets get an empty control set.
func RenderControls(t *domain.Ticket, now time.Time) (platform.Embed, platform.Controls) {
	embed := platform.Embed{
		Title: "Ticket " + t.Label(),
		Fields: []platform.EmbedField{
			{Name: "Owner", Value: mentionUser(t.OwnerID), Inline: true},
			{Name: "Status", Value: string(t.Status), Inline: true},
			{Name: "Claimed by", Value: optionalMention(t.ClaimedBy), Inline: true},
			{Name: "Priority", Value: optionalPriority(t.Priority), Inline: true},
			{Name: "First response", Value: formatFirstResponse(t.FirstStaffResponseSeconds), Inline: true},
		},
		Footer: "Opened " + t.CreatedAt.UTC().Format(time.RFC1123),
		Color:  colorOpen,
	}

	switch t.Status {
	case domain.TicketStatusOpen:
		embed.Fields = append(embed.Fields, platform.EmbedField{
			Name: "Idle", Value: humanDuration(now.Sub(t.LastActivityAt)), Inline: true,
		})
		return embed, platform.Controls{Rows: []platform.ControlRow{
			{Buttons: []platform.Button{
				{ID: domain.ControlIDClaim, Label: "Claim", Style: platform.ButtonSuccess, Disabled: t.ClaimedBy != nil},
				{ID: domain.ControlIDClose, Label: "Close", Style: platform.ButtonDanger},
			}},
			{Select: prioritySelect(t.Priority)},
		}}
	case domain.TicketStatusClosed:
		embed.Color = colorClosed
		if t.CloseReason != nil {
			embed.Description = "Closed: " + *t.CloseReason
		}
		return embed, platform.Controls{Rows: []platform.ControlRow{
			{Buttons: []platform.Button{
				{ID: domain.ControlIDReopen, Label: "Reopen", Style: platform.ButtonPrimary},
			}},
		}}
	default:
		embed.Color = colorClosed
		return embed, platform.Controls{}
	}
}

func prioritySelect(current *domain.TicketPriority) *platform.Select {
	sel := &platform.Select{ID: domain.ControlIDPriority, Placeholder: "Set priority"}
	for _, p := range []domain.TicketPriority{domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh} {
		sel.Options = append(sel.Options, platform.SelectOption{
			Label:   string(p),
			Value:   string(p),
			Default: current != nil && *current == p,
		})
	}
	return sel
}

// PanelMessage is the category picker users open tickets from.
func PanelMessage() platform.OutgoingMessage {
	sel := &platform.Select{ID: domain.ControlIDOpen, Placeholder: "Choose a category"}
	for _, kind := range domain.TicketKinds {
		sel.Options = append(sel.Options, platform.SelectOption{
			Label: kindLabels[kind],
			Value: string(kind),
		})
	}
	return platform.OutgoingMessage{
		Embed: &platform.Embed{
			Title:       "Open a ticket",
			Description: "Pick a category below and a private channel will be created for you.",
			Color:       colorPanel,
		},
		Controls: &platform.Controls{Rows: []platform.ControlRow{{Select: sel}}},
	}
}

func mentionUser(id string) string {
	if id == domain.SystemActorID {
		return id
	}
	return "<@" + id + ">"
}

func mentionRole(id string) string {
	return "<@&" + id + ">"
}

func optionalMention(id *string) string {
	if id == nil {
		return "unclaimed"
	}
	return mentionUser(*id)
}

func optionalPriority(p *domain.TicketPriority) string {
	if p == nil {
		return "unset"
	}
	return string(*p)
}

func formatFirstResponse(seconds *int64) string {
	if seconds == nil {
		return "awaiting staff"
	}
	return humanDuration(time.Duration(*seconds) * time.Second)
}

func humanDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
