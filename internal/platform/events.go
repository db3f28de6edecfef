package platform

import "context"

// InteractionType distinguishes the inbound interaction shapes.
type InteractionType int

const (
	InteractionCommand InteractionType = iota + 1
	InteractionComponent
	InteractionModalSubmit
)

// Interaction is a user action delivered by the platform.
type Interaction struct {
	Type      InteractionType
	GuildID   string
	ChannelID string
	// MessageID is the message carrying the control; empty for commands and
	// for modal submits the platform does not attach to a message.
	MessageID string
	User      Member
	Command   string
	CustomID  string
	Values    []string
	Fields    map[string]string
}

// TextPrompt asks the user for free text before an action runs.
type TextPrompt struct {
	ID          string
	Title       string
	FieldID     string
	Label       string
	Placeholder string
}

// Responder answers a single interaction.
type Responder interface {
	// Reply sends a message visible only to the interacting user.
	Reply(ctx context.Context, content string) error
	// Prompt opens a text input form; its submission arrives as a
	// modal-submit interaction carrying prompt.ID.
	Prompt(ctx context.Context, prompt TextPrompt) error
}

// InboundMessage is a message posted in a guild channel.
type InboundMessage struct {
	GuildID string
	Message
	// AuthorRoleIDs is nil when the platform did not include member data.
	AuthorRoleIDs []string
}

// Handler consumes platform events.
type Handler interface {
	HandleInteraction(ctx context.Context, in Interaction, resp Responder)
	HandleMessage(ctx context.Context, msg InboundMessage)
}
