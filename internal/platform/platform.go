// Package platform describes the chat-platform capabilities the ticket engine
// consumes. Adapters (see platform/discord) translate them to a concrete API.
package platform

import (
	"context"
	"errors"
	"iter"
	"time"
)

// ErrNotFound is returned when a channel, message or member does not exist.
var ErrNotFound = errors.New("platform object not found")

// Permission is a bit set of channel permissions relevant to tickets.
type Permission uint8

const (
	PermView Permission = 1 << iota
	PermSend
	PermReadHistory
	PermAttach
)

// PermAll is the full access staff and open-ticket owners receive.
const PermAll = PermView | PermSend | PermReadHistory | PermAttach

// OverwriteTarget says whether an overwrite applies to a role or a member.
type OverwriteTarget int

const (
	TargetRole OverwriteTarget = iota
	TargetMember
)

// Overwrite grants or denies permissions to one role or member.
type Overwrite struct {
	TargetID string
	Target   OverwriteTarget
	Allow    Permission
	Deny     Permission
}

// ChannelSpec describes a channel to create.
type ChannelSpec struct {
	GuildID    string
	Name       string
	ParentID   string
	Topic      string
	Overwrites []Overwrite
	Reason     string
}

// ChannelEdit changes a channel. Nil fields are left untouched; a non-nil
// Overwrites replaces every overwrite on the channel.
type ChannelEdit struct {
	Name       *string
	Topic      *string
	Overwrites []Overwrite
}

// Channel is the minimal view of a live channel.
type Channel struct {
	ID       string
	GuildID  string
	Name     string
	ParentID string
}

// EmbedField is one name/value pair in an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message body.
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
	Footer      string
	Color       int
}

// ButtonStyle selects a button's visual weight.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is a clickable control.
type Button struct {
	ID       string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

// SelectOption is one choice in a select control.
type SelectOption struct {
	Label       string
	Value       string
	Description string
	Default     bool
}

// Select is a single-choice dropdown control.
type Select struct {
	ID          string
	Placeholder string
	Options     []SelectOption
	Disabled    bool
}

// ControlRow holds either buttons or one select.
type ControlRow struct {
	Buttons []Button
	Select  *Select
}

// Controls is the interactive surface attached to a message.
type Controls struct {
	Rows []ControlRow
}

// File is an attachment uploaded with a message.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// OutgoingMessage is a message to send.
type OutgoingMessage struct {
	Content  string
	Embed    *Embed
	Controls *Controls
	Files    []File
}

// MessageEdit changes a sent message. Nil fields are left untouched; an empty
// non-nil Controls removes all controls.
type MessageEdit struct {
	Content  *string
	Embed    *Embed
	Controls *Controls
}

// Message is a message read back from a channel.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	AuthorBot   bool
	Content     string
	Attachments []string
	CreatedAt   time.Time
}

// Member is a guild member with their role ids.
type Member struct {
	UserID  string
	Name    string
	RoleIDs []string
}

// Platform is the chat-platform capability consumed by the ticket engine.
type Platform interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (string, error)
	EditChannel(ctx context.Context, channelID string, edit ChannelEdit) error
	DeleteChannel(ctx context.Context, channelID, reason string) error
	ListChannels(ctx context.Context, guildID, parentID string) ([]Channel, error)
	SendMessage(ctx context.Context, channelID string, msg OutgoingMessage) (string, error)
	EditMessage(ctx context.Context, channelID, messageID string, edit MessageEdit) error
	FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error)
	// History yields the channel's messages oldest first. Each call starts a
	// fresh walk of the history.
	History(ctx context.Context, channelID string) iter.Seq2[Message, error]
	ResolveMember(ctx context.Context, guildID, userID string) (*Member, error)
}
