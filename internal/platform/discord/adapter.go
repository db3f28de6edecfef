// Package discord implements the platform capability on top of the Discord
// REST API and gateway.
package discord

import (
	"bytes"
	"context"
	"iter"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

const historyPageSize = 100

// Adapter implements platform.Platform with a discordgo session.
type Adapter struct {
	session *discordgo.Session
}

var _ platform.Platform = (*Adapter)(nil)

// NewAdapter wraps an authenticated session.
func NewAdapter(session *discordgo.Session) *Adapter {
	return &Adapter{session: session}
}

func (a *Adapter) CreateChannel(ctx context.Context, spec platform.ChannelSpec) (string, error) {
	ch, err := a.session.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		ParentID:             spec.ParentID,
		PermissionOverwrites: a.overwrites(spec.Overwrites),
	}, requestOptions(ctx, spec.Reason)...)
	if err != nil {
		return "", mapError(err)
	}
	return ch.ID, nil
}

func (a *Adapter) EditChannel(ctx context.Context, channelID string, edit platform.ChannelEdit) error {
	data := &discordgo.ChannelEdit{}
	if edit.Name != nil {
		data.Name = *edit.Name
	}
	if edit.Topic != nil {
		data.Topic = *edit.Topic
	}
	if edit.Overwrites != nil {
		data.PermissionOverwrites = a.overwrites(edit.Overwrites)
	}
	_, err := a.session.ChannelEdit(channelID, data, requestOptions(ctx, "")...)
	return mapError(err)
}

func (a *Adapter) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := a.session.ChannelDelete(channelID, requestOptions(ctx, reason)...)
	return mapError(err)
}

func (a *Adapter) ListChannels(ctx context.Context, guildID, parentID string) ([]platform.Channel, error) {
	channels, err := a.session.GuildChannels(guildID, requestOptions(ctx, "")...)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]platform.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		if parentID != "" && ch.ParentID != parentID {
			continue
		}
		out = append(out, platform.Channel{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name, ParentID: ch.ParentID})
	}
	return out, nil
}

func (a *Adapter) SendMessage(ctx context.Context, channelID string, msg platform.OutgoingMessage) (string, error) {
	data := &discordgo.MessageSend{Content: msg.Content}
	if embed := toEmbed(msg.Embed); embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if msg.Controls != nil {
		data.Components = toComponents(msg.Controls)
	}
	for _, f := range msg.Files {
		data.Files = append(data.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}
	sent, err := a.session.ChannelMessageSendComplex(channelID, data, requestOptions(ctx, "")...)
	if err != nil {
		return "", mapError(err)
	}
	return sent.ID, nil
}

func (a *Adapter) EditMessage(ctx context.Context, channelID, messageID string, edit platform.MessageEdit) error {
	data := discordgo.NewMessageEdit(channelID, messageID)
	if edit.Content != nil {
		data.SetContent(*edit.Content)
	}
	if embed := toEmbed(edit.Embed); embed != nil {
		data.SetEmbed(embed)
	}
	if edit.Controls != nil {
		components := toComponents(edit.Controls)
		data.Components = &components
	}
	_, err := a.session.ChannelMessageEditComplex(data, requestOptions(ctx, "")...)
	return mapError(err)
}

func (a *Adapter) FetchMessage(ctx context.Context, channelID, messageID string) (*platform.Message, error) {
	m, err := a.session.ChannelMessage(channelID, messageID, requestOptions(ctx, "")...)
	if err != nil {
		return nil, mapError(err)
	}
	msg := fromMessage(m)
	return &msg, nil
}

// History pages forward from the start of the channel.
func (a *Adapter) History(ctx context.Context, channelID string) iter.Seq2[platform.Message, error] {
	return func(yield func(platform.Message, error) bool) {
		after := "0"
		for {
			page, err := a.session.ChannelMessages(channelID, historyPageSize, "", after, "", requestOptions(ctx, "")...)
			if err != nil {
				yield(platform.Message{}, mapError(err))
				return
			}
			sortOldestFirst(page)
			for _, m := range page {
				if !yield(fromMessage(m), nil) {
					return
				}
			}
			if len(page) < historyPageSize {
				return
			}
			after = page[len(page)-1].ID
		}
	}
}

func (a *Adapter) ResolveMember(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	m, err := a.session.GuildMember(guildID, userID, requestOptions(ctx, "")...)
	if err != nil {
		return nil, mapError(err)
	}
	member := fromMember(m)
	if member.UserID == "" {
		member.UserID = userID
	}
	return &member, nil
}

// overwrites keeps the bot itself able to manage channels that hide
// everything from @everyone.
func (a *Adapter) overwrites(in []platform.Overwrite) []*discordgo.PermissionOverwrite {
	out := toOverwrites(in)
	if self := a.selfID(); self != "" {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    self,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: permissionMask(platform.PermAll) | discordgo.PermissionManageChannels,
		})
	}
	return out
}

func (a *Adapter) selfID() string {
	if a.session.State == nil || a.session.State.User == nil {
		return ""
	}
	return a.session.State.User.ID
}

func requestOptions(ctx context.Context, reason string) []discordgo.RequestOption {
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		opts = append(opts, discordgo.WithAuditLogReason(reason))
	}
	return opts
}
