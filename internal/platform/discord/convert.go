package discord

import (
	"errors"
	"net/http"
	"sort"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

var permissionBits = []struct {
	perm platform.Permission
	bit  int64
}{
	{platform.PermView, discordgo.PermissionViewChannel},
	{platform.PermSend, discordgo.PermissionSendMessages},
	{platform.PermReadHistory, discordgo.PermissionReadMessageHistory},
	{platform.PermAttach, discordgo.PermissionAttachFiles},
}

func permissionMask(p platform.Permission) int64 {
	var mask int64
	for _, pb := range permissionBits {
		if p&pb.perm != 0 {
			mask |= pb.bit
		}
	}
	return mask
}

func toOverwrites(in []platform.Overwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(in))
	for _, ow := range in {
		kind := discordgo.PermissionOverwriteTypeRole
		if ow.Target == platform.TargetMember {
			kind = discordgo.PermissionOverwriteTypeMember
		}
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    ow.TargetID,
			Type:  kind,
			Allow: permissionMask(ow.Allow),
			Deny:  permissionMask(ow.Deny),
		})
	}
	return out
}

func toEmbed(e *platform.Embed) *discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return out
}

var buttonStyles = map[platform.ButtonStyle]discordgo.ButtonStyle{
	platform.ButtonPrimary:   discordgo.PrimaryButton,
	platform.ButtonSecondary: discordgo.SecondaryButton,
	platform.ButtonSuccess:   discordgo.SuccessButton,
	platform.ButtonDanger:    discordgo.DangerButton,
}

// toComponents converts controls to action rows. A nil or empty Controls
// yields an empty, non-nil slice so edits clear existing components.
func toComponents(c *platform.Controls) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	if c == nil {
		return rows
	}
	for _, row := range c.Rows {
		var items []discordgo.MessageComponent
		if row.Select != nil {
			menu := discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    row.Select.ID,
				Placeholder: row.Select.Placeholder,
				Disabled:    row.Select.Disabled,
			}
			for _, opt := range row.Select.Options {
				menu.Options = append(menu.Options, discordgo.SelectMenuOption{
					Label:       opt.Label,
					Value:       opt.Value,
					Description: opt.Description,
					Default:     opt.Default,
				})
			}
			items = append(items, menu)
		}
		for _, b := range row.Buttons {
			items = append(items, discordgo.Button{
				CustomID: b.ID,
				Label:    b.Label,
				Style:    buttonStyles[b.Style],
				Disabled: b.Disabled,
			})
		}
		if len(items) > 0 {
			rows = append(rows, discordgo.ActionsRow{Components: items})
		}
	}
	return rows
}

func fromMessage(m *discordgo.Message) platform.Message {
	out := platform.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorName = userName(m.Author)
		out.AuthorBot = m.Author.Bot
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, a.URL)
	}
	return out
}

func fromMember(m *discordgo.Member) platform.Member {
	out := platform.Member{RoleIDs: append([]string{}, m.Roles...)}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Name = userName(m.User)
	}
	if m.Nick != "" {
		out.Name = m.Nick
	}
	return out
}

func userName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// sortOldestFirst orders a page by snowflake, which grows with creation time.
func sortOldestFirst(msgs []*discordgo.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		return snowflakeLess(msgs[i].ID, msgs[j].ID)
	})
}

func snowflakeLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

var unknownObjectCodes = map[int]bool{
	discordgo.ErrCodeUnknownChannel: true,
	discordgo.ErrCodeUnknownMessage: true,
	discordgo.ErrCodeUnknownMember:  true,
	discordgo.ErrCodeUnknownUser:    true,
}

// mapError turns "unknown object" REST failures into platform.ErrNotFound.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil && unknownObjectCodes[restErr.Message.Code] {
			return errors.Join(platform.ErrNotFound, err)
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return errors.Join(platform.ErrNotFound, err)
		}
	}
	return err
}
