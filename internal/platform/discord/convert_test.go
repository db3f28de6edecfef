package discord

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

func TestPermissionMask(t *testing.T) {
	got := permissionMask(platform.PermView | platform.PermReadHistory)
	want := int64(discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory)
	if got != want {
		t.Fatalf("mask = %b, want %b", got, want)
	}
	if permissionMask(0) != 0 {
		t.Fatal("empty permission produced bits")
	}
}

func TestToOverwrites(t *testing.T) {
	out := toOverwrites([]platform.Overwrite{
		{TargetID: "guild", Target: platform.TargetRole, Deny: platform.PermView},
		{TargetID: "owner", Target: platform.TargetMember, Allow: platform.PermView, Deny: platform.PermSend},
	})
	if len(out) != 2 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0].Type != discordgo.PermissionOverwriteTypeRole || out[0].Deny != discordgo.PermissionViewChannel {
		t.Errorf("role overwrite = %+v", out[0])
	}
	if out[1].Type != discordgo.PermissionOverwriteTypeMember || out[1].Allow != discordgo.PermissionViewChannel ||
		out[1].Deny != discordgo.PermissionSendMessages {
		t.Errorf("member overwrite = %+v", out[1])
	}
}

func TestToComponents(t *testing.T) {
	if rows := toComponents(nil); rows == nil || len(rows) != 0 {
		t.Fatalf("nil controls = %#v, want empty non-nil", rows)
	}
	rows := toComponents(&platform.Controls{Rows: []platform.ControlRow{
		{Buttons: []platform.Button{{ID: "ticket:claim", Label: "Claim", Style: platform.ButtonSuccess, Disabled: true}}},
		{Select: &platform.Select{ID: "ticket:priority", Options: []platform.SelectOption{{Label: "High", Value: "high", Default: true}}}},
		{},
	}})
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want empty row dropped", len(rows))
	}
	button := rows[0].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	if button.CustomID != "ticket:claim" || button.Style != discordgo.SuccessButton || !button.Disabled {
		t.Errorf("button = %+v", button)
	}
	menu := rows[1].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	if menu.CustomID != "ticket:priority" || len(menu.Options) != 1 || !menu.Options[0].Default {
		t.Errorf("menu = %+v", menu)
	}
}

func TestFromMemberPrefersNick(t *testing.T) {
	m := fromMember(&discordgo.Member{
		User:  &discordgo.User{ID: "u1", Username: "alice", GlobalName: "Alice"},
		Nick:  "Al",
		Roles: []string{"r1"},
	})
	if m.UserID != "u1" || m.Name != "Al" || len(m.RoleIDs) != 1 {
		t.Fatalf("member = %+v", m)
	}
	if got := fromMember(&discordgo.Member{User: &discordgo.User{ID: "u2", Username: "bob"}}); got.Name != "bob" || got.RoleIDs == nil {
		t.Fatalf("member = %+v", got)
	}
}

func TestFromMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := fromMessage(&discordgo.Message{
		ID:          "m1",
		ChannelID:   "c1",
		Content:     "hi",
		Timestamp:   at,
		Author:      &discordgo.User{ID: "b", Username: "bot", Bot: true},
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn/x.png"}},
	})
	if m.AuthorID != "b" || !m.AuthorBot || !m.CreatedAt.Equal(at) || len(m.Attachments) != 1 {
		t.Fatalf("message = %+v", m)
	}
}

func TestSortOldestFirst(t *testing.T) {
	msgs := []*discordgo.Message{{ID: "1000"}, {ID: "999"}, {ID: "1001"}}
	sortOldestFirst(msgs)
	if msgs[0].ID != "999" || msgs[1].ID != "1000" || msgs[2].ID != "1001" {
		t.Fatalf("order = %s %s %s", msgs[0].ID, msgs[1].ID, msgs[2].ID)
	}
}

func TestMapError(t *testing.T) {
	unknown := &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel}}
	if !errors.Is(mapError(unknown), platform.ErrNotFound) {
		t.Error("unknown channel not mapped")
	}
	missing := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	if !errors.Is(mapError(missing), platform.ErrNotFound) {
		t.Error("404 not mapped")
	}
	denied := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions},
	}
	if errors.Is(mapError(denied), platform.ErrNotFound) {
		t.Error("permission error mapped to not found")
	}
	if mapError(nil) != nil {
		t.Error("nil error mapped")
	}
}

func TestModalFields(t *testing.T) {
	fields := modalFields([]discordgo.MessageComponent{
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: "reason", Value: "done"},
		}},
	})
	if fields["reason"] != "done" {
		t.Fatalf("fields = %v", fields)
	}
}
