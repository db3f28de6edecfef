package service

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

type fakeChannel struct {
	platform.Channel
	Topic      string
	Overwrites []platform.Overwrite
}

type fakeMessage struct {
	platform.Message
	Embed    *platform.Embed
	Controls *platform.Controls
	Files    []platform.File
	Edits    int
}

// fakePlatform is an in-memory chat platform with failure injection.
type fakePlatform struct {
	mu       sync.Mutex
	seq      int
	channels map[string]*fakeChannel
	gone     map[string]*fakeChannel
	messages map[string][]*fakeMessage
	members  map[string]platform.Member

	created       int
	sends         int
	edits         int
	deleteReasons map[string]string
	failCreate    error
	failDelete    error
	failEdit      error
	failSendTo    map[string]error
	failNextSends int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels:   make(map[string]*fakeChannel),
		gone:       make(map[string]*fakeChannel),
		messages:   make(map[string][]*fakeMessage),
		members:    make(map[string]platform.Member),
		failSendTo: make(map[string]error),

		deleteReasons: make(map[string]string),
	}
}

func (f *fakePlatform) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakePlatform) addChannel(id, guildID, parentID, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = &fakeChannel{Channel: platform.Channel{ID: id, GuildID: guildID, Name: name, ParentID: parentID}}
}

func (f *fakePlatform) addMember(m platform.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[m.UserID] = m
}

// post simulates a user message in a channel.
func (f *fakePlatform) post(channelID, authorID, content string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channelID] = append(f.messages[channelID], &fakeMessage{Message: platform.Message{
		ID: f.nextID("msg"), ChannelID: channelID, AuthorID: authorID, AuthorName: authorID, Content: content, CreatedAt: at,
	}})
}

// vanish removes a channel without going through DeleteChannel.
func (f *fakePlatform) vanish(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, channelID)
}

func (f *fakePlatform) dropMessage(channelID, messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channelID] = slices.DeleteFunc(f.messages[channelID], func(m *fakeMessage) bool { return m.ID == messageID })
}

func (f *fakePlatform) channel(id string) (*fakeChannel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[id]; ok {
		c := *ch
		return &c, true
	}
	if ch, ok := f.gone[id]; ok {
		c := *ch
		return &c, false
	}
	return nil, false
}

func (f *fakePlatform) liveChannels(parentID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, ch := range f.channels {
		if ch.ParentID == parentID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (f *fakePlatform) messagesIn(channelID string) []fakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeMessage, 0, len(f.messages[channelID]))
	for _, m := range f.messages[channelID] {
		out = append(out, *m)
	}
	return out
}

func (f *fakePlatform) message(channelID, messageID string) (fakeMessage, bool) {
	for _, m := range f.messagesIn(channelID) {
		if m.ID == messageID {
			return m, true
		}
	}
	return fakeMessage{}, false
}

func (f *fakePlatform) counts() (created, sends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.sends
}

// mutations counts every successful write made through the platform.
func (f *fakePlatform) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created + f.sends + f.edits + len(f.deleteReasons)
}

func (f *fakePlatform) deleteReason(channelID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reason, ok := f.deleteReasons[channelID]
	return reason, ok
}

func (f *fakePlatform) CreateChannel(_ context.Context, spec platform.ChannelSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return "", f.failCreate
	}
	id := f.nextID("chan")
	f.channels[id] = &fakeChannel{
		Channel:    platform.Channel{ID: id, GuildID: spec.GuildID, Name: spec.Name, ParentID: spec.ParentID},
		Topic:      spec.Topic,
		Overwrites: spec.Overwrites,
	}
	f.created++
	return id, nil
}

func (f *fakePlatform) EditChannel(_ context.Context, channelID string, edit platform.ChannelEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	if edit.Name != nil {
		ch.Name = *edit.Name
	}
	if edit.Topic != nil {
		ch.Topic = *edit.Topic
	}
	if edit.Overwrites != nil {
		ch.Overwrites = edit.Overwrites
	}
	f.edits++
	return nil
}

func (f *fakePlatform) DeleteChannel(_ context.Context, channelID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	delete(f.channels, channelID)
	f.gone[channelID] = ch
	f.deleteReasons[channelID] = reason
	return nil
}

func (f *fakePlatform) ListChannels(_ context.Context, guildID, parentID string) ([]platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Channel
	for _, ch := range f.channels {
		if ch.GuildID == guildID && ch.ParentID == parentID {
			out = append(out, ch.Channel)
		}
	}
	return out, nil
}

func (f *fakePlatform) SendMessage(_ context.Context, channelID string, msg platform.OutgoingMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextSends > 0 {
		f.failNextSends--
		return "", fmt.Errorf("send to %s: rate limited", channelID)
	}
	if err := f.failSendTo[channelID]; err != nil {
		return "", err
	}
	if _, ok := f.channels[channelID]; !ok {
		return "", platform.ErrNotFound
	}
	id := f.nextID("msg")
	f.messages[channelID] = append(f.messages[channelID], &fakeMessage{
		Message:  platform.Message{ID: id, ChannelID: channelID, AuthorID: "bot", AuthorName: "bot", AuthorBot: true, Content: msg.Content},
		Embed:    msg.Embed,
		Controls: msg.Controls,
		Files:    msg.Files,
	})
	f.sends++
	return id, nil
}

func (f *fakePlatform) EditMessage(_ context.Context, channelID, messageID string, edit platform.MessageEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdit != nil {
		return f.failEdit
	}
	for _, m := range f.messages[channelID] {
		if m.ID != messageID {
			continue
		}
		if edit.Content != nil {
			m.Content = *edit.Content
		}
		if edit.Embed != nil {
			m.Embed = edit.Embed
		}
		if edit.Controls != nil {
			m.Controls = edit.Controls
		}
		m.Edits++
		f.edits++
		return nil
	}
	return platform.ErrNotFound
}

func (f *fakePlatform) FetchMessage(_ context.Context, channelID, messageID string) (*platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return nil, platform.ErrNotFound
	}
	for _, m := range f.messages[channelID] {
		if m.ID == messageID {
			msg := m.Message
			return &msg, nil
		}
	}
	return nil, platform.ErrNotFound
}

func (f *fakePlatform) History(_ context.Context, channelID string) iter.Seq2[platform.Message, error] {
	return func(yield func(platform.Message, error) bool) {
		for _, m := range f.messagesIn(channelID) {
			if !yield(m.Message, nil) {
				return
			}
		}
	}
}

func (f *fakePlatform) ResolveMember(_ context.Context, _, userID string) (*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return &m, nil
}
