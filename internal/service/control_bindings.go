package service

import "sync"

// ControlBindings maps control message ids to the ticket channel they drive.
// Interactions on a message that is not bound are stale.
type ControlBindings struct {
	mu        sync.RWMutex
	byMessage map[string]string
}

// NewControlBindings creates an empty binding table.
func NewControlBindings() *ControlBindings {
	return &ControlBindings{byMessage: make(map[string]string)}
}

// Bind attaches messageID to channelID, replacing earlier bindings of the
// channel. Binding the same pair again is a no-op.
func (b *ControlBindings) Bind(messageID, channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for msg, ch := range b.byMessage {
		if ch == channelID && msg != messageID {
			delete(b.byMessage, msg)
		}
	}
	b.byMessage[messageID] = channelID
}

// Resolve returns the channel bound to messageID.
func (b *ControlBindings) Resolve(messageID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.byMessage[messageID]
	return ch, ok
}

// Unbind removes every binding of channelID.
func (b *ControlBindings) Unbind(channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for msg, ch := range b.byMessage {
		if ch == channelID {
			delete(b.byMessage, msg)
		}
	}
}

// Len reports the number of bound messages.
func (b *ControlBindings) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byMessage)
}
