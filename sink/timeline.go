// Package sink provides snapshot consumers for domain events. Sinks hold
// the latest state pushed to them; they never reach back into storage.
package sink

import (
	"context"
	"sync"

	"chat-mirror/domain"
	"chat-mirror/domain/event"
)

// Timeline holds the latest message snapshot of one conversation.
type Timeline struct {
	mu       sync.RWMutex
	chatID   string
	messages []domain.Message
}

func NewTimeline(chatID string) *Timeline {
	return &Timeline{chatID: chatID}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	if evt, ok := e.(event.MessagesUpdated); ok && evt.ChatID == t.chatID {
		t.mu.Lock()
		t.messages = evt.Messages
		t.mu.Unlock()
	}
	return nil
}

// Messages returns the last snapshot received, newest first.
func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.messages
}
