// Package notify renders incoming messages into notification content.
// Delivery to a platform notification service is out of scope; this
// package only decides what a banner says.
package notify

import (
	"context"
	"sync"

	"chat-mirror/domain"
	"chat-mirror/domain/event"
)

// Notification is the rendered title and message pair of one banner.
type Notification struct {
	Title string
	Body  string
}

// Render builds the banner for one incoming message. The title prefers
// the conversation name over the sender, and voice recordings show a
// placeholder instead of the blob URL.
func Render(chatName string, message domain.Message) Notification {
	title := chatName
	if title == "" {
		title = message.SenderName
	}
	if title == "" {
		title = "New message"
	}
	body := message.Content
	if message.IsVoice() {
		body = "[Voice message]"
	}
	return Notification{Title: title, Body: body}
}

// Feed collects banners for messages other people sent. It consumes the
// same snapshots the timelines do; a message notifies at most once no
// matter how many snapshots repeat it, and own messages never notify.
type Feed struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	names   map[string]string // chat id -> display name, fed by list updates
	pending []Notification
}

func NewFeed() *Feed {
	return &Feed{
		seen:  make(map[string]struct{}),
		names: make(map[string]string),
	}
}

func (f *Feed) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.ChatListUpdated:
		f.mu.Lock()
		for _, chat := range evt.Chats {
			f.names[chat.ID] = chat.Name
		}
		f.mu.Unlock()
	case event.MessagesUpdated:
		f.mu.Lock()
		for _, message := range evt.Messages {
			if message.IsSentByMe {
				continue
			}
			if _, ok := f.seen[message.ID]; ok {
				continue
			}
			f.seen[message.ID] = struct{}{}
			f.pending = append(f.pending, Render(f.names[message.ChatID], message))
		}
		f.mu.Unlock()
	}
	return nil
}

// Drain returns the banners collected so far, oldest first, and clears
// the pending list.
func (f *Feed) Drain() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}
