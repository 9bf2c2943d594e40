package sink

import (
	"context"
	"sync"

	"chat-mirror/domain"
	"chat-mirror/domain/event"
)

// ChatList holds the latest conversation list pushed for a user.
type ChatList struct {
	mu    sync.RWMutex
	chats []domain.Chat
}

func NewChatList() *ChatList {
	return &ChatList{}
}

func (c *ChatList) Consume(_ context.Context, e event.DomainEvent) error {
	if evt, ok := e.(event.ChatListUpdated); ok {
		c.mu.Lock()
		c.chats = evt.Chats
		c.mu.Unlock()
	}
	return nil
}

func (c *ChatList) Chats() []domain.Chat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chats
}

// GroupList holds the latest group list pushed for a user.
type GroupList struct {
	mu     sync.RWMutex
	groups []domain.Group
}

func NewGroupList() *GroupList {
	return &GroupList{}
}

func (g *GroupList) Consume(_ context.Context, e event.DomainEvent) error {
	if evt, ok := e.(event.GroupListUpdated); ok {
		g.mu.Lock()
		g.groups = evt.Groups
		g.mu.Unlock()
	}
	return nil
}

func (g *GroupList) Groups() []domain.Group {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.groups
}
