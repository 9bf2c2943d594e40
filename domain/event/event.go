// Package event defines the domain events pushed to registered sinks
// whenever the local state changes.
package event

import "chat-mirror/domain"

// DomainEvent is routed to sinks subscribed to its topic.
type DomainEvent interface {
	Topic() string
}

// MessagesTopic is the routing key for live reads of one conversation.
func MessagesTopic(chatID string) string { return "messages:" + chatID }

// ChatsTopic is the routing key for one user's conversation list.
func ChatsTopic(userID string) string { return "chats:" + userID }

// GroupsTopic is the routing key for one user's group list.
func GroupsTopic(userID string) string { return "groups:" + userID }

// GroupTopic is the routing key for a single group document.
func GroupTopic(groupID string) string { return "group:" + groupID }

// ThemeTopic is the routing key for display settings changes.
const ThemeTopic = "settings:theme"

// MessagesUpdated carries a full snapshot of a conversation's cached
// messages, newest first. Every local write re-emits the whole list.
type MessagesUpdated struct {
	ChatID   string
	Messages []domain.Message
}

func (e MessagesUpdated) Topic() string { return MessagesTopic(e.ChatID) }

// ChatListUpdated fully replaces the previous conversation list.
type ChatListUpdated struct {
	UserID string
	Chats  []domain.Chat
}

func (e ChatListUpdated) Topic() string { return ChatsTopic(e.UserID) }

// GroupListUpdated fully replaces the previous group list.
type GroupListUpdated struct {
	UserID string
	Groups []domain.Group
}

func (e GroupListUpdated) Topic() string { return GroupsTopic(e.UserID) }

// GroupUpdated carries the latest state of a single observed group.
type GroupUpdated struct {
	Group domain.Group
}

func (e GroupUpdated) Topic() string { return GroupTopic(e.Group.ID) }

// ThemeChanged signals a dark mode toggle.
type ThemeChanged struct {
	Dark bool
}

func (e ThemeChanged) Topic() string { return ThemeTopic }
