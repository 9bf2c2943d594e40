package domain

import (
	"strings"
	"time"
)

// Chat is a conversation summary as shown in the conversation list.
// Name is resolved on read from the other participant's identity and is
// never persisted.
type Chat struct {
	ID          string
	Name        string
	LastMessage string
	Time        string // formatted clock label of the last message
	UnreadCount int
	Members     []string
}

// Group is a conversation without 1:1 name resolution. The member list size
// is displayed instead of a resolved peer name.
type Group struct {
	ID          string
	Name        string
	LastMessage string
	Members     []string
}

// IsGroupChat tells whether a conversation identifier designates a group.
func IsGroupChat(chatID string) bool {
	return strings.HasPrefix(chatID, "group_")
}

// ClockLabel renders a millisecond timestamp as an HH:mm label.
// Zero or missing timestamps render as an empty string.
func ClockLabel(millis int64) string {
	if millis == 0 {
		return ""
	}
	return time.UnixMilli(millis).Format("15:04")
}
