// Package domain contains the core concepts of the messaging client:
// messages, conversations, and the closed state sets exposed to the UI.
package domain

// Message is the display-ready view of a cached message.
// IsSentByMe is fixed at the moment the message entered the local cache
// and is never recomputed, even if the session user changes afterwards.
type Message struct {
	ID         string
	ChatID     string
	Content    string
	IsSentByMe bool
	Timestamp  int64 // milliseconds since epoch, assigned by the remote store
	SenderID   string
	SenderName string // resolved for group chats only, empty otherwise
	VoiceURL   string
}

// IsVoice reports whether the message carries a voice recording instead of text.
func (m Message) IsVoice() bool {
	return m.VoiceURL != ""
}
