package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-mirror/domain"
	"chat-mirror/domain/event"
)

func TestRender_TitleFallbacks(t *testing.T) {
	req := require.New(t)

	n := Render("release crew", domain.Message{Content: "ship it", SenderName: "bob@example.com"})
	req.Equal("release crew", n.Title)
	req.Equal("ship it", n.Body)

	n = Render("", domain.Message{Content: "hi", SenderName: "bob@example.com"})
	req.Equal("bob@example.com", n.Title)

	n = Render("", domain.Message{Content: "hi"})
	req.Equal("New message", n.Title)
}

func TestRender_VoicePlaceholder(t *testing.T) {
	req := require.New(t)

	n := Render("Bob", domain.Message{VoiceURL: "mem://voiceMessages/chat-1/m.m4a"})
	req.Equal("[Voice message]", n.Body)
}

func TestFeed_CollectsIncomingOnce(t *testing.T) {
	req := require.New(t)
	feed := NewFeed()
	ctx := context.Background()

	req.NoError(feed.Consume(ctx, event.ChatListUpdated{UserID: "alice", Chats: []domain.Chat{
		{ID: "chat-1", Name: "Bob"},
	}}))

	messages := []domain.Message{
		{ID: "m1", ChatID: "chat-1", Content: "hello", SenderID: "bob"},
		{ID: "m2", ChatID: "chat-1", Content: "mine", IsSentByMe: true},
	}
	req.NoError(feed.Consume(ctx, event.MessagesUpdated{ChatID: "chat-1", Messages: messages}))
	// Snapshots repeat the full list; an already-notified message stays quiet.
	req.NoError(feed.Consume(ctx, event.MessagesUpdated{ChatID: "chat-1", Messages: messages}))

	banners := feed.Drain()
	req.Len(banners, 1)
	req.Equal("Bob", banners[0].Title)
	req.Equal("hello", banners[0].Body)

	// Drain clears the pending list
	req.Empty(feed.Drain())
}
