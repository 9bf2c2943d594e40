package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-mirror/domain"
	"chat-mirror/domain/event"
)

func TestTimeline_KeepsLatestSnapshotOfItsChat(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("chat-1")
	ctx := context.Background()

	req.NoError(timeline.Consume(ctx, event.MessagesUpdated{
		ChatID:   "chat-1",
		Messages: []domain.Message{{ID: "m1", Content: "old"}},
	}))
	req.NoError(timeline.Consume(ctx, event.MessagesUpdated{
		ChatID:   "chat-1",
		Messages: []domain.Message{{ID: "m2", Content: "new"}, {ID: "m1", Content: "old"}},
	}))

	messages := timeline.Messages()
	req.Len(messages, 2)
	req.Equal("new", messages[0].Content)
}

func TestTimeline_IgnoresOtherConversations(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("chat-1")

	req.NoError(timeline.Consume(context.Background(), event.MessagesUpdated{
		ChatID:   "chat-2",
		Messages: []domain.Message{{ID: "m1"}},
	}))

	req.Empty(timeline.Messages())
}

func TestChatListAndGroupList(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	chats := NewChatList()
	req.NoError(chats.Consume(ctx, event.ChatListUpdated{
		UserID: "alice",
		Chats:  []domain.Chat{{ID: "chat-1", Name: "bob@example.com"}},
	}))
	req.Len(chats.Chats(), 1)

	groups := NewGroupList()
	req.NoError(groups.Consume(ctx, event.GroupListUpdated{
		UserID: "alice",
		Groups: []domain.Group{{ID: "group_1", Name: "team"}},
	}))
	req.Len(groups.Groups(), 1)
}
