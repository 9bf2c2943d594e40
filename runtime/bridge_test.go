package runtime

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"chat-mirror/auth"
	"chat-mirror/remote"
	"chat-mirror/remote/memory"
	"chat-mirror/runtime/workers"
)

func bridgeFixture(t *testing.T) (*Bridge, *memory.Store, *auth.Session, chan workers.LocalWrite) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := memory.NewStore(log)
	session := auth.NewSession()
	writes := make(chan workers.LocalWrite, 64)
	return NewBridge(context.Background(), log, store, session, writes), store, session, writes
}

func TestBridge_MirrorsAddedMessages(t *testing.T) {
	req := require.New(t)
	bridge, store, session, writes := bridgeFixture(t)
	session.SetCurrentUser("alice", "")

	bridge.Listen("chat-1")
	_, err := store.CreateMessage(context.Background(), "chat-1", "", map[string]any{
		"content":  "hello",
		"senderId": "bob",
	})
	req.NoError(err)

	write := <-writes
	req.Equal("hello", write.Message.Content)
	req.Equal("chat-1", write.Message.ChatID)
	req.Equal("bob", write.Message.SenderID)
	req.False(write.Message.IsSentByMe)
}

func TestBridge_BacklogDeliveredOnListen(t *testing.T) {
	req := require.New(t)
	bridge, store, _, writes := bridgeFixture(t)

	// Given two messages written before anyone listens
	for _, content := range []string{"one", "two"} {
		_, err := store.CreateMessage(context.Background(), "chat-1", "", map[string]any{
			"content": content, "senderId": "bob",
		})
		req.NoError(err)
	}

	// When the conversation is opened
	bridge.Listen("chat-1")

	// Then the backlog arrives in commit order
	req.Equal("one", (<-writes).Message.Content)
	req.Equal("two", (<-writes).Message.Content)
}

func TestBridge_LatestListenerWins(t *testing.T) {
	req := require.New(t)
	bridge, store, _, _ := bridgeFixture(t)

	bridge.Listen("chat-1")
	bridge.Listen("chat-1")

	// The second Listen canceled the first subscription
	req.Equal(1, store.MessageListenerCount("chat-1"))
	req.True(bridge.Listening("chat-1"))

	bridge.Close("chat-1")
	req.Equal(0, store.MessageListenerCount("chat-1"))
	req.False(bridge.Listening("chat-1"))
}

func TestBridge_BacklogLargerThanQueueIsNotDropped(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := memory.NewStore(log)
	writes := make(chan workers.LocalWrite, 1)
	bridge := NewBridge(context.Background(), log, store, auth.NewSession(), writes)

	// Given a backlog bigger than the write queue
	for _, content := range []string{"one", "two", "three"} {
		_, err := store.CreateMessage(context.Background(), "chat-1", "", map[string]any{
			"content": content, "senderId": "bob",
		})
		req.NoError(err)
	}

	// When the conversation is opened, delivery blocks on the full queue
	// instead of dropping, so a slow consumer still sees every message.
	go bridge.Listen("chat-1")

	for _, want := range []string{"one", "two", "three"} {
		select {
		case write := <-writes:
			req.Equal(want, write.Message.Content)
		case <-time.After(time.Second):
			t.Fatalf("message %q never delivered", want)
		}
	}
	bridge.CloseAll()
}

func TestBridge_ShutdownUnblocksStalledDelivery(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := memory.NewStore(log)
	ctx, cancel := context.WithCancel(context.Background())
	writes := make(chan workers.LocalWrite) // nobody consumes
	bridge := NewBridge(ctx, log, store, auth.NewSession(), writes)

	_, err := store.CreateMessage(context.Background(), "chat-1", "", map[string]any{
		"content": "stuck", "senderId": "bob",
	})
	req.NoError(err)

	done := make(chan struct{})
	go func() {
		bridge.Listen("chat-1")
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listen never returned after shutdown")
	}
	bridge.CloseAll()
}

func TestBridge_IgnoresNonAddedChanges(t *testing.T) {
	req := require.New(t)
	bridge, _, _, writes := bridgeFixture(t)

	doc, err := remote.NewDocument("m1", map[string]any{"content": "edited"})
	req.NoError(err)
	bridge.onChanges("chat-1", []remote.DocChange{
		{Kind: remote.Modified, Doc: doc},
		{Kind: remote.Removed, Doc: doc},
	}, nil)

	req.Empty(writes)
}

func TestBridge_SubscriptionFailureIsSilent(t *testing.T) {
	req := require.New(t)
	bridge, store, _, writes := bridgeFixture(t)

	bridge.Listen("chat-1")
	store.FailMessageListeners("chat-1", errors.New("server hiccup"))

	// No write is produced and nothing panics; the conversation simply
	// stops receiving updates until reopened.
	req.Empty(writes)
}

func TestBridge_MapDocumentDefaults(t *testing.T) {
	req := require.New(t)

	// A malformed document with every field missing still maps.
	doc, err := remote.NewDocument("fallback-id", map[string]any{})
	req.NoError(err)
	message := mapDocument("chat-1", doc, "alice")

	req.Equal("fallback-id", message.MessageID)
	req.Equal("chat-1", message.ChatID)
	req.Empty(message.Content)
	req.False(message.IsSentByMe)
	req.Zero(message.Timestamp)
}

func TestBridge_IsSentByMeFrozenAtMappingTime(t *testing.T) {
	req := require.New(t)
	bridge, store, session, writes := bridgeFixture(t)
	session.SetCurrentUser("alice", "")

	bridge.Listen("chat-1")
	_, err := store.CreateMessage(context.Background(), "chat-1", "", map[string]any{
		"content": "mine", "senderId": "alice",
	})
	req.NoError(err)

	write := <-writes
	req.True(write.Message.IsSentByMe)

	// A later session change does not affect what was already mapped.
	session.SetCurrentUser("bob", "")
	req.True(write.Message.IsSentByMe)
}
