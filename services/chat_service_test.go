package services

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	db "github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-mirror/auth"
	"chat-mirror/domain"
	"chat-mirror/domain/event"
	"chat-mirror/remote/memory"
	"chat-mirror/repositories"
	"chat-mirror/runtime"
	"chat-mirror/runtime/workers"
)

type chatFixture struct {
	service *ChatService
	store   *memory.Store
	blobs   *memory.Blobs
	session *auth.Session
	repo    repositories.MessageRepository
	writes  chan workers.LocalWrite
	events  chan event.DomainEvent
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	req.NoError(err)
	t.Cleanup(func() { db.CleanupDB(badgerDB, blugeWriter) })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := memory.NewStore(log)
	blobs := memory.NewBlobs()
	session := auth.NewSession()
	session.SetCurrentUser("alice", "")

	repo := repositories.NewMessageRepository(badgerDB, log)
	writes := make(chan workers.LocalWrite, 64)
	events := make(chan event.DomainEvent, 64)
	bridge := runtime.NewBridge(context.Background(), log, store, session, writes)
	t.Cleanup(bridge.CloseAll)
	registry := runtime.NewRegistry()

	service := NewChatService(log, store, blobs, session, repo, bridge, registry, nil, events)
	return &chatFixture{
		service: service, store: store, blobs: blobs, session: session,
		repo: repo, writes: writes, events: events,
	}
}

func TestChatService_SendCreatesChatThenMessageThenSummary(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	// When sending into a conversation that does not exist yet
	req.NoError(f.service.SendMessage(ctx, "chat-1", "hello"))

	// Then the writes happen in order: chat creation, message, summary
	journal := f.store.Journal()
	req.Len(journal, 3)
	req.Equal([]string{"chats", "messages", "chats"},
		lo.Map(journal, func(op memory.Op, _ int) string { return op.Collection }))
	req.Equal("create", journal[0].Kind)
	req.Equal("create", journal[1].Kind)
	req.Equal("update", journal[2].Kind)

	// And the placeholder chat carries default metadata
	chat, err := f.store.GetChat(ctx, "chat-1")
	req.NoError(err)
	req.Equal("Unknown Chat", chat.GetString("name"))
	req.Equal("hello", chat.GetString("lastMessage"))

	req.IsType(domain.Sent{}, f.service.SendState())
}

func TestChatService_SendSkipsCreationWhenChatExists(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	req.NoError(f.store.CreateChat(ctx, "chat-1", map[string]any{
		"name": "Bob", "members": []any{"alice", "bob"},
	}))

	req.NoError(f.service.SendMessage(ctx, "chat-1", "hi bob"))

	journal := f.store.Journal()
	// Only the pre-existing create plus message create and summary update
	req.Equal([]string{"chats", "messages", "chats"},
		lo.Map(journal, func(op memory.Op, _ int) string { return op.Collection }))
	chat, err := f.store.GetChat(ctx, "chat-1")
	req.NoError(err)
	req.Equal("Bob", chat.GetString("name"))
}

func TestChatService_SentMessageEchoesThroughListener(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	f.service.Open("chat-1")
	req.NoError(f.service.SendMessage(ctx, "chat-1", "round trip"))

	// The listener echo carries what was sent, marked as ours
	write := <-f.writes
	req.Equal("round trip", write.Message.Content)
	req.Equal("alice", write.Message.SenderID)
	req.True(write.Message.IsSentByMe)
	req.Positive(write.Message.Timestamp)
}

func TestChatService_VoiceUploadFailureAbortsSend(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	// Given a valid audio file but a failing storage backend
	path := writeAudioFile(t)
	f.blobs.FailUploads(os.ErrDeadlineExceeded)
	req.NoError(f.store.CreateChat(ctx, "chat-1", map[string]any{"name": "Bob"}))

	err := f.service.SendVoiceMessage(ctx, "chat-1", path)
	req.Error(err)
	req.IsType(domain.SendFailed{}, f.service.SendState())

	// No message document was written
	messageOps := lo.Filter(f.store.Journal(), func(op memory.Op, _ int) bool {
		return op.Collection == "messages"
	})
	req.Empty(messageOps)
}

func TestChatService_VoiceMessageUploadsBeforeDocument(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	path := writeAudioFile(t)
	req.NoError(f.service.SendVoiceMessage(ctx, "chat-1", path))

	journal := f.store.Journal()
	messageOps := lo.Filter(journal, func(op memory.Op, _ int) bool {
		return op.Collection == "messages"
	})
	req.Len(messageOps, 1)

	// The recording sits under the conversation's storage folder
	req.True(f.blobs.Exists("voiceMessages/chat-1/" + messageOps[0].DocID + ".m4a"))

	// And the summary shows the voice placeholder
	chat, err := f.store.GetChat(ctx, "chat-1")
	req.NoError(err)
	req.Equal("[Voice message]", chat.GetString("lastMessage"))
}

func TestChatService_VoiceRejectsMissingFile(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	err := f.service.SendVoiceMessage(context.Background(), "chat-1", "/nowhere/audio.m4a")
	req.Error(err)
	req.Empty(f.store.Journal())
}

func TestChatService_VoiceRejectsNonAudioFile(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	path := filepath.Join(t.TempDir(), "notes.txt")
	req.NoError(os.WriteFile(path, []byte("plain text, not audio"), 0o600))

	err := f.service.SendVoiceMessage(context.Background(), "chat-1", path)
	req.Error(err)
	req.Empty(f.store.Journal())
}

func TestChatService_DeleteIsLocalOnly(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	// Given a message present both remotely and in the cache
	doc, err := f.store.CreateMessage(ctx, "chat-1", "", map[string]any{
		"content": "remove me", "senderId": "bob",
	})
	req.NoError(err)
	req.NoError(f.repo.Upsert(repositories.StoredMessage{
		MessageID: doc.ID, ChatID: "chat-1", Content: "remove me", Timestamp: 1000,
	}))

	req.NoError(f.service.DeleteMessage(ctx, "chat-1", doc.ID))

	// The cache row is gone
	messages, err := f.service.Messages(ctx, "chat-1")
	req.NoError(err)
	req.Empty(messages)

	// The remote journal shows no delete; the document was only created
	req.Len(f.store.Journal(), 1)
	req.Equal("create", f.store.Journal()[0].Kind)
}

func TestChatService_MessagesResolvesGroupSenders(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	req.NoError(f.store.SetUser(ctx, "bob", map[string]any{"email": "bob@example.com"}))
	req.NoError(f.repo.Upsert(repositories.StoredMessage{
		MessageID: "m1", ChatID: "group_team", Content: "from bob",
		SenderID: "bob", Timestamp: 1000,
	}))
	req.NoError(f.repo.Upsert(repositories.StoredMessage{
		MessageID: "m2", ChatID: "group_team", Content: "from a ghost",
		SenderID: "ghost", Timestamp: 2000,
	}))

	messages, err := f.service.Messages(ctx, "group_team")
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("Unknown", messages[0].SenderName)
	req.Equal("bob@example.com", messages[1].SenderName)
}

func TestChatService_SendStateTransitions(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	req.IsType(domain.SendIdle{}, f.service.SendState())
	req.NoError(f.service.SendMessage(context.Background(), "chat-1", "x"))
	req.IsType(domain.Sent{}, f.service.SendState())
}

// writeAudioFile drops a minimal M4A header to disk, enough for content
// type detection.
func writeAudioFile(t *testing.T) string {
	t.Helper()
	data := append([]byte{0x00, 0x00, 0x00, 0x1c}, []byte("ftypM4A ")...)
	data = append(data, []byte{0x00, 0x00, 0x02, 0x00}...)
	data = append(data, []byte("M4A isommp42")...)
	path := filepath.Join(t.TempDir(), "note.m4a")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
