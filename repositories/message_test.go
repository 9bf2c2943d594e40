package repositories

import (
	"testing"

	"github.com/google/uuid"
	db "github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_UpsertAndGet(t *testing.T) {
	req := require.New(t)
	_, log, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer db.CleanupDB(badgerDB, blugeWriter)

	repo := NewMessageRepository(badgerDB, log)

	// Given three messages in one conversation
	chatID := "chat-1"
	for i, content := range []string{"first", "second", "third"} {
		req.NoError(repo.Upsert(StoredMessage{
			MessageID: uuid.NewString(),
			ChatID:    chatID,
			Content:   content,
			Timestamp: int64(1000 + i),
			SenderID:  "alice",
		}))
	}

	// When reading the conversation back
	messages, err := repo.GetMessages(chatID)
	req.NoError(err)

	// Then they come back newest first
	req.Len(messages, 3)
	req.Equal("third", messages[0].Content)
	req.Equal("second", messages[1].Content)
	req.Equal("first", messages[2].Content)
}

func TestMessageRepository_UpsertIsIdempotent(t *testing.T) {
	req := require.New(t)
	_, log, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer db.CleanupDB(badgerDB, blugeWriter)

	repo := NewMessageRepository(badgerDB, log)

	// Given a message delivered twice with diverging content and timestamp
	messageID := uuid.NewString()
	req.NoError(repo.Upsert(StoredMessage{
		MessageID: messageID,
		ChatID:    "chat-1",
		Content:   "draft",
		Timestamp: 1000,
	}))
	req.NoError(repo.Upsert(StoredMessage{
		MessageID: messageID,
		ChatID:    "chat-1",
		Content:   "final",
		Timestamp: 2000,
	}))

	// Then a single row remains, holding the latest write
	messages, err := repo.GetMessages("chat-1")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("final", messages[0].Content)
	req.Equal(int64(2000), messages[0].Timestamp)
}

func TestMessageRepository_Delete(t *testing.T) {
	req := require.New(t)
	_, log, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer db.CleanupDB(badgerDB, blugeWriter)

	repo := NewMessageRepository(badgerDB, log)

	messageID := uuid.NewString()
	req.NoError(repo.Upsert(StoredMessage{
		MessageID: messageID,
		ChatID:    "chat-1",
		Content:   "bye",
		Timestamp: 1000,
	}))

	// When deleting it
	req.NoError(repo.Delete(messageID))

	// Then the conversation is empty
	messages, err := repo.GetMessages("chat-1")
	req.NoError(err)
	req.Empty(messages)
}

func TestMessageRepository_DeleteUnknownIsNoOp(t *testing.T) {
	req := require.New(t)
	_, log, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer db.CleanupDB(badgerDB, blugeWriter)

	repo := NewMessageRepository(badgerDB, log)

	req.NoError(repo.Delete("never-seen"))
}

func TestMessageRepository_ConversationsAreIsolated(t *testing.T) {
	req := require.New(t)
	_, log, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer db.CleanupDB(badgerDB, blugeWriter)

	repo := NewMessageRepository(badgerDB, log)

	req.NoError(repo.Upsert(StoredMessage{
		MessageID: uuid.NewString(), ChatID: "chat-a", Content: "to a", Timestamp: 1000,
	}))
	req.NoError(repo.Upsert(StoredMessage{
		MessageID: uuid.NewString(), ChatID: "chat-b", Content: "to b", Timestamp: 1000,
	}))

	messages, err := repo.GetMessages("chat-a")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("to a", messages[0].Content)
}

func TestStoredMessage_RoundTrip(t *testing.T) {
	req := require.New(t)

	original := StoredMessage{
		MessageID:  uuid.NewString(),
		ChatID:     "chat-1",
		Content:    "mem://voiceMessages/chat-1/m.m4a",
		IsSentByMe: true,
		Timestamp:  1234567890123,
		SenderID:   "alice",
		VoiceURL:   "mem://voiceMessages/chat-1/m.m4a",
	}

	raw, err := marshalMessage(original)
	req.NoError(err)
	decoded, err := unmarshalMessage(raw)
	req.NoError(err)
	req.Equal(original, decoded)
	req.True(decoded.ToDomain().IsVoice())
}
