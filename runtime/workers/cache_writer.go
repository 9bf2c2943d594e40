package workers

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"chat-mirror/domain"
	"chat-mirror/domain/event"
	"chat-mirror/repositories"
	"chat-mirror/search"
)

// LocalWrite is one pending upsert into the message cache, produced by the
// sync bridge and consumed by the writer pool.
type LocalWrite struct {
	Message repositories.StoredMessage
}

// CacheWriter drains the write queue into the local message cache and the
// search index, then re-reads the conversation and emits a fresh snapshot
// so live local reads stay current.
//
// Several CacheWriters run concurrently; completion order is not
// guaranteed. Writes are keyed upserts, so the stored state converges
// regardless of interleaving.
type CacheWriter struct {
	log        *slog.Logger
	writes     chan LocalWrite
	repository repositories.IMessageRepository
	index      *search.Index
	events     chan event.DomainEvent
}

func NewCacheWriter(log *slog.Logger, writes chan LocalWrite,
	repository repositories.IMessageRepository, index *search.Index,
	events chan event.DomainEvent) *CacheWriter {
	return &CacheWriter{log: log, writes: writes, repository: repository, index: index, events: events}
}

func (w *CacheWriter) Run(ctx context.Context) error {
	for {
		select {
		case write := <-w.writes:
			w.apply(write.Message)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping cache writer")
			return nil
		}
	}
}

func (w *CacheWriter) apply(message repositories.StoredMessage) {
	if err := w.repository.Upsert(message); err != nil {
		w.log.Error("Cache write failed", "messageId", message.MessageID, "error", err)
		return
	}
	if w.index != nil {
		if err := w.index.Upsert(message); err != nil {
			w.log.Warn("Search index update failed", "messageId", message.MessageID, "error", err)
		}
	}

	messages, err := w.repository.GetMessages(message.ChatID)
	if err != nil {
		w.log.Error("Cache read back failed", "chatId", message.ChatID, "error", err)
		return
	}
	snapshot := event.MessagesUpdated{
		ChatID: message.ChatID,
		Messages: lo.Map(messages, func(m repositories.StoredMessage, _ int) domain.Message {
			return m.ToDomain()
		}),
	}
	select {
	case w.events <- snapshot:
	default:
		w.log.Warn("Event channel full, dropping snapshot", "chatId", message.ChatID)
	}
}
