// Package search maintains a full-text index over the local message cache.
// The index is derived data: it is rebuilt from cache writes and never
// consulted for correctness of the cache itself.
package search

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"

	"chat-mirror/repositories"
)

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Upsert indexes a cached message, replacing any previous version of the
// same message id.
func (i *Index) Upsert(message repositories.StoredMessage) error {
	doc := bluge.NewDocument(message.MessageID).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("chatId", message.ChatID).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

// Delete drops a message from the index.
func (i *Index) Delete(messageID string) error {
	return i.writer.Delete(bluge.Identifier(messageID))
}

// Search returns the ids of cached messages in one conversation whose
// content matches the given terms, best match first.
func (i *Index) Search(ctx context.Context, chatID, terms string, limit int) ([]string, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Closing index reader failed", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(chatID).SetField("chatId"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var ids []string
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
