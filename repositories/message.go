//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"chat-mirror/domain"
)

// StoredMessage is the row shape of the local message cache.
// IsSentByMe is fixed at write time and persisted as-is.
type StoredMessage struct {
	MessageID  string
	ChatID     string
	Content    string
	IsSentByMe bool
	Timestamp  int64 // milliseconds since epoch
	SenderID   string
	VoiceURL   string
}

type IMessageRepository interface {
	Upsert(message StoredMessage) error
	Delete(messageID string) error
	GetMessages(chatID string) ([]StoredMessage, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// Key layout:
//
//	msg:{chat_id}:{timestamp_padded}:{message_id}  -> document bytes
//	msgid:{message_id}                             -> primary key
//
// The 19-digit zero padding keeps keys in chronological lexicographic
// order so a prefix scan returns a conversation sorted by time. The id
// index makes the upsert idempotent: re-delivery of a message id replaces
// the previous row even when the timestamp changed.
func primaryKey(m StoredMessage) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ChatID, m.Timestamp, m.MessageID))
}

func indexKey(messageID string) []byte {
	return []byte("msgid:" + messageID)
}

// Upsert stores a message, replacing any row sharing the same MessageID.
func (m MessageRepository) Upsert(message StoredMessage) error {
	value, err := marshalMessage(message)
	if err != nil {
		return err
	}
	key := primaryKey(message)

	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(message.MessageID))
		switch err {
		case nil:
			var previous []byte
			if previous, err = item.ValueCopy(nil); err != nil {
				return err
			}
			if string(previous) != string(key) {
				if err = txn.Delete(previous); err != nil {
					return err
				}
			}
		case badger.ErrKeyNotFound:
			// first delivery
		default:
			return err
		}

		if err = txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(indexKey(message.MessageID), key)
	})
}

// Delete removes a message from the cache. Unknown identifiers are a no-op;
// the remote store is never touched.
func (m MessageRepository) Delete(messageID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(messageID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err = txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(indexKey(messageID))
	})
}

// GetMessages returns a conversation's cached messages ordered by
// timestamp descending, using a reverse prefix scan.
func (m MessageRepository) GetMessages(chatID string) ([]StoredMessage, error) {
	var rawValues [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", chatID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible timestamp, then walk backwards.
		seekKey := append(append([]byte(nil), prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				rawValues = append(rawValues, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]StoredMessage, 0, len(rawValues))
	for _, raw := range rawValues {
		message, err := unmarshalMessage(raw)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func marshalMessage(m StoredMessage) ([]byte, error) {
	fields, err := structpb.NewStruct(map[string]any{
		"messageId":  m.MessageID,
		"chatId":     m.ChatID,
		"content":    m.Content,
		"isSentByMe": m.IsSentByMe,
		"timestamp":  m.Timestamp,
		"senderId":   m.SenderID,
		"voiceUrl":   m.VoiceURL,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(fields)
}

func unmarshalMessage(data []byte) (StoredMessage, error) {
	var fields structpb.Struct
	if err := proto.Unmarshal(data, &fields); err != nil {
		return StoredMessage{}, err
	}
	f := fields.GetFields()
	return StoredMessage{
		MessageID:  f["messageId"].GetStringValue(),
		ChatID:     f["chatId"].GetStringValue(),
		Content:    f["content"].GetStringValue(),
		IsSentByMe: f["isSentByMe"].GetBoolValue(),
		Timestamp:  int64(f["timestamp"].GetNumberValue()),
		SenderID:   f["senderId"].GetStringValue(),
		VoiceURL:   f["voiceUrl"].GetStringValue(),
	}, nil
}

// ToDomain converts a cached row into its display shape.
func (m StoredMessage) ToDomain() domain.Message {
	return domain.Message{
		ID:         m.MessageID,
		ChatID:     m.ChatID,
		Content:    m.Content,
		IsSentByMe: m.IsSentByMe,
		Timestamp:  m.Timestamp,
		SenderID:   m.SenderID,
		VoiceURL:   m.VoiceURL,
	}
}
