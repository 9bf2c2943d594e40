package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"

	"chat-mirror/contract"
	"chat-mirror/domain"
	"chat-mirror/domain/event"
	"chat-mirror/errors"
	"chat-mirror/remote"
	"chat-mirror/repositories"
	"chat-mirror/runtime"
	"chat-mirror/search"
)

const voiceMessagePreview = "[Voice message]"

type IChatService interface {
	Open(chatID string)
	Close(chatID string)
	Watch(watcherID, chatID string, sink contract.EventSink)
	Unwatch(watcherID, chatID string)
	Messages(ctx context.Context, chatID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, chatID, content string) error
	SendVoiceMessage(ctx context.Context, chatID, audioPath string) error
	DeleteMessage(ctx context.Context, chatID, messageID string) error
	SearchMessages(ctx context.Context, chatID, terms string, limit int) ([]domain.Message, error)
	SendState() domain.SendState
}

// ChatService drives the message flows: watching a conversation, reading
// the local cache, and the remote send path.
type ChatService struct {
	log        *slog.Logger
	store      remote.Store
	blobs      remote.BlobStorage
	session    remote.Session
	repository repositories.IMessageRepository
	bridge     *runtime.Bridge
	registry   contract.IRegistry
	index      *search.Index
	events     chan<- event.DomainEvent
	clock      func() time.Time

	mu        sync.Mutex
	sendState domain.SendState
}

func NewChatService(log *slog.Logger, store remote.Store, blobs remote.BlobStorage,
	session remote.Session, repository repositories.IMessageRepository,
	bridge *runtime.Bridge, registry contract.IRegistry, index *search.Index,
	events chan<- event.DomainEvent) *ChatService {
	return &ChatService{
		log:        log,
		store:      store,
		blobs:      blobs,
		session:    session,
		repository: repository,
		bridge:     bridge,
		registry:   registry,
		index:      index,
		events:     events,
		clock:      time.Now,
		sendState:  domain.SendIdle{},
	}
}

// Open starts mirroring a conversation into the local cache.
func (s *ChatService) Open(chatID string) {
	s.bridge.Listen(chatID)
}

// Close stops mirroring. Mandatory when the conversation view goes away.
func (s *ChatService) Close(chatID string) {
	s.bridge.Close(chatID)
}

// Watch registers a sink for live local reads of a conversation and pushes
// the current cache state immediately, independent of listener timing.
func (s *ChatService) Watch(watcherID, chatID string, sink contract.EventSink) {
	s.registry.Subscribe(watcherID, event.MessagesTopic(chatID), sink)

	messages, err := s.repository.GetMessages(chatID)
	if err != nil {
		s.log.Warn("Initial cache read failed", "chatId", chatID, "error", err)
		return
	}
	snapshot := event.MessagesUpdated{
		ChatID: chatID,
		Messages: lo.Map(messages, func(m repositories.StoredMessage, _ int) domain.Message {
			return m.ToDomain()
		}),
	}
	if err := sink.Consume(context.Background(), snapshot); err != nil {
		s.log.Warn("Sink rejected initial snapshot", "chatId", chatID, "error", err)
	}
}

func (s *ChatService) Unwatch(watcherID, chatID string) {
	s.registry.Unsubscribe(watcherID, event.MessagesTopic(chatID))
}

// Messages reads a conversation from the local cache, newest first. For
// group chats the sender names are resolved best-effort from the users
// collection; a failed lookup shows "Unknown".
func (s *ChatService) Messages(ctx context.Context, chatID string) ([]domain.Message, error) {
	stored, err := s.repository.GetMessages(chatID)
	if err != nil {
		return nil, err
	}

	var names map[string]string
	if domain.IsGroupChat(chatID) {
		names = s.resolveSenderNames(ctx, stored)
	}

	return lo.Map(stored, func(m repositories.StoredMessage, _ int) domain.Message {
		message := m.ToDomain()
		if names != nil && m.SenderID != "" {
			if name, ok := names[m.SenderID]; ok {
				message.SenderName = name
			} else {
				message.SenderName = "Unknown"
			}
		}
		return message
	}), nil
}

func (s *ChatService) resolveSenderNames(ctx context.Context, stored []repositories.StoredMessage) map[string]string {
	senderIDs := lo.Uniq(lo.FilterMap(stored, func(m repositories.StoredMessage, _ int) (string, bool) {
		return m.SenderID, m.SenderID != ""
	}))

	names := make(map[string]string, len(senderIDs))
	for _, senderID := range senderIDs {
		user, err := s.store.GetUser(ctx, senderID)
		if err != nil {
			continue
		}
		if email := user.GetString("email"); email != "" {
			names[senderID] = email
		}
	}
	return names
}

// SendMessage writes a text message to the remote store.
//
// The three remote writes (conversation creation when absent, message
// document, summary update) are not atomic; a crash in between leaves a
// message without an updated summary. The listener echo, not this call,
// is what lands the message in the local cache.
func (s *ChatService) SendMessage(ctx context.Context, chatID, content string) error {
	s.setSendState(domain.Sending{})
	if err := s.sendText(ctx, chatID, content); err != nil {
		s.setSendState(domain.SendFailed{Message: err.Error()})
		return err
	}
	s.setSendState(domain.Sent{})
	return nil
}

func (s *ChatService) sendText(ctx context.Context, chatID, content string) error {
	if err := s.ensureChat(ctx, chatID); err != nil {
		return err
	}

	_, err := s.store.CreateMessage(ctx, chatID, "", map[string]any{
		"chatId":   chatID,
		"content":  content,
		"senderId": s.session.CurrentUserID(),
	})
	if err != nil {
		return fmt.Errorf("message write failed: %w", err)
	}

	return s.updateSummary(ctx, chatID, content)
}

// SendVoiceMessage uploads the recording first; only a successful upload
// is followed by a message document, so a failed upload never leaves a
// message with a dangling storage reference.
func (s *ChatService) SendVoiceMessage(ctx context.Context, chatID, audioPath string) error {
	s.setSendState(domain.Sending{})
	if err := s.sendVoice(ctx, chatID, audioPath); err != nil {
		s.setSendState(domain.SendFailed{Message: err.Error()})
		return err
	}
	s.setSendState(domain.Sent{})
	return nil
}

func (s *ChatService) sendVoice(ctx context.Context, chatID, audioPath string) error {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrAudioFileMissing, audioPath)
	}
	if kind := mimetype.Detect(data); !strings.HasPrefix(kind.String(), "audio/") && !kind.Is("video/mp4") {
		return fmt.Errorf("%w: detected %s", errors.ErrNotAudioFile, kind.String())
	}

	if err := s.ensureChat(ctx, chatID); err != nil {
		return err
	}

	messageID := s.store.NewMessageID(chatID)
	url, err := s.blobs.Upload(ctx, fmt.Sprintf("voiceMessages/%s/%s.m4a", chatID, messageID), data)
	if err != nil {
		return fmt.Errorf("voice upload failed: %w", err)
	}

	_, err = s.store.CreateMessage(ctx, chatID, messageID, map[string]any{
		"chatId":   chatID,
		"content":  url,
		"voiceUrl": url,
		"senderId": s.session.CurrentUserID(),
		"type":     "voice",
	})
	if err != nil {
		return fmt.Errorf("message write failed: %w", err)
	}

	return s.updateSummary(ctx, chatID, voiceMessagePreview)
}

// ensureChat creates the conversation document with placeholder metadata
// when it does not exist yet.
func (s *ChatService) ensureChat(ctx context.Context, chatID string) error {
	_, err := s.store.GetChat(ctx, chatID)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, errors.ErrDocumentNotFound) {
		return fmt.Errorf("chat lookup failed: %w", err)
	}
	return s.store.CreateChat(ctx, chatID, map[string]any{
		"name":                 "Unknown Chat",
		"lastMessage":          "",
		"lastMessageTimestamp": int64(0),
		"members":              []any{},
	})
}

func (s *ChatService) updateSummary(ctx context.Context, chatID, preview string) error {
	err := s.store.UpdateChat(ctx, chatID, map[string]any{
		"lastMessage":          preview,
		"lastMessageTimestamp": s.clock().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("summary update failed: %w", err)
	}
	return nil
}

// DeleteMessage removes a message from the local cache and search index
// only; the remote document remains untouched.
func (s *ChatService) DeleteMessage(_ context.Context, chatID, messageID string) error {
	if err := s.repository.Delete(messageID); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Delete(messageID); err != nil {
			s.log.Warn("Search index delete failed", "messageId", messageID, "error", err)
		}
	}

	messages, err := s.repository.GetMessages(chatID)
	if err != nil {
		return err
	}
	snapshot := event.MessagesUpdated{
		ChatID: chatID,
		Messages: lo.Map(messages, func(m repositories.StoredMessage, _ int) domain.Message {
			return m.ToDomain()
		}),
	}
	select {
	case s.events <- snapshot:
	default:
		s.log.Warn("Event channel full, dropping snapshot", "chatId", chatID)
	}
	return nil
}

// SearchMessages matches the local cache against free-text terms,
// returning matching messages in cache order (newest first).
func (s *ChatService) SearchMessages(ctx context.Context, chatID, terms string, limit int) ([]domain.Message, error) {
	if s.index == nil {
		return nil, nil
	}
	ids, err := s.index.Search(ctx, chatID, terms, limit)
	if err != nil {
		return nil, err
	}
	matching := lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} })

	stored, err := s.repository.GetMessages(chatID)
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(stored, func(m repositories.StoredMessage, _ int) (domain.Message, bool) {
		_, ok := matching[m.MessageID]
		return m.ToDomain(), ok
	}), nil
}

// SendState returns the state of the last send invocation.
func (s *ChatService) SendState() domain.SendState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendState
}

func (s *ChatService) setSendState(state domain.SendState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendState = state
}
