package runtime

import (
	"context"
	"log/slog"
	"sync"

	"chat-mirror/remote"
	"chat-mirror/repositories"
	"chat-mirror/runtime/workers"
)

// Bridge mirrors remote conversations into the local message cache.
//
// For each watched conversation it holds exactly one live subscription;
// asking to listen again for the same conversation cancels the previous
// subscription first, so the latest caller always wins and no change is
// delivered twice.
//
// Incoming batches are mapped defensively and handed to the background
// write queue. Enqueueing blocks when the queue is full, so a change
// batch larger than the buffer reaches the cache in full; the bridge
// context unblocks a stalled delivery on shutdown.
type Bridge struct {
	mu      sync.Mutex
	ctx     context.Context
	log     *slog.Logger
	store   remote.Store
	session remote.Session
	writes  chan<- workers.LocalWrite
	subs    map[string]remote.Subscription
}

func NewBridge(ctx context.Context, log *slog.Logger, store remote.Store,
	session remote.Session, writes chan<- workers.LocalWrite) *Bridge {
	return &Bridge{
		ctx:     ctx,
		log:     log,
		store:   store,
		session: session,
		writes:  writes,
		subs:    make(map[string]remote.Subscription),
	}
}

// Listen opens the live message subscription for a conversation,
// replacing any previous one for the same id.
// The subscription is opened outside the lock: backlog delivery may
// block on the write queue, and Close must stay callable meanwhile.
func (b *Bridge) Listen(chatID string) {
	b.mu.Lock()
	if prior, ok := b.subs[chatID]; ok {
		prior.Cancel()
		delete(b.subs, chatID)
	}
	b.mu.Unlock()

	sub := b.store.ListenMessages(chatID, func(changes []remote.DocChange, err error) {
		b.onChanges(chatID, changes, err)
	})

	b.mu.Lock()
	if prior, ok := b.subs[chatID]; ok {
		prior.Cancel()
	}
	b.subs[chatID] = sub
	b.mu.Unlock()
}

// Close cancels the subscription of one conversation. Mandatory when the
// conversation view goes away; a missed Close leaks a live server
// subscription.
func (b *Bridge) Close(chatID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[chatID]; ok {
		sub.Cancel()
		delete(b.subs, chatID)
	}
}

// CloseAll cancels every live subscription. Called on shutdown.
func (b *Bridge) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for chatID, sub := range b.subs {
		sub.Cancel()
		delete(b.subs, chatID)
	}
}

// Listening reports whether a conversation currently has a subscription.
func (b *Bridge) Listening(chatID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[chatID]
	return ok
}

func (b *Bridge) onChanges(chatID string, changes []remote.DocChange, err error) {
	if err != nil {
		// The subscription is dead; nothing further will arrive until the
		// conversation is opened again.
		b.log.Warn("Message subscription failed", "chatId", chatID, "error", err)
		return
	}

	me := b.session.CurrentUserID()
	for _, change := range changes {
		if change.Kind != remote.Added {
			// Edits and removals are reported by the same subscription but
			// the sync path only materializes additions.
			b.log.Debug("Ignoring non-added change", "chatId", chatID, "kind", change.Kind.String())
			continue
		}
		message := mapDocument(chatID, change.Doc, me)
		select {
		case b.writes <- workers.LocalWrite{Message: message}:
		case <-b.ctx.Done():
			b.log.Warn("Shutting down, abandoning delivery", "chatId", chatID, "messageId", message.MessageID)
			return
		}
	}
}

// mapDocument converts one remote message document into its cache row.
// Missing fields fall back to safe defaults so a malformed entry never
// blocks its siblings. IsSentByMe is decided here, once, against the
// session user at mapping time; it is never recomputed after storage.
func mapDocument(chatID string, doc remote.Document, currentUserID string) repositories.StoredMessage {
	messageID := doc.GetString("messageId")
	if messageID == "" {
		messageID = doc.ID
	}
	senderID := doc.GetString("senderId")
	return repositories.StoredMessage{
		MessageID:  messageID,
		ChatID:     chatID,
		Content:    doc.GetString("content"),
		IsSentByMe: senderID == currentUserID,
		Timestamp:  doc.GetInt64("timestamp"),
		SenderID:   senderID,
		VoiceURL:   doc.GetString("voiceUrl"),
	}
}
