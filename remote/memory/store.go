// Package memory is an in-process implementation of the remote contract.
// It backs the demo binaries and the test suite: live queries are fanned
// out synchronously and every mutation is recorded in a journal so tests
// can assert write ordering.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-mirror/errors"
	"chat-mirror/remote"
)

// Op is one journaled mutation, in commit order.
type Op struct {
	Kind       string // "create", "update"
	Collection string // "chats", "messages", "groups", "users"
	DocID      string
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() { s.once.Do(s.cancel) }

type Store struct {
	mu    sync.Mutex
	log   *slog.Logger
	clock func() time.Time

	nextSub int

	chats    map[string]remote.Document
	messages map[string][]remote.Document // per chat, ascending timestamp order
	groups   map[string]remote.Document
	users    map[string]remote.Document

	msgSubs      map[string]map[int]remote.MessageHandler  // keyed by chat id
	chatSubs     map[string]map[int]remote.SnapshotHandler // keyed by user id
	groupSubs    map[string]map[int]remote.SnapshotHandler // keyed by user id
	groupDocSubs map[string]map[int]remote.DocHandler      // keyed by group id

	journal []Op
}

func NewStore(log *slog.Logger) *Store {
	return &Store{
		log:          log,
		clock:        time.Now,
		chats:        make(map[string]remote.Document),
		messages:     make(map[string][]remote.Document),
		groups:       make(map[string]remote.Document),
		users:        make(map[string]remote.Document),
		msgSubs:      make(map[string]map[int]remote.MessageHandler),
		chatSubs:     make(map[string]map[int]remote.SnapshotHandler),
		groupSubs:    make(map[string]map[int]remote.SnapshotHandler),
		groupDocSubs: make(map[string]map[int]remote.DocHandler),
	}
}

// SetClock overrides the server clock. Test hook.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// Journal returns a copy of all mutations committed so far, in order.
func (s *Store) Journal() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.journal...)
}

func (s *Store) record(kind, collection, docID string) {
	s.journal = append(s.journal, Op{Kind: kind, Collection: collection, DocID: docID})
}

func (s *Store) GetChat(_ context.Context, chatID string) (remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.chats[chatID]
	if !ok {
		return remote.Document{}, fmt.Errorf("chat %s: %w", chatID, errors.ErrDocumentNotFound)
	}
	return doc, nil
}

func (s *Store) CreateChat(_ context.Context, chatID string, fields map[string]any) error {
	doc, err := remote.NewDocument(chatID, fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.chats[chatID] = doc
	s.record("create", "chats", chatID)
	notify := s.chatSnapshotsLocked()
	s.mu.Unlock()

	deliver(notify)
	return nil
}

func (s *Store) UpdateChat(_ context.Context, chatID string, fields map[string]any) error {
	s.mu.Lock()
	existing, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("chat %s: %w", chatID, errors.ErrDocumentNotFound)
	}
	merged := existing.Fields()
	for k, v := range fields {
		merged[k] = v
	}
	doc, err := remote.NewDocument(chatID, merged)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.chats[chatID] = doc
	s.record("update", "chats", chatID)
	notify := s.chatSnapshotsLocked()
	s.mu.Unlock()

	deliver(notify)
	return nil
}

func (s *Store) NewMessageID(string) string {
	return uuid.NewString()
}

func (s *Store) CreateMessage(_ context.Context, chatID, messageID string, fields map[string]any) (remote.Document, error) {
	if messageID == "" {
		messageID = uuid.NewString()
	}

	s.mu.Lock()
	final := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		final[k] = v
	}
	final["messageId"] = messageID
	if _, ok := final["chatId"]; !ok {
		final["chatId"] = chatID
	}
	if _, ok := final["timestamp"]; !ok {
		final["timestamp"] = s.clock().UnixMilli()
	}
	doc, err := remote.NewDocument(messageID, final)
	if err != nil {
		s.mu.Unlock()
		return remote.Document{}, err
	}
	s.messages[chatID] = append(s.messages[chatID], doc)
	s.record("create", "messages", messageID)

	changes := []remote.DocChange{{Kind: remote.Added, Doc: doc}}
	var notify []func()
	for _, fn := range s.msgSubs[chatID] {
		handler := fn
		notify = append(notify, func() { handler(changes, nil) })
	}
	s.mu.Unlock()

	deliver(notify)
	return doc, nil
}

// ListenMessages delivers the current backlog as one Added batch, then one
// batch per subsequent write, in commit order.
func (s *Store) ListenMessages(chatID string, fn remote.MessageHandler) remote.Subscription {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.msgSubs[chatID] == nil {
		s.msgSubs[chatID] = make(map[int]remote.MessageHandler)
	}
	s.msgSubs[chatID][id] = fn
	backlog := lo.Map(s.messages[chatID], func(doc remote.Document, _ int) remote.DocChange {
		return remote.DocChange{Kind: remote.Added, Doc: doc}
	})
	s.mu.Unlock()

	if len(backlog) > 0 {
		fn(backlog, nil)
	}
	return &subscription{cancel: func() {
		s.mu.Lock()
		delete(s.msgSubs[chatID], id)
		s.mu.Unlock()
	}}
}

// FailMessageListeners reports a terminal error to every live message
// subscription of a chat and drops them, simulating a server-side
// subscription failure. Test hook.
func (s *Store) FailMessageListeners(chatID string, err error) {
	s.mu.Lock()
	var notify []func()
	for _, fn := range s.msgSubs[chatID] {
		handler := fn
		notify = append(notify, func() { handler(nil, err) })
	}
	delete(s.msgSubs, chatID)
	s.mu.Unlock()

	s.log.Debug("Dropping message listeners after failure", "chatId", chatID, "err", err)
	deliver(notify)
}

// Shutdown reports ErrSubscriptionClosed to every live subscription and
// drops them all. Called when the client stops, so no callback fires
// into a pipeline that is already tearing down.
func (s *Store) Shutdown() {
	s.mu.Lock()
	var notify []func()
	for chatID := range s.msgSubs {
		for _, fn := range s.msgSubs[chatID] {
			handler := fn
			notify = append(notify, func() { handler(nil, errors.ErrSubscriptionClosed) })
		}
		delete(s.msgSubs, chatID)
	}
	for userID := range s.chatSubs {
		for _, fn := range s.chatSubs[userID] {
			handler := fn
			notify = append(notify, func() { handler(nil, errors.ErrSubscriptionClosed) })
		}
		delete(s.chatSubs, userID)
	}
	for userID := range s.groupSubs {
		for _, fn := range s.groupSubs[userID] {
			handler := fn
			notify = append(notify, func() { handler(nil, errors.ErrSubscriptionClosed) })
		}
		delete(s.groupSubs, userID)
	}
	for groupID := range s.groupDocSubs {
		for _, fn := range s.groupDocSubs[groupID] {
			handler := fn
			notify = append(notify, func() { handler(remote.Document{}, errors.ErrSubscriptionClosed) })
		}
		delete(s.groupDocSubs, groupID)
	}
	s.mu.Unlock()

	deliver(notify)
}

// MessageListenerCount reports how many live subscriptions a chat has.
// Test hook backing the latest-caller-wins property.
func (s *Store) MessageListenerCount(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgSubs[chatID])
}

func (s *Store) ListenChats(userID string, fn remote.SnapshotHandler) remote.Subscription {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.chatSubs[userID] == nil {
		s.chatSubs[userID] = make(map[int]remote.SnapshotHandler)
	}
	s.chatSubs[userID][id] = fn
	snapshot := s.chatsForLocked(userID)
	s.mu.Unlock()

	fn(snapshot, nil)
	return &subscription{cancel: func() {
		s.mu.Lock()
		delete(s.chatSubs[userID], id)
		s.mu.Unlock()
	}}
}

// chatsForLocked selects chats whose members contain the user, ordered by
// lastMessageTimestamp descending.
func (s *Store) chatsForLocked(userID string) []remote.Document {
	var docs []remote.Document
	for _, doc := range s.chats {
		if lo.Contains(doc.GetStrings("members"), userID) {
			docs = append(docs, doc)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].GetInt64("lastMessageTimestamp") > docs[j].GetInt64("lastMessageTimestamp")
	})
	return docs
}

func (s *Store) chatSnapshotsLocked() []func() {
	var notify []func()
	for userID, subs := range s.chatSubs {
		snapshot := s.chatsForLocked(userID)
		for _, fn := range subs {
			handler := fn
			notify = append(notify, func() { handler(snapshot, nil) })
		}
	}
	return notify
}

func (s *Store) CreateGroup(_ context.Context, fields map[string]any) (string, error) {
	groupID := "group_" + uuid.NewString()
	doc, err := remote.NewDocument(groupID, fields)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.groups[groupID] = doc
	s.record("create", "groups", groupID)
	notify := s.groupSnapshotsLocked()
	s.mu.Unlock()

	deliver(notify)
	return groupID, nil
}

func (s *Store) ListenGroups(userID string, fn remote.SnapshotHandler) remote.Subscription {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.groupSubs[userID] == nil {
		s.groupSubs[userID] = make(map[int]remote.SnapshotHandler)
	}
	s.groupSubs[userID][id] = fn
	snapshot := s.groupsForLocked(userID)
	s.mu.Unlock()

	fn(snapshot, nil)
	return &subscription{cancel: func() {
		s.mu.Lock()
		delete(s.groupSubs[userID], id)
		s.mu.Unlock()
	}}
}

func (s *Store) ListenGroup(groupID string, fn remote.DocHandler) remote.Subscription {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.groupDocSubs[groupID] == nil {
		s.groupDocSubs[groupID] = make(map[int]remote.DocHandler)
	}
	s.groupDocSubs[groupID][id] = fn
	doc, ok := s.groups[groupID]
	s.mu.Unlock()

	if ok {
		fn(doc, nil)
	}
	return &subscription{cancel: func() {
		s.mu.Lock()
		delete(s.groupDocSubs[groupID], id)
		s.mu.Unlock()
	}}
}

func (s *Store) groupsForLocked(userID string) []remote.Document {
	var docs []remote.Document
	for _, doc := range s.groups {
		if lo.Contains(doc.GetStrings("members"), userID) {
			docs = append(docs, doc)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].GetInt64("lastMessageTimestamp") > docs[j].GetInt64("lastMessageTimestamp")
	})
	return docs
}

func (s *Store) groupSnapshotsLocked() []func() {
	var notify []func()
	for userID, subs := range s.groupSubs {
		snapshot := s.groupsForLocked(userID)
		for _, fn := range subs {
			handler := fn
			notify = append(notify, func() { handler(snapshot, nil) })
		}
	}
	return notify
}

func (s *Store) UpdateGroupMembers(_ context.Context, groupID string, mutate func(members []string) []string) error {
	s.mu.Lock()
	existing, ok := s.groups[groupID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("group %s: %w", groupID, errors.ErrDocumentNotFound)
	}
	members := mutate(existing.GetStrings("members"))
	merged := existing.Fields()
	merged["members"] = lo.Map(members, func(m string, _ int) any { return m })
	doc, err := remote.NewDocument(groupID, merged)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.groups[groupID] = doc
	s.record("update", "groups", groupID)
	notify := s.groupSnapshotsLocked()
	for _, fn := range s.groupDocSubs[groupID] {
		handler := fn
		notify = append(notify, func() { handler(doc, nil) })
	}
	s.mu.Unlock()

	deliver(notify)
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.users[userID]
	if !ok {
		return remote.Document{}, fmt.Errorf("user %s: %w", userID, errors.ErrDocumentNotFound)
	}
	return doc, nil
}

func (s *Store) SetUser(_ context.Context, userID string, fields map[string]any) error {
	doc, err := remote.NewDocument(userID, fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.users[userID] = doc
	s.record("create", "users", userID)
	s.mu.Unlock()
	return nil
}

func (s *Store) UpdateUser(_ context.Context, userID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, errors.ErrDocumentNotFound)
	}
	merged := existing.Fields()
	for k, v := range fields {
		merged[k] = v
	}
	doc, err := remote.NewDocument(userID, merged)
	if err != nil {
		return err
	}
	s.users[userID] = doc
	s.record("update", "users", userID)
	return nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.users {
		if doc.GetString("email") == email {
			return doc, nil
		}
	}
	return remote.Document{}, fmt.Errorf("user email %s: %w", email, errors.ErrDocumentNotFound)
}

// deliver invokes listener callbacks outside the store lock, so a handler
// may call back into the store without deadlocking.
func deliver(notify []func()) {
	for _, fn := range notify {
		fn()
	}
}
