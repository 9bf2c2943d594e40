package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"chat-mirror/domain"
	"chat-mirror/domain/event"
	"chat-mirror/remote"
)

// unknownPeer is displayed when the other participant cannot be resolved.
const unknownPeer = "Unknown"

// Aggregator turns remote conversation snapshots into display-ready lists.
//
// Every server push fully replaces the previous list; there is no
// client-side patching. Peer names are resolved with best-effort lookups
// that degrade to "Unknown" instead of failing the whole render.
type Aggregator struct {
	mu     sync.Mutex
	log    *slog.Logger
	store  remote.Store
	events chan<- event.DomainEvent
	subs   map[string]remote.Subscription // keyed by watch target
}

func NewAggregator(log *slog.Logger, store remote.Store, events chan<- event.DomainEvent) *Aggregator {
	return &Aggregator{
		log:    log,
		store:  store,
		events: events,
		subs:   make(map[string]remote.Subscription),
	}
}

// WatchChats observes the user's conversation list, latest caller wins.
func (a *Aggregator) WatchChats(ctx context.Context, userID string) {
	a.replace("chats:"+userID, a.store.ListenChats(userID, func(docs []remote.Document, err error) {
		if err != nil {
			a.log.Warn("Chat list subscription failed", "userId", userID, "error", err)
			return
		}
		chats := lo.Map(docs, func(doc remote.Document, _ int) domain.Chat {
			return a.toChat(ctx, doc, userID)
		})
		a.emit(event.ChatListUpdated{UserID: userID, Chats: chats})
	}))
}

// WatchGroups observes the user's group list, latest caller wins.
func (a *Aggregator) WatchGroups(userID string) {
	a.replace("groups:"+userID, a.store.ListenGroups(userID, func(docs []remote.Document, err error) {
		if err != nil {
			a.log.Warn("Group list subscription failed", "userId", userID, "error", err)
			return
		}
		groups := lo.Map(docs, func(doc remote.Document, _ int) domain.Group {
			return toGroup(doc)
		})
		a.emit(event.GroupListUpdated{UserID: userID, Groups: groups})
	}))
}

// WatchGroup observes a single group document, latest caller wins.
func (a *Aggregator) WatchGroup(groupID string) {
	a.replace("group:"+groupID, a.store.ListenGroup(groupID, func(doc remote.Document, err error) {
		if err != nil {
			a.log.Warn("Group subscription failed", "groupId", groupID, "error", err)
			return
		}
		a.emit(event.GroupUpdated{Group: toGroup(doc)})
	}))
}

// Unwatch cancels the subscription behind a watch target
// ("chats:{userID}", "groups:{userID}", "group:{groupID}").
func (a *Aggregator) Unwatch(target string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sub, ok := a.subs[target]; ok {
		sub.Cancel()
		delete(a.subs, target)
	}
}

// Stop cancels every live subscription. Called on shutdown.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for target, sub := range a.subs {
		sub.Cancel()
		delete(a.subs, target)
	}
}

func (a *Aggregator) replace(target string, sub remote.Subscription) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if prior, ok := a.subs[target]; ok {
		prior.Cancel()
	}
	a.subs[target] = sub
}

func (a *Aggregator) emit(evt event.DomainEvent) {
	select {
	case a.events <- evt:
	default:
		a.log.Warn("Event channel full, dropping list update", "topic", evt.Topic())
	}
}

// toChat resolves the peer display name for a 1:1 conversation. Any lookup
// failure, or the absence of another member, degrades the name to
// "Unknown" rather than surfacing an error.
func (a *Aggregator) toChat(ctx context.Context, doc remote.Document, userID string) domain.Chat {
	members := doc.GetStrings("members")
	name := unknownPeer
	if peerID, found := lo.Find(members, func(m string) bool { return m != userID }); found {
		if user, err := a.store.GetUser(ctx, peerID); err == nil {
			if email := user.GetString("email"); email != "" {
				name = email
			}
		}
	}
	return domain.Chat{
		ID:          doc.ID,
		Name:        name,
		LastMessage: doc.GetString("lastMessage"),
		Time:        domain.ClockLabel(doc.GetInt64("lastMessageTimestamp")),
		UnreadCount: int(doc.GetInt64("unreadCount")),
		Members:     members,
	}
}

func toGroup(doc remote.Document) domain.Group {
	return domain.Group{
		ID:          doc.ID,
		Name:        doc.GetString("name"),
		LastMessage: doc.GetString("lastMessage"),
		Members:     doc.GetStrings("members"),
	}
}
