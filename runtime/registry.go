// Package runtime connects the remote store to the local cache: it owns
// the live subscriptions, the background write pipeline, and the routing
// of local change notifications to watching sinks.
package runtime

import (
	"sync"

	"chat-mirror/contract"
)

type Set map[string]struct{}

// Registry tracks which sink each watcher owns and which topics a watcher
// observes. A watcher appears once in the session directory even when it
// observes several topics.
type Registry struct {
	mu            sync.RWMutex
	sinks         map[string]contract.EventSink // map watcher -> sink
	topicWatchers map[string]Set                // map topic -> watchers
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:         make(map[string]contract.EventSink),
		topicWatchers: make(map[string]Set),
	}
}

// SinksFor resolves the active sinks observing a topic. It performs a
// two-step lookup: watcher ids via topicWatchers, then their sinks via the
// session directory. Returns nil for an unobserved topic.
func (r *Registry) SinksFor(topic string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	watchers, ok := r.topicWatchers[topic]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for watcherID := range watchers {
		if sink, exists := r.sinks[watcherID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a watcher's sink and assigns it to a topic,
// initializing the topic entry on the fly.
func (r *Registry) Subscribe(watcherID, topic string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[watcherID] = sink

	if _, ok := r.topicWatchers[topic]; !ok {
		r.topicWatchers[topic] = make(Set)
	}
	r.topicWatchers[topic][watcherID] = struct{}{}
}

// Unsubscribe detaches a watcher from a topic, dropping its sink once it
// observes nothing anymore. Empty topic sets are removed so the map never
// grows with dead conversations.
func (r *Registry) Unsubscribe(watcherID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if watchers, ok := r.topicWatchers[topic]; ok {
		delete(watchers, watcherID)
		if len(watchers) == 0 {
			delete(r.topicWatchers, topic)
		}
	}

	for _, watchers := range r.topicWatchers {
		if _, still := watchers[watcherID]; still {
			return
		}
	}
	delete(r.sinks, watcherID)
}
