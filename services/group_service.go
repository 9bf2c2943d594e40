package services

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"chat-mirror/contract"
	"chat-mirror/domain/event"
	"chat-mirror/remote"
	"chat-mirror/runtime"
)

type IGroupService interface {
	CreateGroup(ctx context.Context, name string, members []string) (string, error)
	WatchGroups(watcherID, userID string, sink contract.EventSink)
	UnwatchGroups(watcherID, userID string)
	WatchGroup(watcherID, groupID string, sink contract.EventSink)
	UnwatchGroup(watcherID, groupID string)
	AddMember(ctx context.Context, groupID, userID string) error
	UserEmail(ctx context.Context, userID string) string
	UserIDByEmail(ctx context.Context, email string) (string, error)
}

// GroupService creates and observes group conversations.
type GroupService struct {
	log        *slog.Logger
	store      remote.Store
	aggregator *runtime.Aggregator
	registry   contract.IRegistry
}

func NewGroupService(log *slog.Logger, store remote.Store,
	aggregator *runtime.Aggregator, registry contract.IRegistry) *GroupService {
	return &GroupService{
		log:        log,
		store:      store,
		aggregator: aggregator,
		registry:   registry,
	}
}

// CreateGroup writes a new group document with an empty summary and
// returns its generated id. Group ids carry the "group_" prefix so the
// message flows can tell them apart from 1:1 conversations.
func (g *GroupService) CreateGroup(ctx context.Context, name string, members []string) (string, error) {
	return g.store.CreateGroup(ctx, map[string]any{
		"name":                 name,
		"members":              lo.Map(members, func(m string, _ int) any { return m }),
		"lastMessage":          "",
		"lastMessageTimestamp": int64(0),
	})
}

// WatchGroups subscribes a sink to the user's group list and starts the
// remote observation.
func (g *GroupService) WatchGroups(watcherID, userID string, sink contract.EventSink) {
	g.registry.Subscribe(watcherID, event.GroupsTopic(userID), sink)
	g.aggregator.WatchGroups(userID)
}

func (g *GroupService) UnwatchGroups(watcherID, userID string) {
	g.registry.Unsubscribe(watcherID, event.GroupsTopic(userID))
	g.aggregator.Unwatch("groups:" + userID)
}

// WatchGroup subscribes a sink to a single group document.
func (g *GroupService) WatchGroup(watcherID, groupID string, sink contract.EventSink) {
	g.registry.Subscribe(watcherID, event.GroupTopic(groupID), sink)
	g.aggregator.WatchGroup(groupID)
}

func (g *GroupService) UnwatchGroup(watcherID, groupID string) {
	g.registry.Unsubscribe(watcherID, event.GroupTopic(groupID))
	g.aggregator.Unwatch("group:" + groupID)
}

// AddMember appends a user to the group membership. Adding a user who is
// already a member leaves the list unchanged.
func (g *GroupService) AddMember(ctx context.Context, groupID, userID string) error {
	return g.store.UpdateGroupMembers(ctx, groupID, func(members []string) []string {
		if lo.Contains(members, userID) {
			return members
		}
		return append(members, userID)
	})
}

// UserEmail resolves a user id to a display email, degrading to
// "Unknown" on any failure.
func (g *GroupService) UserEmail(ctx context.Context, userID string) string {
	user, err := g.store.GetUser(ctx, userID)
	if err != nil {
		g.log.Debug("User lookup failed", "userId", userID, "error", err)
		return "Unknown"
	}
	if email := user.GetString("email"); email != "" {
		return email
	}
	return "Unknown"
}

// UserIDByEmail finds the user id behind an email, for member invites.
func (g *GroupService) UserIDByEmail(ctx context.Context, email string) (string, error) {
	user, err := g.store.FindUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
