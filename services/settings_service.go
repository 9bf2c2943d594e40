package services

import (
	"context"
	"log/slog"

	"chat-mirror/contract"
	"chat-mirror/domain/event"
	"chat-mirror/repositories"
)

type ISettingsService interface {
	DarkMode() bool
	SetDarkMode(enabled bool) error
	Watch(watcherID string, sink contract.EventSink)
	Unwatch(watcherID string)
}

// SettingsService exposes the persisted display settings and notifies
// watchers when they change.
type SettingsService struct {
	log        *slog.Logger
	repository repositories.ISettingsRepository
	registry   contract.IRegistry
	events     chan<- event.DomainEvent
}

func NewSettingsService(log *slog.Logger, repository repositories.ISettingsRepository,
	registry contract.IRegistry, events chan<- event.DomainEvent) *SettingsService {
	return &SettingsService{
		log:        log,
		repository: repository,
		registry:   registry,
		events:     events,
	}
}

// DarkMode reads the persisted flag; an unreadable store reports the
// default, light theme.
func (s *SettingsService) DarkMode() bool {
	enabled, err := s.repository.DarkMode()
	if err != nil {
		s.log.Warn("Dark mode read failed", "error", err)
		return false
	}
	return enabled
}

// SetDarkMode persists the flag and notifies theme watchers.
func (s *SettingsService) SetDarkMode(enabled bool) error {
	if err := s.repository.SetDarkMode(enabled); err != nil {
		return err
	}
	select {
	case s.events <- event.ThemeChanged{Dark: enabled}:
	default:
		s.log.Warn("Event channel full, dropping theme change")
	}
	return nil
}

// Watch subscribes a sink to theme changes and pushes the current value.
func (s *SettingsService) Watch(watcherID string, sink contract.EventSink) {
	s.registry.Subscribe(watcherID, event.ThemeTopic, sink)
	if err := sink.Consume(context.Background(), event.ThemeChanged{Dark: s.DarkMode()}); err != nil {
		s.log.Warn("Sink rejected theme snapshot", "error", err)
	}
}

func (s *SettingsService) Unwatch(watcherID string) {
	s.registry.Unsubscribe(watcherID, event.ThemeTopic)
}
