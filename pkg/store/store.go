// Package store provides durable persistence for calendar events and the
// single-row preferences slot. The event log is the source of truth across
// restarts; the in-memory engine is rebuilt from it at start.
package store

import (
	"context"

	"github.com/convene-dev/convene/pkg/calendar"
	"github.com/convene-dev/convene/pkg/preferences"
)

// EventStore is a key-value store of events by id.
type EventStore interface {
	Save(ctx context.Context, ev *calendar.Event) error
	Load(ctx context.Context, id string) (*calendar.Event, error)
	LoadAll(ctx context.Context) ([]*calendar.Event, error)
	Delete(ctx context.Context, id string) error
}

// PreferencesStore persists the single preferences row.
type PreferencesStore interface {
	SavePreferences(ctx context.Context, p *preferences.Preferences) error
	// LoadPreferences returns nil with no error when nothing is stored yet.
	LoadPreferences(ctx context.Context) (*preferences.Preferences, error)
}

// Store is the full persistence surface the engine requires.
type Store interface {
	EventStore
	PreferencesStore
	Close() error
}

// EngineSink adapts a Store to the calendar engine's write-through sink.
type EngineSink struct {
	Store EventStore
}

func (s *EngineSink) SaveEvent(ev *calendar.Event) error {
	return s.Store.Save(context.Background(), ev)
}

func (s *EngineSink) DeleteEvent(id string) error {
	return s.Store.Delete(context.Background(), id)
}
