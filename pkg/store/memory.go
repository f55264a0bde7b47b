package store

import (
	"context"
	"sync"

	"github.com/convene-dev/convene/pkg/calendar"
	"github.com/convene-dev/convene/pkg/preferences"
)

// MemoryStore is an in-process Store used in tests and for ephemeral runs.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]*calendar.Event
	prefs  *preferences.Preferences
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]*calendar.Event)}
}

func (s *MemoryStore) Save(_ context.Context, ev *calendar.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev.Clone()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ev, ok := s.events[id]; ok {
		return ev.Clone(), nil
	}
	return nil, nil
}

func (s *MemoryStore) LoadAll(_ context.Context) ([]*calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]*calendar.Event, 0, len(s.events))
	for _, ev := range s.events {
		events = append(events, ev.Clone())
	}
	return events, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	return nil
}

func (s *MemoryStore) SavePreferences(_ context.Context, p *preferences.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.prefs = &copied
	return nil
}

func (s *MemoryStore) LoadPreferences(_ context.Context) (*preferences.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.prefs == nil {
		return nil, nil
	}
	copied := *s.prefs
	return &copied, nil
}

func (s *MemoryStore) Close() error { return nil }
