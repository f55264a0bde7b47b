package calendar

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// EventSink receives write-through notifications for every engine mutation.
// The durable store implements this; the engine never reads from it after
// initial load.
type EventSink interface {
	SaveEvent(e *Event) error
	DeleteEvent(id string) error
}

// Engine owns all event state for one calendar. All mutating operations and
// iterating reads are serialized behind a single mutex; query results are
// clones, so callers may hold them without racing the engine.
type Engine struct {
	mu     sync.Mutex
	owner  string
	events map[string]*Event
	sink   EventSink
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink attaches a durable write-through sink.
func WithSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an empty calendar engine for the given owner.
func NewEngine(owner string, opts ...Option) *Engine {
	e := &Engine{
		owner:  owner,
		events: make(map[string]*Event),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Owner returns the calendar owner's agent identifier.
func (e *Engine) Owner() string {
	return e.owner
}

// Restore loads previously persisted events into the engine. Used once at
// process start, before the engine is shared.
func (e *Engine) Restore(events []*Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range events {
		if ev == nil || ev.ID == "" {
			continue
		}
		e.events[ev.ID] = ev.Clone()
	}
}

// Propose constructs a proposed event and inserts it with a conflict check.
func (e *Engine) Propose(start time.Time, duration, partner, title string) (*Event, error) {
	if _, err := ParseDuration(duration); err != nil {
		return nil, err
	}
	return e.Add(NewEvent(start, duration, partner, title))
}

// Add inserts an event. If any accepted, confirmed or booked event overlaps,
// it fails with a ConflictError and the calendar is unchanged.
func (e *Engine) Add(ev *Event) (*Event, error) {
	if _, err := ParseDuration(ev.Duration); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if blocking := e.findConflict(ev); blocking != nil {
		return nil, &ConflictError{Start: ev.Start, Duration: ev.Duration, With: blocking.Clone()}
	}

	// Keep a private copy; the caller's pointer must not alias engine state.
	stored := ev.Clone()
	e.events[stored.ID] = stored
	e.persist(stored)
	e.logger.Debug("event added",
		"id", stored.ID, "partner", stored.PartnerAgent, "start", stored.Start, "status", stored.Status)
	return stored.Clone(), nil
}

// HasConflict reports whether an event starting at start for duration would
// overlap any blocking event.
func (e *Engine) HasConflict(start time.Time, duration string) bool {
	probe := &Event{Start: start, Duration: duration}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.findConflict(probe) != nil
}

// findConflict must be called with the mutex held.
func (e *Engine) findConflict(ev *Event) *Event {
	for _, existing := range e.events {
		if existing.ID == ev.ID {
			continue
		}
		if existing.Status.Blocking() && existing.Overlaps(ev) {
			return existing
		}
	}
	return nil
}

// Accept moves a proposed event to accepted. Returns nil if the id is
// unknown or the transition is not legal from the current status.
func (e *Engine) Accept(id string) *Event { return e.apply(id, StatusAccepted) }

// Reject moves a proposed event to rejected.
func (e *Engine) Reject(id string) *Event { return e.apply(id, StatusRejected) }

// Confirm moves a proposed or accepted event to confirmed.
func (e *Engine) Confirm(id string) *Event { return e.apply(id, StatusConfirmed) }

// MarkBooked moves any non-terminal event to booked.
func (e *Engine) MarkBooked(id string) *Event { return e.apply(id, StatusBooked) }

// MarkFailed moves any event to failed.
func (e *Engine) MarkFailed(id string) *Event { return e.apply(id, StatusFailed) }

// MarkNoShow moves any event to no_show.
func (e *Engine) MarkNoShow(id string) *Event { return e.apply(id, StatusNoShow) }

func (e *Engine) apply(id string, to Status) *Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, ok := e.events[id]
	if !ok {
		return nil
	}
	if !ev.transition(to) {
		e.logger.Debug("illegal transition ignored", "id", id, "from", ev.Status, "to", to)
		return nil
	}
	e.persist(ev)
	return ev.Clone()
}

// Remove deletes an event regardless of status.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.events[id]; !ok {
		return false
	}
	delete(e.events, id)
	if e.sink != nil {
		if err := e.sink.DeleteEvent(id); err != nil {
			e.logger.Warn("event delete not persisted", "id", id, "error", err)
		}
	}
	return true
}

// Get returns the event with the given id, or nil.
func (e *Engine) Get(id string) *Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev, ok := e.events[id]; ok {
		return ev.Clone()
	}
	return nil
}

// ByStatus returns all events with the given status.
func (e *Engine) ByStatus(s Status) []*Event {
	return e.filter(func(ev *Event) bool { return ev.Status == s })
}

// ByPartner returns all events with the given partner agent.
func (e *Engine) ByPartner(partner string) []*Event {
	return e.filter(func(ev *Event) bool { return ev.PartnerAgent == partner })
}

// Pending returns proposed and accepted events.
func (e *Engine) Pending() []*Event {
	return e.filter(func(ev *Event) bool {
		return ev.Status == StatusProposed || ev.Status == StatusAccepted
	})
}

// Confirmed returns confirmed and booked events.
func (e *Engine) Confirmed() []*Event {
	return e.filter(func(ev *Event) bool {
		return ev.Status == StatusConfirmed || ev.Status == StatusBooked
	})
}

// Upcoming returns future accepted, confirmed and booked events sorted by
// start time. A limit of 0 means no truncation.
func (e *Engine) Upcoming(limit int) []*Event {
	now := time.Now()
	events := e.filter(func(ev *Event) bool {
		return ev.Start.After(now) && ev.Status.Blocking()
	})
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

// All returns every event.
func (e *Engine) All() []*Event {
	return e.filter(func(*Event) bool { return true })
}

// CountByStatus returns the number of events per status.
func (e *Engine) CountByStatus() map[Status]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[Status]int)
	for _, ev := range e.events {
		counts[ev.Status]++
	}
	return counts
}

func (e *Engine) filter(keep func(*Event) bool) []*Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Event
	for _, ev := range e.events {
		if keep(ev) {
			out = append(out, ev.Clone())
		}
	}
	return out
}

// persist must be called with the mutex held.
func (e *Engine) persist(ev *Event) {
	if e.sink == nil {
		return
	}
	if err := e.sink.SaveEvent(ev); err != nil {
		e.logger.Warn("event not persisted", "id", ev.ID, "error", err)
	}
}
