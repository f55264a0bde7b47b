package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine("agent-alpha")
}

func TestProposeAndGet(t *testing.T) {
	e := newTestEngine()
	start := mustTime(t, "2026-09-03T10:00:00Z")

	ev, err := e.Propose(start, "30m", "agent-beta", "design review")
	require.NoError(t, err)
	require.NotNil(t, ev)

	got := e.Get(ev.ID)
	require.NotNil(t, got)
	assert.Equal(t, "agent-beta", got.PartnerAgent)
	assert.Equal(t, StatusProposed, got.Status)
}

func TestAddDoesNotAliasCallerEvent(t *testing.T) {
	e := newTestEngine()
	ev := NewEvent(mustTime(t, "2026-09-03T10:00:00Z"), "30m", "agent-beta", "design review")

	_, err := e.Add(ev)
	require.NoError(t, err)

	// Mutating the caller's event after Add must not touch engine state.
	ev.Status = StatusBooked
	ev.Duration = "240m"

	got := e.Get(ev.ID)
	require.NotNil(t, got)
	assert.Equal(t, StatusProposed, got.Status)
	assert.Equal(t, "30m", got.Duration)
}

func TestProposeRejectsBadDuration(t *testing.T) {
	e := newTestEngine()
	_, err := e.Propose(time.Now(), "soon", "agent-beta", "")
	assert.Error(t, err)
}

func TestConflictOnInsertion(t *testing.T) {
	e := newTestEngine()
	start := mustTime(t, "2026-09-03T10:00:00Z")

	ev, err := e.Propose(start, "30m", "agent-beta", "")
	require.NoError(t, err)
	require.NotNil(t, e.Accept(ev.ID))

	// Overlapping proposal against an accepted event fails.
	_, err = e.Propose(start.Add(15*time.Minute), "30m", "agent-gamma", "")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ev.ID, conflict.With.ID)
	assert.Len(t, e.All(), 1)
}

func TestProposedEventsDoNotBlock(t *testing.T) {
	e := newTestEngine()
	start := mustTime(t, "2026-09-03T10:00:00Z")

	_, err := e.Propose(start, "30m", "agent-beta", "")
	require.NoError(t, err)

	// Same slot, still proposed: no conflict.
	_, err = e.Propose(start, "30m", "agent-gamma", "")
	assert.NoError(t, err)
}

func TestBackToBackIsNotAConflict(t *testing.T) {
	e := newTestEngine()
	start := mustTime(t, "2026-09-03T10:00:00Z")

	ev, err := e.Propose(start, "30m", "agent-beta", "")
	require.NoError(t, err)
	require.NotNil(t, e.Confirm(ev.ID))

	_, err = e.Propose(start.Add(30*time.Minute), "30m", "agent-gamma", "")
	assert.NoError(t, err)
}

func TestTransitionsThroughLifecycle(t *testing.T) {
	e := newTestEngine()
	ev, err := e.Propose(mustTime(t, "2026-09-03T10:00:00Z"), "30m", "agent-beta", "")
	require.NoError(t, err)

	accepted := e.Accept(ev.ID)
	require.NotNil(t, accepted)
	assert.Equal(t, StatusAccepted, accepted.Status)

	// Repeated accept is a no-op returning nil.
	assert.Nil(t, e.Accept(ev.ID))

	confirmed := e.Confirm(ev.ID)
	require.NotNil(t, confirmed)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	booked := e.MarkBooked(ev.ID)
	require.NotNil(t, booked)
	assert.Equal(t, StatusBooked, booked.Status)

	failed := e.MarkFailed(ev.ID)
	require.NotNil(t, failed)
	assert.Equal(t, StatusFailed, failed.Status)
}

func TestTransitionUnknownID(t *testing.T) {
	e := newTestEngine()
	assert.Nil(t, e.Accept("missing"))
	assert.Nil(t, e.MarkNoShow("missing"))
	assert.False(t, e.Remove("missing"))
}

func TestRemoveRestoresPriorState(t *testing.T) {
	e := newTestEngine()
	before := len(e.All())

	ev, err := e.Propose(mustTime(t, "2026-09-03T10:00:00Z"), "30m", "agent-beta", "")
	require.NoError(t, err)
	require.True(t, e.Remove(ev.ID))
	assert.Len(t, e.All(), before)
}

func TestQueries(t *testing.T) {
	e := newTestEngine()
	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)

	p1, err := e.Propose(base, "30m", "agent-beta", "")
	require.NoError(t, err)
	p2, err := e.Propose(base.Add(2*time.Hour), "30m", "agent-beta", "")
	require.NoError(t, err)
	p3, err := e.Propose(base.Add(4*time.Hour), "30m", "agent-gamma", "")
	require.NoError(t, err)

	require.NotNil(t, e.Accept(p1.ID))
	require.NotNil(t, e.Confirm(p2.ID))
	require.NotNil(t, e.Reject(p3.ID))

	assert.Len(t, e.ByStatus(StatusAccepted), 1)
	assert.Len(t, e.ByPartner("agent-beta"), 2)
	assert.Len(t, e.Pending(), 1)  // accepted counts as pending
	assert.Len(t, e.Confirmed(), 1)

	upcoming := e.Upcoming(0)
	require.Len(t, upcoming, 2)
	assert.True(t, upcoming[0].Start.Before(upcoming[1].Start))

	assert.Len(t, e.Upcoming(1), 1)

	counts := e.CountByStatus()
	assert.Equal(t, 1, counts[StatusAccepted])
	assert.Equal(t, 1, counts[StatusConfirmed])
	assert.Equal(t, 1, counts[StatusRejected])
}

func TestBlockingEventsNeverOverlap(t *testing.T) {
	e := newTestEngine()
	base := mustTime(t, "2026-09-03T09:00:00Z")

	// Drive a burst of proposals over a tight window and confirm greedily;
	// the invariant must hold regardless of which proposals survived.
	for i := 0; i < 12; i++ {
		ev, err := e.Propose(base.Add(time.Duration(i*20)*time.Minute), "30m", "agent-beta", "")
		if err != nil {
			continue
		}
		e.Confirm(ev.ID)
	}

	blocking := append(e.ByStatus(StatusConfirmed), e.ByStatus(StatusBooked)...)
	blocking = append(blocking, e.ByStatus(StatusAccepted)...)
	for i := range blocking {
		for j := i + 1; j < len(blocking); j++ {
			assert.False(t, blocking[i].Overlaps(blocking[j]),
				"%s overlaps %s", blocking[i].ID, blocking[j].ID)
		}
	}
}

type recordingSink struct {
	saved   []string
	deleted []string
}

func (s *recordingSink) SaveEvent(e *Event) error    { s.saved = append(s.saved, e.ID); return nil }
func (s *recordingSink) DeleteEvent(id string) error { s.deleted = append(s.deleted, id); return nil }

func TestWriteThroughSink(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine("agent-alpha", WithSink(sink))

	ev, err := e.Propose(mustTime(t, "2026-09-03T10:00:00Z"), "30m", "agent-beta", "")
	require.NoError(t, err)
	require.NotNil(t, e.Accept(ev.ID))
	require.True(t, e.Remove(ev.ID))

	assert.Equal(t, []string{ev.ID, ev.ID}, sink.saved)
	assert.Equal(t, []string{ev.ID}, sink.deleted)
}

func TestRestore(t *testing.T) {
	e := newTestEngine()
	ev := NewEvent(mustTime(t, "2026-09-03T10:00:00Z"), "30m", "agent-beta", "")
	ev.Status = StatusBooked

	e.Restore([]*Event{ev, nil})
	got := e.Get(ev.ID)
	require.NotNil(t, got)
	assert.Equal(t, StatusBooked, got.Status)
}
