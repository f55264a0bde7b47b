package preferences

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convene-dev/convene/pkg/calendar"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func TestValidate(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())

	bad := Default()
	bad.PreferredStartHour = 17
	bad.PreferredEndHour = 9
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.PreferredEndHour = 25
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.MinTrustScore = 1.5
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.PreferredDuration = "soon"
	assert.Error(t, bad.Validate())
}

func TestIsPreferredTime(t *testing.T) {
	p := Default() // 9-17, Mon-Fri

	tests := []struct {
		name string
		when string
		want bool
	}{
		{"thursday morning", "2026-09-03T10:00:00Z", true},
		{"start hour inclusive", "2026-09-03T09:00:00Z", true},
		{"end hour exclusive", "2026-09-03T17:00:00Z", false},
		{"last preferred minute", "2026-09-03T16:59:00Z", true},
		{"before window", "2026-09-03T08:59:00Z", false},
		{"saturday", "2026-09-05T10:00:00Z", false},
		{"sunday", "2026-09-06T10:00:00Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsPreferredTime(mustTime(t, tt.when)))
		})
	}
}

func TestIsPreferredTimeAnyDay(t *testing.T) {
	p := Default()
	p.PreferredDays = nil
	assert.True(t, p.IsPreferredTime(mustTime(t, "2026-09-05T10:00:00Z"))) // Saturday
}

func TestPartnerLists(t *testing.T) {
	p := Default()
	p.PreferredPartners = []string{"agent-beta"}
	p.BlockedPartners = []string{"agent-mallory"}

	assert.True(t, p.IsPreferredPartner("agent-beta"))
	assert.True(t, p.IsPreferredPartner("Agent-Beta"))
	assert.True(t, p.IsBlocked("agent-mallory"))
	assert.False(t, p.IsBlocked("agent-beta"))
	assert.True(t, p.IsKnownPartner("agent-mallory"))
	assert.False(t, p.IsKnownPartner("agent-unknown"))
}

func TestCanAccept(t *testing.T) {
	thursday10 := mustTime(t, "2026-09-03T10:00:00Z")

	newEvent := func(start time.Time, partner string) *calendar.Event {
		return calendar.NewEvent(start, "30m", partner, "")
	}
	blocking := func(start time.Time) *calendar.Event {
		ev := newEvent(start, "agent-other")
		ev.Status = calendar.StatusConfirmed
		return ev
	}

	t.Run("accepts in-window event", func(t *testing.T) {
		p := Default()
		assert.True(t, p.CanAccept(newEvent(thursday10, "agent-beta"), nil))
	})

	t.Run("rejects outside window", func(t *testing.T) {
		p := Default()
		assert.False(t, p.CanAccept(newEvent(mustTime(t, "2026-09-03T20:00:00Z"), "agent-beta"), nil))
	})

	t.Run("rejects blocked partner", func(t *testing.T) {
		p := Default()
		p.BlockedPartners = []string{"agent-mallory"}
		assert.False(t, p.CanAccept(newEvent(thursday10, "agent-mallory"), nil))
	})

	t.Run("rejects unknown partner when new partners disallowed", func(t *testing.T) {
		p := Default()
		p.AllowNewPartners = false
		p.BlockedPartners = nil
		assert.False(t, p.CanAccept(newEvent(thursday10, "agent-unknown"), nil))
	})

	t.Run("accepts listed partner when new partners disallowed", func(t *testing.T) {
		p := Default()
		p.AllowNewPartners = false
		p.PreferredPartners = []string{"agent-beta"}
		assert.True(t, p.CanAccept(newEvent(thursday10, "agent-beta"), nil))
	})

	t.Run("enforces per-day cap", func(t *testing.T) {
		p := Default()
		p.MaxMeetingsPerDay = 2
		existing := []*calendar.Event{
			blocking(mustTime(t, "2026-09-03T12:00:00Z")),
			blocking(mustTime(t, "2026-09-03T14:00:00Z")),
		}
		assert.False(t, p.CanAccept(newEvent(thursday10, "agent-beta"), existing))
	})

	t.Run("proposed events do not count toward cap", func(t *testing.T) {
		p := Default()
		p.MaxMeetingsPerDay = 1
		existing := []*calendar.Event{newEvent(mustTime(t, "2026-09-03T12:00:00Z"), "agent-other")}
		assert.True(t, p.CanAccept(newEvent(thursday10, "agent-beta"), existing))
	})

	t.Run("enforces buffer", func(t *testing.T) {
		p := Default() // 15m buffer, no back-to-back
		existing := []*calendar.Event{blocking(mustTime(t, "2026-09-03T10:30:00Z"))}
		// 10:00-10:30 ends exactly where the blocking event starts; with a
		// 15m buffer that is too close.
		assert.False(t, p.CanAccept(newEvent(thursday10, "agent-beta"), existing))
	})

	t.Run("back to back allowed when configured", func(t *testing.T) {
		p := Default()
		p.AllowBackToBack = true
		existing := []*calendar.Event{blocking(mustTime(t, "2026-09-03T10:30:00Z"))}
		assert.True(t, p.CanAccept(newEvent(thursday10, "agent-beta"), existing))
	})

	t.Run("respects buffer when far enough", func(t *testing.T) {
		p := Default()
		existing := []*calendar.Event{blocking(mustTime(t, "2026-09-03T11:00:00Z"))}
		// 10:00-10:30 vs 11:00 start: 30m apart, buffer 15m holds.
		assert.True(t, p.CanAccept(newEvent(thursday10, "agent-beta"), existing))
	})
}
