package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convene-dev/convene/pkg/calendar"
	"github.com/convene-dev/convene/pkg/preferences"
)

func newToolset(t *testing.T, prefs *preferences.Preferences) (*calendar.Engine, *Registry) {
	t.Helper()
	engine := calendar.NewEngine("alice")
	reg := NewRegistry()
	toolset := NewCalendarToolset(engine, func() *preferences.Preferences { return prefs })
	require.NoError(t, toolset.RegisterAll(reg))
	return engine, reg
}

func execute(t *testing.T, reg *Registry, name string, args map[string]interface{}) ToolResult {
	t.Helper()
	tool, ok := reg.Get(name)
	require.True(t, ok, "tool %s not registered", name)
	result, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)
	return result
}

func TestCatalogCoversAllOperations(t *testing.T) {
	_, reg := newToolset(t, preferences.Default())

	names := reg.List()
	assert.ElementsMatch(t, []string{
		"requestAvailableSlots", "requestBooking", "proposeMeeting",
		"acceptMeeting", "rejectMeeting", "confirmMeeting", "cancelEvent",
		"getCalendarEvents", "getPendingRequests", "getUpcomingEvents",
	}, names)

	for _, info := range reg.Catalog() {
		assert.NotEmpty(t, info.Description, info.Name)
		assert.Equal(t, "object", info.Parameters["type"], info.Name)
	}
}

func TestRequestBooking(t *testing.T) {
	engine, reg := newToolset(t, preferences.Default())

	result := execute(t, reg, "requestBooking", map[string]interface{}{
		"start_time":       "2026-09-03T10:00:00Z",
		"duration":         "30m",
		"partner_agent_id": "agent-beta",
	})
	require.True(t, result.Success, result.Error)

	payload := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(result.Content), &payload))
	eventID := payload["event_id"].(string)

	event := engine.Get(eventID)
	require.NotNil(t, event)
	assert.Equal(t, calendar.StatusProposed, event.Status)
	assert.Equal(t, "agent-beta", event.PartnerAgent)
}

func TestRequestBookingInitialStatus(t *testing.T) {
	engine, reg := newToolset(t, preferences.Default())

	result := execute(t, reg, "requestBooking", map[string]interface{}{
		"start_time":       "2026-09-03T10:00:00Z",
		"duration":         "30m",
		"partner_agent_id": "agent-beta",
		"initial_status":   "confirmed",
	})
	require.True(t, result.Success, result.Error)

	payload := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(result.Content), &payload))
	event := engine.Get(payload["event_id"].(string))
	require.NotNil(t, event)
	assert.Equal(t, calendar.StatusConfirmed, event.Status)

	bad := execute(t, reg, "requestBooking", map[string]interface{}{
		"start_time":       "2026-09-04T10:00:00Z",
		"duration":         "30m",
		"partner_agent_id": "agent-beta",
		"initial_status":   "booked",
	})
	assert.False(t, bad.Success)
}

func TestRequestBookingConflict(t *testing.T) {
	engine, reg := newToolset(t, preferences.Default())

	first := execute(t, reg, "requestBooking", map[string]interface{}{
		"start_time":       "2026-09-03T10:00:00Z",
		"duration":         "30m",
		"partner_agent_id": "agent-beta",
		"initial_status":   "accepted",
	})
	require.True(t, first.Success)

	second := execute(t, reg, "requestBooking", map[string]interface{}{
		"start_time":       "2026-09-03T10:15:00Z",
		"duration":         "30m",
		"partner_agent_id": "agent-gamma",
	})
	assert.False(t, second.Success)
	assert.Contains(t, second.Error, "conflict")
	assert.Len(t, engine.All(), 1)
}

func TestRequestBookingPolicyDenials(t *testing.T) {
	prefs := preferences.Default()
	prefs.BlockedPartners = []string{"agent-evil"}
	prefs.AllowNewPartners = false
	prefs.PreferredPartners = []string{"agent-friend"}
	_, reg := newToolset(t, prefs)

	blocked := execute(t, reg, "requestBooking", map[string]interface{}{
		"start_time": "2026-09-03T10:00:00Z", "duration": "30m", "partner_agent_id": "agent-evil",
	})
	assert.False(t, blocked.Success)
	assert.Contains(t, blocked.Error, "blocked")

	unknown := execute(t, reg, "requestBooking", map[string]interface{}{
		"start_time": "2026-09-03T10:00:00Z", "duration": "30m", "partner_agent_id": "agent-stranger",
	})
	assert.False(t, unknown.Success)
	assert.Contains(t, unknown.Error, "unknown")

	known := execute(t, reg, "requestBooking", map[string]interface{}{
		"start_time": "2026-09-03T10:00:00Z", "duration": "30m", "partner_agent_id": "agent-friend",
	})
	assert.True(t, known.Success, known.Error)
}

func TestTransitionsAndCancel(t *testing.T) {
	engine, reg := newToolset(t, preferences.Default())
	event, err := engine.Propose(time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC), "30m", "agent-beta", "")
	require.NoError(t, err)

	accepted := execute(t, reg, "acceptMeeting", map[string]interface{}{"event_id": event.ID})
	require.True(t, accepted.Success)
	assert.Equal(t, calendar.StatusAccepted, engine.Get(event.ID).Status)

	// reject is only legal from proposed
	rejected := execute(t, reg, "rejectMeeting", map[string]interface{}{"event_id": event.ID})
	assert.False(t, rejected.Success)
	assert.Contains(t, rejected.Error, "no change")

	confirmed := execute(t, reg, "confirmMeeting", map[string]interface{}{"event_id": event.ID})
	require.True(t, confirmed.Success)

	cancelled := execute(t, reg, "cancelEvent", map[string]interface{}{"event_id": event.ID})
	require.True(t, cancelled.Success)
	assert.Nil(t, engine.Get(event.ID))

	missing := execute(t, reg, "cancelEvent", map[string]interface{}{"event_id": "nope"})
	assert.False(t, missing.Success)
}

func TestListingTools(t *testing.T) {
	engine, reg := newToolset(t, preferences.Default())

	base := time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC)
	first, err := engine.Propose(base, "30m", "agent-beta", "")
	require.NoError(t, err)
	engine.Confirm(first.ID)
	_, err = engine.Propose(base.Add(2*time.Hour), "30m", "agent-gamma", "")
	require.NoError(t, err)

	all := execute(t, reg, "getCalendarEvents", nil)
	payload := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(all.Content), &payload))
	assert.EqualValues(t, 2, payload["count"])

	filtered := execute(t, reg, "getCalendarEvents", map[string]interface{}{"status": "confirmed"})
	require.NoError(t, json.Unmarshal([]byte(filtered.Content), &payload))
	assert.EqualValues(t, 1, payload["count"])

	badStatus := execute(t, reg, "getCalendarEvents", map[string]interface{}{"status": "limbo"})
	assert.False(t, badStatus.Success)

	pending := execute(t, reg, "getPendingRequests", map[string]interface{}{"limit": 1})
	require.NoError(t, json.Unmarshal([]byte(pending.Content), &payload))
	assert.EqualValues(t, 1, payload["count"])
}

func TestRequestAvailableSlots(t *testing.T) {
	_, reg := newToolset(t, preferences.Default())

	result := execute(t, reg, "requestAvailableSlots", map[string]interface{}{
		"start_date": "2026-08-31T09:00:00Z",
		"end_date":   "2026-08-31T12:00:00Z",
		"duration":   "30m",
	})
	require.True(t, result.Success, result.Error)

	payload := struct {
		Slots []struct {
			Start           string `json:"start"`
			DurationMinutes int    `json:"duration_minutes"`
		} `json:"slots"`
	}{}
	require.NoError(t, json.Unmarshal([]byte(result.Content), &payload))

	starts := []string{}
	for _, slot := range payload.Slots {
		starts = append(starts, slot.Start)
		assert.Equal(t, 30, slot.DurationMinutes)
	}
	assert.Equal(t, []string{
		"2026-08-31T09:00:00Z",
		"2026-08-31T09:45:00Z",
		"2026-08-31T10:30:00Z",
		"2026-08-31T11:15:00Z",
	}, starts)
}

func TestParseInstant(t *testing.T) {
	utc, err := ParseInstant("2026-09-03T14:00:00Z", nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, utc.Location())

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	local, err := ParseInstant("2026-09-03T14:00:00", berlin)
	require.NoError(t, err)
	assert.Equal(t, berlin, local.Location())

	dateOnly, err := ParseInstant("2026-09-03", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, dateOnly.Hour())

	_, err = ParseInstant("next thursday", nil)
	require.Error(t, err)
}

func TestBadArgumentsAreReportedNotRaised(t *testing.T) {
	_, reg := newToolset(t, preferences.Default())

	result := execute(t, reg, "requestBooking", map[string]interface{}{
		"start_time": "not a time", "duration": "30m", "partner_agent_id": "x",
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid ISO instant")

	result = execute(t, reg, "requestBooking", map[string]interface{}{
		"start_time": "2026-09-03T10:00:00Z", "duration": "half an hour", "partner_agent_id": "x",
	})
	assert.False(t, result.Success)
}
