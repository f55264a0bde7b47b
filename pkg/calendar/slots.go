package calendar

import (
	"sort"
	"time"
)

// Slot is a contiguous free interval long enough for a requested duration.
type Slot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}

// AvailableSlots enumerates free slots of the given duration within
// [start, end], keeping bufferMinutes of separation from every blocking
// event. Within each gap, candidate slots are emitted every
// duration+buffer minutes; a slot must satisfy start+duration <= end.
func (e *Engine) AvailableSlots(start, end time.Time, duration string, bufferMinutes int) ([]Slot, error) {
	minutes, err := ParseDuration(duration)
	if err != nil {
		return nil, err
	}
	dur := time.Duration(minutes) * time.Minute
	buffer := time.Duration(bufferMinutes) * time.Minute
	step := dur + buffer

	blocking := e.filter(func(ev *Event) bool { return ev.Status.Blocking() })
	sort.Slice(blocking, func(i, j int) bool { return blocking[i].Start.Before(blocking[j].Start) })

	var slots []Slot
	emit := func(from, until time.Time) {
		for cursor := from; !cursor.Add(dur).After(until); cursor = cursor.Add(step) {
			slots = append(slots, Slot{
				Start:           cursor,
				End:             cursor.Add(dur),
				DurationMinutes: minutes,
			})
		}
	}

	cursor := start
	for _, ev := range blocking {
		evStart := ev.Start.Add(-buffer)
		evEnd := ev.End().Add(buffer)

		if evEnd.Before(cursor) || evEnd.Equal(cursor) {
			continue
		}
		if evStart.After(cursor) {
			gapEnd := evStart
			if gapEnd.After(end) {
				gapEnd = end
			}
			emit(cursor, gapEnd)
		}
		if evEnd.After(cursor) {
			cursor = evEnd
		}
		if !cursor.Before(end) {
			return slots, nil
		}
	}

	emit(cursor, end)
	return slots, nil
}
