package calendar

import (
	"fmt"
	"time"
)

// ConflictError reports that an insertion or proposal would overlap a
// blocking event.
type ConflictError struct {
	Start    time.Time
	Duration string
	With     *Event
}

func (e *ConflictError) Error() string {
	if e.With == nil {
		return fmt.Sprintf("conflict: %s (%s) overlaps an existing event",
			e.Start.Format(time.RFC3339), e.Duration)
	}
	return fmt.Sprintf("conflict: %s (%s) overlaps %s event %s with %s",
		e.Start.Format(time.RFC3339), e.Duration, e.With.Status, e.With.ID, e.With.PartnerAgent)
}
