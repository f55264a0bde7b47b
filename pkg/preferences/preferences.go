// Package preferences holds the booking admission policy: preferred hours
// and days, duration envelope, meeting caps, partner lists and the free-form
// instructions carried into agent prompts.
package preferences

import (
	"fmt"
	"strings"
	"time"

	"github.com/convene-dev/convene/pkg/calendar"
)

// Preferences is the admission policy for one calendar owner. The zero value
// is not usable; start from Default().
type Preferences struct {
	// Preferred-time window: [StartHour, EndHour) on PreferredDays.
	// An empty day set means any day.
	PreferredStartHour int      `json:"preferred_start_hour" yaml:"preferred_start_hour" koanf:"preferred_start_hour"`
	PreferredEndHour   int      `json:"preferred_end_hour" yaml:"preferred_end_hour" koanf:"preferred_end_hour"`
	PreferredDays      []string `json:"preferred_days" yaml:"preferred_days" koanf:"preferred_days"`

	// Duration envelope, duration-string grammar.
	PreferredDuration string `json:"preferred_duration" yaml:"preferred_duration" koanf:"preferred_duration"`
	MinDuration       string `json:"min_duration" yaml:"min_duration" koanf:"min_duration"`
	MaxDuration       string `json:"max_duration" yaml:"max_duration" koanf:"max_duration"`

	// Scheduling constraints.
	BufferBetweenMeetings int  `json:"buffer_between_meetings" yaml:"buffer_between_meetings" koanf:"buffer_between_meetings"`
	MaxMeetingsPerDay     int  `json:"max_meetings_per_day" yaml:"max_meetings_per_day" koanf:"max_meetings_per_day"`
	MaxMeetingsPerWeek    int  `json:"max_meetings_per_week" yaml:"max_meetings_per_week" koanf:"max_meetings_per_week"`
	AllowBackToBack       bool `json:"allow_back_to_back" yaml:"allow_back_to_back" koanf:"allow_back_to_back"`

	// Admission lists.
	PreferredPartners []string `json:"preferred_partners" yaml:"preferred_partners" koanf:"preferred_partners"`
	BlockedPartners   []string `json:"blocked_partners" yaml:"blocked_partners" koanf:"blocked_partners"`
	AllowNewPartners  bool     `json:"allow_new_partners" yaml:"allow_new_partners" koanf:"allow_new_partners"`

	MinTrustScore float64 `json:"min_trust_score" yaml:"min_trust_score" koanf:"min_trust_score"`

	// Instructions are carried verbatim into agent prompts.
	Instructions string `json:"instructions,omitempty" yaml:"instructions" koanf:"instructions"`
}

// Default returns a workday policy: 9-17 Mon-Fri, 30m meetings, 15m buffer.
func Default() *Preferences {
	return &Preferences{
		PreferredStartHour:    9,
		PreferredEndHour:      17,
		PreferredDays:         []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		PreferredDuration:     "30m",
		MinDuration:           "15m",
		MaxDuration:           "2h",
		BufferBetweenMeetings: 15,
		MaxMeetingsPerDay:     6,
		MaxMeetingsPerWeek:    25,
		AllowBackToBack:       false,
		AllowNewPartners:      true,
		MinTrustScore:         0.5,
	}
}

// Validate checks the policy invariants.
func (p *Preferences) Validate() error {
	if p.PreferredStartHour < 0 || p.PreferredEndHour > 24 || p.PreferredStartHour >= p.PreferredEndHour {
		return fmt.Errorf("invalid preferred hours: start %d, end %d", p.PreferredStartHour, p.PreferredEndHour)
	}
	if p.MinTrustScore < 0 || p.MinTrustScore > 1 {
		return fmt.Errorf("min_trust_score %v out of range [0,1]", p.MinTrustScore)
	}
	for _, d := range []string{p.PreferredDuration, p.MinDuration, p.MaxDuration} {
		if d == "" {
			continue
		}
		if _, err := calendar.ParseDuration(d); err != nil {
			return err
		}
	}
	return nil
}

// IsPreferredTime reports whether the instant falls inside the preferred
// hour window and day set. The hour window is half-open: with end hour 17,
// 16:59 is preferred and 17:00 is not.
func (p *Preferences) IsPreferredTime(t time.Time) bool {
	hour := t.Hour()
	if hour < p.PreferredStartHour || hour >= p.PreferredEndHour {
		return false
	}
	if len(p.PreferredDays) == 0 {
		return true
	}
	day := t.Weekday().String()
	for _, d := range p.PreferredDays {
		if strings.EqualFold(d, day) {
			return true
		}
	}
	return false
}

// IsBlocked reports whether the partner is on the block list.
func (p *Preferences) IsBlocked(partner string) bool {
	for _, b := range p.BlockedPartners {
		if strings.EqualFold(b, partner) {
			return true
		}
	}
	return false
}

// IsPreferredPartner reports whether the partner is on the preferred list.
func (p *Preferences) IsPreferredPartner(partner string) bool {
	for _, b := range p.PreferredPartners {
		if strings.EqualFold(b, partner) {
			return true
		}
	}
	return false
}

// IsKnownPartner reports whether the partner appears on either list.
func (p *Preferences) IsKnownPartner(partner string) bool {
	return p.IsPreferredPartner(partner) || p.IsBlocked(partner)
}

// CanAccept decides whether the policy admits the event given the existing
// calendar. It checks, in order: preferred time, partner admission, per-day
// cap and the buffer against every blocking existing event.
func (p *Preferences) CanAccept(ev *calendar.Event, existing []*calendar.Event) bool {
	if !p.IsPreferredTime(ev.Start) {
		return false
	}
	if p.IsBlocked(ev.PartnerAgent) {
		return false
	}
	if !p.AllowNewPartners && !p.IsKnownPartner(ev.PartnerAgent) {
		return false
	}

	if p.MaxMeetingsPerDay > 0 {
		day := ev.Start.Format("2006-01-02")
		count := 0
		for _, other := range existing {
			if other.Status.Blocking() && other.Start.Format("2006-01-02") == day {
				count++
			}
		}
		if count >= p.MaxMeetingsPerDay {
			return false
		}
	}

	if !p.AllowBackToBack && p.BufferBetweenMeetings > 0 {
		buffer := time.Duration(p.BufferBetweenMeetings) * time.Minute
		for _, other := range existing {
			if !other.Status.Blocking() {
				continue
			}
			if ev.Start.Before(other.End().Add(buffer)) && other.Start.Before(ev.End().Add(buffer)) {
				return false
			}
		}
	}

	return true
}

// DayNames returns the preferred day set, or "any day" when unrestricted.
func (p *Preferences) DayNames() string {
	if len(p.PreferredDays) == 0 {
		return "any day"
	}
	return strings.Join(p.PreferredDays, ", ")
}
