package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CanonicalDurations are the values offered in prompts and slot listings.
// The parser accepts any "<N>m" or "<N>h" form beyond these.
var CanonicalDurations = []string{"15m", "30m", "45m", "1h", "1.5h", "2h", "3h"}

// ParseDuration converts a duration string to minutes.
// Accepted forms: "<N>m" (minutes), "<N>h" (hours, fractional allowed),
// bare digits (minutes).
func ParseDuration(s string) (int, error) {
	v := strings.TrimSpace(strings.ToLower(s))
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}

	switch {
	case strings.HasSuffix(v, "m"):
		n, err := strconv.Atoi(strings.TrimSuffix(v, "m"))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if n <= 0 {
			return 0, fmt.Errorf("invalid duration %q: must be positive", s)
		}
		return n, nil

	case strings.HasSuffix(v, "h"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "h"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		minutes := int(f * 60)
		if minutes <= 0 {
			return 0, fmt.Errorf("invalid duration %q: must be positive", s)
		}
		return minutes, nil

	default:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: expected <N>m, <N>h or minutes", s)
		}
		if n <= 0 {
			return 0, fmt.Errorf("invalid duration %q: must be positive", s)
		}
		return n, nil
	}
}

// MustParseDuration is ParseDuration for known-good literals. Panics on error.
func MustParseDuration(s string) int {
	n, err := ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return n
}

// DurationMinutes returns the parsed duration as a time.Duration.
func DurationMinutes(s string) (time.Duration, error) {
	n, err := ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Minute, nil
}
