// Package vtime provides a time-of-day value type measured in minutes
// since midnight. All operator-entered times pass through Parse, so no
// raw time strings cross into the tracker.
package vtime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/valetops/tagtrack/internal/apperr"
)

// VTime is a number of minutes since midnight, in [0, EndOfDay].
type VTime int

// EndOfDay is the 24:00 sentinel used for midnight-close and leftover
// records.
const EndOfDay VTime = 1440

// Now is the sentinel text meaning "use the current time".
const Now = "now"

// Accepts H:MM / HH:MM, or 3-4 digits with no separator.
var timePattern = regexp.MustCompile(`^([0-9]{1,2}):?([0-9]{2})$`)

// Parse converts text into a VTime. Accepted forms: "H:MM", "HH:MM",
// "HMM", "HHMM", and the word "now" (which yields now). Values outside
// [0, 24:00] fail with apperr.ErrBadTime.
func Parse(text string, now VTime) (VTime, error) {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == Now {
		return now, nil
	}
	m := timePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("parse %q: %w", text, apperr.ErrBadTime)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	if minutes > 59 || hours > 24 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("parse %q: %w", text, apperr.ErrBadTime)
	}
	return VTime(hours*60 + minutes), nil
}

// FromClock converts a wall-clock instant to a VTime, truncating seconds.
func FromClock(t time.Time) VTime {
	return VTime(t.Hour()*60 + t.Minute())
}

// Valid reports whether v is inside the [0, 24:00] domain.
func (v VTime) Valid() bool {
	return v >= 0 && v <= EndOfDay
}

// Format renders v as "HH:MM" ("24:00" for the end-of-day sentinel).
func (v VTime) Format() string {
	return fmt.Sprintf("%02d:%02d", int(v)/60, int(v)%60)
}

// Tidy renders v like Format but with a space instead of a leading zero
// (" 6:30"), for column-aligned report output.
func (v VTime) Tidy() string {
	s := v.Format()
	if s[0] == '0' {
		return " " + s[1:]
	}
	return s
}

// String implements fmt.Stringer.
func (v VTime) String() string { return v.Format() }

// Diff returns b - a in minutes, failing with apperr.ErrNegativeDuration
// when b precedes a.
func Diff(a, b VTime) (int, error) {
	if b < a {
		return 0, fmt.Errorf("%s before %s: %w", b, a, apperr.ErrNegativeDuration)
	}
	return int(b - a), nil
}

// ClampedDiff returns b - a in minutes, clamped at zero. Query-side
// arithmetic uses this where a negative interval is not an error.
func ClampedDiff(a, b VTime) int {
	if b < a {
		return 0
	}
	return int(b - a)
}

// BlockStart returns the start of the block of blockMinutes that
// contains v (e.g. 10:47 with 30-minute blocks -> 10:30).
func BlockStart(v VTime, blockMinutes int) VTime {
	if blockMinutes <= 0 {
		return v
	}
	return v / VTime(blockMinutes) * VTime(blockMinutes)
}
