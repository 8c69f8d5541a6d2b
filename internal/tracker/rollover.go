package tracker

import (
	"github.com/valetops/tagtrack/internal/vtime"
)

// NeedsRollover reports whether the loaded day belongs to an earlier
// calendar date than today.
func NeedsRollover(day *DayState, today string) bool {
	return day.date != today
}

// Finalize closes out the day for hand-off to persistence. Every stay
// still open becomes a leftover: closed at 24:00 with the leftover flag
// set, so no unclaimed bike is ever discarded. Returns the leftover
// stays.
func Finalize(day *DayState) []*Stay {
	var leftovers []*Stay
	for tag, s := range day.open {
		s.TimeOut = vtime.EndOfDay
		s.Leftover = true
		day.closed = append(day.closed, s)
		leftovers = append(leftovers, s)
		delete(day.open, tag)
	}
	return leftovers
}
