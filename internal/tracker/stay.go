// Package tracker holds the authoritative in-memory model of one
// operating day: stays, the occupancy engine that mutates them, and the
// day rollover decision.
package tracker

import (
	"github.com/valetops/tagtrack/internal/tagid"
	"github.com/valetops/tagtrack/internal/vtime"
)

// BikeType is the size classification of a stay, fixed at check-in from
// the day's tag context.
type BikeType int

const (
	Regular BikeType = iota
	Oversize
)

// String returns the lowercase type name as stored in the visits table.
func (b BikeType) String() string {
	if b == Oversize {
		return "oversize"
	}
	return "regular"
}

// NoTimeOut marks a stay as still open.
const NoTimeOut vtime.VTime = -1

// Stay is one visit record for one tag. Seq is a per-day sequence number
// assigned at check-in; together with the date and tag it identifies the
// persisted visit row.
type Stay struct {
	Seq      int
	Tag      tagid.TagID
	TimeIn   vtime.VTime
	TimeOut  vtime.VTime // NoTimeOut while open
	BikeType BikeType
	Leftover bool // closed at 24:00 by rollover, not reclaimed
}

// Open reports whether the stay has no check-out yet.
func (s *Stay) Open() bool { return s.TimeOut == NoTimeOut }

// Duration returns the stay length in minutes, or 0 while open.
func (s *Stay) Duration() int {
	if s.Open() {
		return 0
	}
	return vtime.ClampedDiff(s.TimeIn, s.TimeOut)
}

// clone returns an independent copy.
func (s *Stay) clone() *Stay {
	c := *s
	return &c
}
