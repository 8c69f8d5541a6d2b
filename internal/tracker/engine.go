package tracker

import (
	"fmt"
	"time"

	"github.com/valetops/tagtrack/internal/apperr"
	"github.com/valetops/tagtrack/internal/tagid"
	"github.com/valetops/tagtrack/internal/vtime"
)

// Clock supplies the current wall-clock time. Injected so tests can pin
// "now".
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Field selects which side of a stay an edit or delete addresses.
type Field int

const (
	FieldIn Field = iota
	FieldOut
	FieldBoth // delete only
)

// Latest selects the tag's most recent stay of the day.
const Latest = -1

// Engine applies operator commands to a DayState. Every operation
// validates fully before mutating, so a failed call leaves the day
// unchanged. The engine is single-threaded; callers serialize access.
type Engine struct {
	day            *DayState
	clock          Clock
	ignoreChars    string
	confirmMinutes int
}

// NewEngine wraps day with the given clock. confirmMinutes is the
// "meaningful stay" threshold guarding destructive deletes; ignoreChars
// is the set stripped from raw tag input.
func NewEngine(day *DayState, clock Clock, ignoreChars string, confirmMinutes int) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		day:            day,
		clock:          clock,
		ignoreChars:    ignoreChars,
		confirmMinutes: confirmMinutes,
	}
}

// Day returns the engine's current day state.
func (e *Engine) Day() *DayState { return e.day }

// SetDay swaps in a different day state (restore after a failed persist,
// or the fresh day after rollover).
func (e *Engine) SetDay(day *DayState) { e.day = day }

func (e *Engine) now() vtime.VTime {
	return vtime.FromClock(e.clock.Now())
}

func (e *Engine) parseTag(raw string) (tagid.TagID, error) {
	return tagid.Parse(raw, e.ignoreChars)
}

func (e *Engine) parseTime(raw string) (vtime.VTime, error) {
	return vtime.Parse(raw, e.now())
}

// CheckIn records a bike arriving. The tag must be a usable (not
// retired, not unknown) tag with no open stay; the time must be within
// operating hours and not in the future unless force is set.
func (e *Engine) CheckIn(rawTag, rawTime string, force bool) (*Stay, error) {
	tag, err := e.parseTag(rawTag)
	if err != nil {
		return nil, err
	}
	var bikeType BikeType
	switch e.day.ctx.Classify(tag) {
	case tagid.KindRegular:
		bikeType = Regular
	case tagid.KindOversize:
		bikeType = Oversize
	case tagid.KindRetired:
		return nil, fmt.Errorf("tag %s: %w", tag, apperr.ErrRetiredTag)
	default:
		return nil, fmt.Errorf("tag %s: %w", tag, apperr.ErrUnknownTag)
	}

	t, err := e.parseTime(rawTime)
	if err != nil {
		return nil, err
	}
	if _, ok := e.day.open[tag]; ok {
		return nil, fmt.Errorf("tag %s: %w", tag, apperr.ErrAlreadyOpen)
	}
	if !force {
		if t < e.day.openTime {
			return nil, fmt.Errorf("%s before opening %s: %w", t, e.day.openTime, apperr.ErrOutsideHours)
		}
		if t > e.now() {
			return nil, fmt.Errorf("%s: %w", t, apperr.ErrFutureTime)
		}
	}
	// A reopened tag cannot start before its previous stay ended.
	if prev := e.day.staysFor(tag); len(prev) > 0 {
		last := prev[len(prev)-1]
		if t < last.TimeOut {
			return nil, fmt.Errorf("tag %s: check-in %s overlaps stay ended %s: %w",
				tag, t, last.TimeOut, apperr.ErrNegativeDuration)
		}
	}

	stay := &Stay{
		Seq:      e.day.nextSeq,
		Tag:      tag,
		TimeIn:   t,
		TimeOut:  NoTimeOut,
		BikeType: bikeType,
	}
	e.day.nextSeq++
	e.day.open[tag] = stay

	if t < e.latestEventTime() {
		// Backdated arrival: counter history must be replayed.
		e.day.recomputePeaks()
	} else {
		e.day.bumpPeaks(t)
	}
	return stay, nil
}

// CheckOut records a bike being reclaimed, closing the tag's open stay.
func (e *Engine) CheckOut(rawTag, rawTime string, force bool) (*Stay, error) {
	tag, err := e.parseTag(rawTag)
	if err != nil {
		return nil, err
	}
	stay, ok := e.day.open[tag]
	if !ok {
		return nil, fmt.Errorf("tag %s: %w", tag, apperr.ErrNotOpen)
	}
	t, err := e.parseTime(rawTime)
	if err != nil {
		return nil, err
	}
	if _, err := vtime.Diff(stay.TimeIn, t); err != nil {
		return nil, fmt.Errorf("tag %s: %w", tag, err)
	}
	if !force && t > e.now() {
		return nil, fmt.Errorf("%s: %w", t, apperr.ErrFutureTime)
	}

	delete(e.day.open, tag)
	stay.TimeOut = t
	e.day.closed = append(e.day.closed, stay)
	if t < e.latestEventTime() {
		// Backdated departure: peaks observed after t overcounted.
		e.day.sortClosed()
		e.day.recomputePeaks()
	}
	return stay, nil
}

// Edit rewrites the check-in or check-out time of one of the tag's
// stays, re-validating the whole record under the new value. Peaks are
// recomputed from scratch afterwards.
func (e *Engine) Edit(rawTag string, field Field, rawTime string, occurrence int, force bool) (*Stay, error) {
	if field == FieldBoth {
		return nil, fmt.Errorf("edit accepts in or out, not both: %w", apperr.ErrBadSyntax)
	}
	tag, err := e.parseTag(rawTag)
	if err != nil {
		return nil, err
	}
	stay, err := e.findStay(tag, occurrence)
	if err != nil {
		return nil, err
	}
	t, err := e.parseTime(rawTime)
	if err != nil {
		return nil, err
	}
	if !force && t > e.now() {
		return nil, fmt.Errorf("%s: %w", t, apperr.ErrFutureTime)
	}

	// Validate the rewritten record before touching the stay.
	newIn, newOut := stay.TimeIn, stay.TimeOut
	if field == FieldIn {
		newIn = t
	} else {
		newOut = t
	}
	if newOut != NoTimeOut {
		if _, err := vtime.Diff(newIn, newOut); err != nil {
			return nil, fmt.Errorf("tag %s: %w", tag, err)
		}
	}
	if !force && newIn < e.day.openTime {
		return nil, fmt.Errorf("%s before opening %s: %w", newIn, e.day.openTime, apperr.ErrOutsideHours)
	}

	closing := field == FieldOut && stay.Open()
	stay.TimeIn, stay.TimeOut = newIn, newOut
	if closing {
		delete(e.day.open, tag)
		e.day.closed = append(e.day.closed, stay)
	}
	e.day.sortClosed()
	e.day.recomputePeaks()
	return stay, nil
}

// Delete removes a stay or reopens it by destroying its check-out.
// Destroying the check-out of a stay at least confirmMinutes long
// requires confirmed=true; short accidental entries need no
// confirmation.
func (e *Engine) Delete(rawTag string, field Field, occurrence int, confirmed bool) (*Stay, error) {
	tag, err := e.parseTag(rawTag)
	if err != nil {
		return nil, err
	}
	stay, err := e.findStay(tag, occurrence)
	if err != nil {
		return nil, err
	}

	if field == FieldOut {
		if stay.Open() {
			return nil, fmt.Errorf("tag %s has no check-out: %w", tag, apperr.ErrNotFound)
		}
		if _, open := e.day.open[tag]; open {
			return nil, fmt.Errorf("tag %s: reopening would duplicate the open stay: %w", tag, apperr.ErrAlreadyOpen)
		}
		if err := e.requireConfirmation(stay, confirmed); err != nil {
			return nil, err
		}
		e.removeClosed(stay)
		stay.TimeOut = NoTimeOut
		stay.Leftover = false
		e.day.open[tag] = stay
		e.day.recomputePeaks()
		return stay, nil
	}

	// FieldIn and FieldBoth both destroy the whole stay; a stay cannot
	// exist without its check-in.
	if !stay.Open() {
		if err := e.requireConfirmation(stay, confirmed); err != nil {
			return nil, err
		}
		e.removeClosed(stay)
	} else {
		delete(e.day.open, tag)
	}
	e.day.recomputePeaks()
	return stay, nil
}

// Query returns copies of all the tag's stays, open and closed, in
// check-in order. Re-querying reflects current state. Unknown tags
// simply return nothing.
func (e *Engine) Query(rawTag string) ([]Stay, error) {
	tag, err := e.parseTag(rawTag)
	if err != nil {
		return nil, err
	}
	var out []Stay
	for _, s := range e.day.staysFor(tag) {
		out = append(out, *s)
	}
	return out, nil
}

func (e *Engine) requireConfirmation(stay *Stay, confirmed bool) error {
	if confirmed || e.confirmMinutes <= 0 {
		return nil
	}
	if stay.Duration() >= e.confirmMinutes {
		return fmt.Errorf("stay of %d min is a meaningful record: %w", stay.Duration(), apperr.ErrConfirmRequired)
	}
	return nil
}

// findStay resolves an occurrence (0-based check-in order, Latest for
// the most recent) among the tag's stays.
func (e *Engine) findStay(tag tagid.TagID, occurrence int) (*Stay, error) {
	stays := e.day.staysFor(tag)
	if len(stays) == 0 {
		return nil, fmt.Errorf("tag %s: %w", tag, apperr.ErrNotFound)
	}
	if occurrence == Latest {
		return stays[len(stays)-1], nil
	}
	if occurrence < 0 || occurrence >= len(stays) {
		return nil, fmt.Errorf("tag %s occurrence %d: %w", tag, occurrence, apperr.ErrNotFound)
	}
	return stays[occurrence], nil
}

func (e *Engine) removeClosed(stay *Stay) {
	for i, s := range e.day.closed {
		if s == stay {
			e.day.closed = append(e.day.closed[:i], e.day.closed[i+1:]...)
			return
		}
	}
}

func (e *Engine) latestEventTime() vtime.VTime {
	var latest vtime.VTime
	for _, s := range e.day.allStays() {
		if s.TimeIn > latest {
			latest = s.TimeIn
		}
		if !s.Open() && s.TimeOut > latest {
			latest = s.TimeOut
		}
	}
	return latest
}
