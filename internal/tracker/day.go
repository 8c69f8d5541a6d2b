package tracker

import (
	"sort"

	"github.com/valetops/tagtrack/internal/tagid"
	"github.com/valetops/tagtrack/internal/vtime"
)

// DateLayout is the calendar-date format used throughout tagtrack.
const DateLayout = "2006-01-02"

// PeakCounter records the highest simultaneous occupancy reached in a
// category and the earliest time that count was first reached. A later
// moment reaching the same (not higher) count never overwrites At.
type PeakCounter struct {
	Max int         `json:"max"`
	At  vtime.VTime `json:"at"`
}

func (p *PeakCounter) observe(count int, at vtime.VTime) {
	if count > p.Max {
		p.Max = count
		p.At = at
	}
}

// Peaks holds the day's peak counters per category.
type Peaks struct {
	Regular  PeakCounter `json:"regular"`
	Oversize PeakCounter `json:"oversize"`
	Combined PeakCounter `json:"combined"`
}

// DayState is the authoritative in-memory model of one operating day:
// open stays keyed by tag, closed stays in close order, and the running
// peak counters. It is owned by a single Engine and never shared.
type DayState struct {
	date      string
	openTime  vtime.VTime
	closeTime vtime.VTime
	ctx       *tagid.Context

	open    map[tagid.TagID]*Stay
	closed  []*Stay
	peaks   Peaks
	nextSeq int
}

// NewDayState creates an empty day for the given date and tag context.
func NewDayState(date string, ctx *tagid.Context, openTime, closeTime vtime.VTime) *DayState {
	return &DayState{
		date:      date,
		openTime:  openTime,
		closeTime: closeTime,
		ctx:       ctx,
		open:      make(map[tagid.TagID]*Stay),
	}
}

// RestoreDayState rebuilds a day from previously recorded stays, used
// when a session restarts partway through the day. Peak counters are
// recomputed from the full stay set.
func RestoreDayState(date string, ctx *tagid.Context, openTime, closeTime vtime.VTime, stays []Stay) *DayState {
	d := NewDayState(date, ctx, openTime, closeTime)
	for i := range stays {
		s := stays[i]
		if s.Seq >= d.nextSeq {
			d.nextSeq = s.Seq + 1
		}
		if s.Open() {
			d.open[s.Tag] = &s
		} else {
			d.closed = append(d.closed, &s)
		}
	}
	d.sortClosed()
	d.recomputePeaks()
	return d
}

// sortClosed restores close order after a backdated check-out or an
// out-time edit lands a stay out of sequence.
func (d *DayState) sortClosed() {
	sort.Slice(d.closed, func(i, j int) bool {
		if d.closed[i].TimeOut != d.closed[j].TimeOut {
			return d.closed[i].TimeOut < d.closed[j].TimeOut
		}
		return d.closed[i].Seq < d.closed[j].Seq
	})
}

// Date returns the calendar date this day was created for.
func (d *DayState) Date() string { return d.date }

// Context returns the day's tag context.
func (d *DayState) Context() *tagid.Context { return d.ctx }

// SetContext swaps in a reloaded tag context. Existing stays keep the
// bike type they were classified with at check-in.
func (d *DayState) SetContext(ctx *tagid.Context) { d.ctx = ctx }

// Occupancy returns the current on-hand counts.
func (d *DayState) Occupancy() (regular, oversize int) {
	for _, s := range d.open {
		if s.BikeType == Oversize {
			oversize++
		} else {
			regular++
		}
	}
	return regular, oversize
}

// Peaks returns the day's peak counters.
func (d *DayState) Peaks() Peaks { return d.peaks }

// bumpPeaks folds the current occupancy into the peak counters, stamped
// with the time of the event that raised it.
func (d *DayState) bumpPeaks(at vtime.VTime) {
	regular, oversize := d.Occupancy()
	d.peaks.Regular.observe(regular, at)
	d.peaks.Oversize.observe(oversize, at)
	d.peaks.Combined.observe(regular+oversize, at)
}

// recomputePeaks rebuilds the peak counters from scratch over the full
// stay set. Edits and deletes are rare interactive operations, so a full
// replay is preferred over patching counter history.
func (d *DayState) recomputePeaks() {
	type event struct {
		at       vtime.VTime
		in       bool
		oversize bool
	}
	var events []event
	for _, s := range d.allStays() {
		events = append(events, event{at: s.TimeIn, in: true, oversize: s.BikeType == Oversize})
		if !s.Open() {
			events = append(events, event{at: s.TimeOut, oversize: s.BikeType == Oversize})
		}
	}
	// Arrivals sort before departures at the same minute, matching the
	// order the incremental path sees them.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		return events[i].in && !events[j].in
	})

	d.peaks = Peaks{}
	var regular, oversize int
	for _, ev := range events {
		delta := 1
		if !ev.in {
			delta = -1
		}
		if ev.oversize {
			oversize += delta
		} else {
			regular += delta
		}
		if ev.in {
			d.peaks.Regular.observe(regular, ev.at)
			d.peaks.Oversize.observe(oversize, ev.at)
			d.peaks.Combined.observe(regular+oversize, ev.at)
		}
	}
}

// allStays returns every stay of the day in check-in sequence order.
func (d *DayState) allStays() []*Stay {
	out := make([]*Stay, 0, len(d.open)+len(d.closed))
	for _, s := range d.open {
		out = append(out, s)
	}
	out = append(out, d.closed...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// staysFor returns the tag's stays in check-in sequence order.
func (d *DayState) staysFor(tag tagid.TagID) []*Stay {
	var out []*Stay
	for _, s := range d.allStays() {
		if s.Tag == tag {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy. The dayservice snapshots the state before
// each mutation so a failed persistence write can be rolled back.
func (d *DayState) Clone() *DayState {
	c := &DayState{
		date:      d.date,
		openTime:  d.openTime,
		closeTime: d.closeTime,
		ctx:       d.ctx,
		open:      make(map[tagid.TagID]*Stay, len(d.open)),
		closed:    make([]*Stay, 0, len(d.closed)),
		peaks:     d.peaks,
		nextSeq:   d.nextSeq,
	}
	for tag, s := range d.open {
		c.open[tag] = s.clone()
	}
	for _, s := range d.closed {
		c.closed = append(c.closed, s.clone())
	}
	return c
}

// Snapshot is a read-only copy of the day, consumed by the audit engine
// and report renderers.
type Snapshot struct {
	Date      string      `json:"date"`
	OpenTime  vtime.VTime `json:"time_open"`
	CloseTime vtime.VTime `json:"time_closed"`
	Open      []Stay      `json:"open"`
	Closed    []Stay      `json:"closed"`
	Peaks     Peaks       `json:"peaks"`
}

// Snapshot copies the day into an independent read-only view. Open stays
// are ordered by check-in time, closed stays by close order.
func (d *DayState) Snapshot() Snapshot {
	snap := Snapshot{
		Date:      d.date,
		OpenTime:  d.openTime,
		CloseTime: d.closeTime,
		Open:      make([]Stay, 0, len(d.open)),
		Closed:    make([]Stay, 0, len(d.closed)),
		Peaks:     d.peaks,
	}
	for _, s := range d.open {
		snap.Open = append(snap.Open, *s)
	}
	sort.Slice(snap.Open, func(i, j int) bool {
		if snap.Open[i].TimeIn != snap.Open[j].TimeIn {
			return snap.Open[i].TimeIn < snap.Open[j].TimeIn
		}
		return snap.Open[i].Seq < snap.Open[j].Seq
	})
	for _, s := range d.closed {
		snap.Closed = append(snap.Closed, *s)
	}
	return snap
}

// Stays returns every stay in the snapshot, open first.
func (s Snapshot) Stays() []Stay {
	out := make([]Stay, 0, len(s.Open)+len(s.Closed))
	out = append(out, s.Open...)
	out = append(out, s.Closed...)
	return out
}
