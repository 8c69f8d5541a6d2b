package audit

import (
	"sort"

	"github.com/valetops/tagtrack/internal/tracker"
	"github.com/valetops/tagtrack/internal/vtime"
)

// CategoryCounts carries a count for each bike-size category plus the
// combined total.
type CategoryCounts struct {
	Regular  int `json:"regular"`
	Oversize int `json:"oversize"`
	Combined int `json:"combined"`
}

func (c *CategoryCounts) add(oversize bool, delta int) {
	if oversize {
		c.Oversize += delta
	} else {
		c.Regular += delta
	}
	c.Combined += delta
}

// Block summarizes one fixed time interval of the day: arrivals,
// departures, bikes on hand at the end of the block, and the fullest
// moment within it.
type Block struct {
	Start   vtime.VTime    `json:"start"`
	In      CategoryCounts `json:"incoming"`
	Out     CategoryCounts `json:"outgoing"`
	OnHand  CategoryCounts `json:"on_hand"`
	Fullest CategoryCounts `json:"fullest"`
}

// Events returns the combined arrivals and departures in the block,
// the "busyness" measure.
func (b Block) Events() int { return b.In.Combined + b.Out.Combined }

// Summary is the whole-day report over a snapshot: per-block activity,
// totals shaped like the days table row, and stay-length statistics.
type Summary struct {
	Date         string      `json:"date"`
	Blocks       []Block     `json:"blocks"`
	BusiestBlock vtime.VTime `json:"busiest_block"`
	Totals       Totals      `json:"totals"`
	Stats        VisitStats  `json:"stats"`
}

// Totals mirrors the day-level aggregate row handed to persistence.
type Totals struct {
	Parked    CategoryCounts `json:"parked"`
	OnHand    CategoryCounts `json:"on_hand"`
	Leftover  int            `json:"leftover"`
	Peaks     tracker.Peaks  `json:"peaks"`
	TimeOpen  vtime.VTime    `json:"time_open"`
	TimeClose vtime.VTime    `json:"time_closed"`
}

// Summarize computes the day summary from a snapshot. blockMinutes is
// the bucket width (30 for the standard half-hour report). Blocks run
// from the block containing the earliest event (or the opening time)
// through the block containing the latest.
func Summarize(snap tracker.Snapshot, blockMinutes int) Summary {
	if blockMinutes <= 0 {
		blockMinutes = DefaultBinWidth
	}

	sum := Summary{Date: snap.Date}
	stays := snap.Stays()

	var durations []int
	for _, s := range stays {
		sum.Totals.Parked.add(s.BikeType == tracker.Oversize, 1)
		if s.Leftover {
			sum.Totals.Leftover++
		}
		if !s.Open() {
			durations = append(durations, s.Duration())
		}
	}
	for _, s := range snap.Open {
		sum.Totals.OnHand.add(s.BikeType == tracker.Oversize, 1)
	}
	sum.Totals.Peaks = snap.Peaks
	sum.Totals.TimeOpen = snap.OpenTime
	sum.Totals.TimeClose = snap.CloseTime
	sum.Stats = NewVisitStats(durations, blockMinutes)

	sum.Blocks = buildBlocks(snap, stays, blockMinutes)
	best := -1
	for _, b := range sum.Blocks {
		// First block wins a tie.
		if b.Events() > best {
			best = b.Events()
			sum.BusiestBlock = b.Start
		}
	}
	return sum
}

type occEvent struct {
	at       vtime.VTime
	in       bool
	oversize bool
}

func buildBlocks(snap tracker.Snapshot, stays []tracker.Stay, blockMinutes int) []Block {
	if len(stays) == 0 {
		return nil
	}

	var events []occEvent
	first, last := vtime.EndOfDay, vtime.VTime(0)
	for _, s := range stays {
		events = append(events, occEvent{at: s.TimeIn, in: true, oversize: s.BikeType == tracker.Oversize})
		if s.TimeIn < first {
			first = s.TimeIn
		}
		if s.TimeIn > last {
			last = s.TimeIn
		}
		if !s.Open() {
			events = append(events, occEvent{at: s.TimeOut, oversize: s.BikeType == tracker.Oversize})
			if s.TimeOut > last {
				last = s.TimeOut
			}
		}
	}
	if snap.OpenTime < first {
		first = snap.OpenTime
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		return events[i].in && !events[j].in
	})

	startBlock := vtime.BlockStart(first, blockMinutes)
	endBlock := vtime.BlockStart(last, blockMinutes)

	var blocks []Block
	byStart := make(map[vtime.VTime]*Block)
	for at := startBlock; at <= endBlock; at += vtime.VTime(blockMinutes) {
		blocks = append(blocks, Block{Start: at})
	}
	for i := range blocks {
		byStart[blocks[i].Start] = &blocks[i]
	}

	var onHand CategoryCounts
	for _, ev := range events {
		b := byStart[vtime.BlockStart(ev.at, blockMinutes)]
		if ev.in {
			b.In.add(ev.oversize, 1)
			onHand.add(ev.oversize, 1)
		} else {
			b.Out.add(ev.oversize, 1)
			onHand.add(ev.oversize, -1)
		}
		if onHand.Combined > b.Fullest.Combined {
			b.Fullest = onHand
		}
	}

	// OnHand is the holding at the end of each block: carry the running
	// count forward through blocks with no events.
	var carry CategoryCounts
	for i := range blocks {
		b := &blocks[i]
		carry.Regular += b.In.Regular - b.Out.Regular
		carry.Oversize += b.In.Oversize - b.Out.Oversize
		carry.Combined += b.In.Combined - b.Out.Combined
		b.OnHand = carry
		if b.Fullest.Combined < carry.Combined {
			b.Fullest = carry
		}
	}
	return blocks
}
