package audit

import (
	"testing"

	"github.com/valetops/tagtrack/internal/tracker"
	"github.com/valetops/tagtrack/internal/vtime"
)

func testSnapshot() tracker.Snapshot {
	return tracker.Snapshot{
		Date:      "2026-03-14",
		OpenTime:  9 * 60,
		CloseTime: 22 * 60,
		Open: []tracker.Stay{
			{Seq: 3, Tag: "wa2", TimeIn: 10*60 + 40, TimeOut: tracker.NoTimeOut},
		},
		Closed: []tracker.Stay{
			{Seq: 0, Tag: "wa1", TimeIn: 9*60 + 10, TimeOut: 10*60 + 5},
			{Seq: 1, Tag: "ob1", TimeIn: 9*60 + 20, TimeOut: 11 * 60, BikeType: tracker.Oversize},
			{Seq: 2, Tag: "be1", TimeIn: 10 * 60, TimeOut: vtime.EndOfDay, Leftover: true},
		},
		Peaks: tracker.Peaks{
			Combined: tracker.PeakCounter{Max: 3, At: 10 * 60},
		},
	}
}

func TestSummarizeTotals(t *testing.T) {
	sum := Summarize(testSnapshot(), 30)

	if sum.Date != "2026-03-14" {
		t.Errorf("date = %q", sum.Date)
	}
	if sum.Totals.Parked.Regular != 3 || sum.Totals.Parked.Oversize != 1 || sum.Totals.Parked.Combined != 4 {
		t.Errorf("parked = %+v", sum.Totals.Parked)
	}
	if sum.Totals.OnHand.Combined != 1 {
		t.Errorf("on hand = %+v", sum.Totals.OnHand)
	}
	if sum.Totals.Leftover != 1 {
		t.Errorf("leftover = %d", sum.Totals.Leftover)
	}
	if sum.Totals.TimeOpen != 9*60 || sum.Totals.TimeClose != 22*60 {
		t.Errorf("hours = %s-%s", sum.Totals.TimeOpen, sum.Totals.TimeClose)
	}
	if sum.Totals.Peaks.Combined.Max != 3 {
		t.Errorf("peaks = %+v", sum.Totals.Peaks)
	}
	// Open stays contribute no duration.
	if sum.Stats.Count != 3 {
		t.Errorf("stats count = %d, want 3", sum.Stats.Count)
	}
}

func TestSummarizeBlocks(t *testing.T) {
	sum := Summarize(testSnapshot(), 30)

	if len(sum.Blocks) == 0 {
		t.Fatal("no blocks")
	}
	// Blocks start at the opening time's block and run through the
	// leftover's 24:00 close.
	if sum.Blocks[0].Start != 9*60 {
		t.Errorf("first block = %s", sum.Blocks[0].Start)
	}
	last := sum.Blocks[len(sum.Blocks)-1]
	if last.Start != vtime.EndOfDay {
		t.Errorf("last block = %s", last.Start)
	}

	by := make(map[vtime.VTime]Block)
	for _, b := range sum.Blocks {
		by[b.Start] = b
	}
	// 9:00 block: wa1 and ob1 arrive.
	if b := by[9*60]; b.In.Combined != 2 || b.Out.Combined != 0 || b.OnHand.Combined != 2 {
		t.Errorf("9:00 block = %+v", b)
	}
	// 10:00 block: be1 in at 10:00, wa1 out at 10:05 -> still 2 on hand.
	if b := by[10*60]; b.In.Combined != 1 || b.Out.Combined != 1 || b.OnHand.Combined != 2 {
		t.Errorf("10:00 block = %+v", b)
	}
	// Fullest moment in the 10:00 block is 3 (be1 in before wa1 out).
	if b := by[10*60]; b.Fullest.Combined != 3 {
		t.Errorf("10:00 fullest = %+v", b.Fullest)
	}
	// Quiet block carries the on-hand count forward.
	if b := by[12*60]; b.OnHand.Combined != 2 || b.In.Combined != 0 {
		t.Errorf("12:00 block = %+v", b)
	}

	// 9:00 and 10:00 tie at two events each; the earlier block wins.
	if sum.BusiestBlock != 9*60 {
		t.Errorf("busiest = %s", sum.BusiestBlock)
	}
}

func TestSummarizeEmptyDay(t *testing.T) {
	sum := Summarize(tracker.Snapshot{Date: "2026-03-14", OpenTime: 9 * 60, CloseTime: 22 * 60}, 30)
	if len(sum.Blocks) != 0 {
		t.Errorf("blocks = %d, want 0", len(sum.Blocks))
	}
	if sum.Stats.Count != 0 {
		t.Errorf("stats = %+v", sum.Stats)
	}
}
