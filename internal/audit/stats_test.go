package audit

import (
	"reflect"
	"testing"
)

func TestVisitStatsEmpty(t *testing.T) {
	stats := NewVisitStats(nil, 30)
	if stats.Count != 0 || stats.Mode != 0 || stats.Modes != nil {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestVisitStatsSingleMode(t *testing.T) {
	// Bins of 30: {0:1, 30:3, 90:1}.
	durations := []int{25, 35, 40, 55, 100}
	stats := NewVisitStats(durations, 30)

	if stats.Count != 5 {
		t.Errorf("count = %d", stats.Count)
	}
	if stats.Shortest != 25 || stats.Longest != 100 {
		t.Errorf("range = %d..%d", stats.Shortest, stats.Longest)
	}
	if stats.Median != 40 {
		t.Errorf("median = %d, want 40", stats.Median)
	}
	// 255/5 = 51.
	if stats.Mean != 51 {
		t.Errorf("mean = %d, want 51", stats.Mean)
	}
	// The 30-59 bin wins with 3 hits, reported as its centre.
	if stats.Mode != 45 || stats.ModeHits != 3 {
		t.Errorf("mode = %d (%d hits)", stats.Mode, stats.ModeHits)
	}
	if !reflect.DeepEqual(stats.Modes, []int{45}) {
		t.Errorf("modes = %v", stats.Modes)
	}
}

func TestVisitStatsTiedModes(t *testing.T) {
	// Bins: {30:2, 120:2}, tied.
	durations := []int{30, 45, 120, 130}
	stats := NewVisitStats(durations, 30)

	if !reflect.DeepEqual(stats.Modes, []int{45, 135}) {
		t.Errorf("modes = %v, want [45 135]", stats.Modes)
	}
	if stats.Mode != 45 {
		t.Errorf("mode = %d, want smallest tied mode", stats.Mode)
	}
	if stats.ModeHits != 2 {
		t.Errorf("mode hits = %d", stats.ModeHits)
	}
}

func TestVisitStatsEvenMedian(t *testing.T) {
	stats := NewVisitStats([]int{10, 20, 30, 100}, 30)
	if stats.Median != 25 {
		t.Errorf("median = %d, want 25", stats.Median)
	}
}

func TestVisitStatsMeanRounds(t *testing.T) {
	// 10+11 = 21, 21/2 = 10.5, rounds to 11.
	stats := NewVisitStats([]int{10, 11}, 30)
	if stats.Mean != 11 {
		t.Errorf("mean = %d, want 11", stats.Mean)
	}
}

func TestVisitStatsZeroDurationCounts(t *testing.T) {
	stats := NewVisitStats([]int{0}, 30)
	if stats.Count != 1 || stats.Shortest != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Mode != 15 {
		t.Errorf("mode = %d, want centre of the first bin", stats.Mode)
	}
}

func TestTidyMinutes(t *testing.T) {
	if got := TidyMinutes(108); got != " 1:48" {
		t.Errorf("TidyMinutes(108) = %q", got)
	}
}
