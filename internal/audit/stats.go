// Package audit computes on-demand summaries over a day snapshot: peak
// and block reports, stay-length statistics, and the tag inventory
// matrix used to audit against the physical tag set.
package audit

import (
	"sort"

	"github.com/valetops/tagtrack/internal/vtime"
)

// DefaultBinWidth is the duration bin (minutes) used for mode
// calculation, one report block wide.
const DefaultBinWidth = 30

// VisitStats holds the statistical measures for a set of closed-stay
// durations, all in minutes.
type VisitStats struct {
	Count    int   `json:"count"`
	Mean     int   `json:"mean"`
	Median   int   `json:"median"`
	Mode     int   `json:"mode"`
	Modes    []int `json:"modes"`
	ModeHits int   `json:"mode_hits"`
	Shortest int   `json:"shortest"`
	Longest  int   `json:"longest"`
}

// NewVisitStats computes mean, median, and mode over durations. Modes
// are found by binning into binWidth-minute categories and reported as
// bin centres; every equally frequent bin is a mode, listed ascending,
// and Mode is the smallest. Zero durations count: a same-minute
// check-in/check-out is still a visit.
func NewVisitStats(durations []int, binWidth int) VisitStats {
	if len(durations) == 0 {
		return VisitStats{}
	}
	if binWidth <= 0 {
		binWidth = DefaultBinWidth
	}

	sorted := append([]int(nil), durations...)
	sort.Ints(sorted)

	stats := VisitStats{
		Count:    len(sorted),
		Shortest: sorted[0],
		Longest:  sorted[len(sorted)-1],
		Median:   median(sorted),
	}

	sum := 0
	freq := make(map[int]int)
	for _, d := range sorted {
		sum += d
		freq[d/binWidth*binWidth]++
	}
	stats.Mean = (sum + len(sorted)/2) / len(sorted)

	for _, n := range freq {
		if n > stats.ModeHits {
			stats.ModeHits = n
		}
	}
	for bin, n := range freq {
		if n == stats.ModeHits {
			stats.Modes = append(stats.Modes, bin+binWidth/2)
		}
	}
	sort.Ints(stats.Modes)
	stats.Mode = stats.Modes[0]
	return stats
}

// median of an already sorted slice; even counts average the middle two.
func median(sorted []int) int {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// TidyMinutes formats a duration in minutes as an "H:MM"-style string
// for report output.
func TidyMinutes(minutes int) string {
	return vtime.VTime(minutes).Tidy()
}
