package audit

import (
	"sort"

	"github.com/valetops/tagtrack/internal/tagid"
	"github.com/valetops/tagtrack/internal/tracker"
)

// InventoryRow counts stays and context tags for one colour prefix, for
// auditing the day's records against the physical tag set.
type InventoryRow struct {
	Colour string `json:"colour"`

	// Stay counts for the day.
	RegularStays  int `json:"regular_stays"`
	OversizeStays int `json:"oversize_stays"`
	OpenNow       int `json:"open_now"`
	Leftover      int `json:"leftover"`

	// Tag counts from the day's context.
	TagsRegular  int `json:"tags_regular"`
	TagsOversize int `json:"tags_oversize"`
	TagsRetired  int `json:"tags_retired"`
}

// Inventory builds the colour-by-category matrix from a snapshot and the
// day's tag context, one row per colour letter, sorted.
func Inventory(snap tracker.Snapshot, ctx *tagid.Context) []InventoryRow {
	rows := make(map[string]*InventoryRow)
	row := func(colour string) *InventoryRow {
		r, ok := rows[colour]
		if !ok {
			r = &InventoryRow{Colour: colour}
			rows[colour] = r
		}
		return r
	}

	for _, s := range snap.Stays() {
		r := row(s.Tag.Colour())
		if s.BikeType == tracker.Oversize {
			r.OversizeStays++
		} else {
			r.RegularStays++
		}
		if s.Open() {
			r.OpenNow++
		}
		if s.Leftover {
			r.Leftover++
		}
	}

	if ctx != nil {
		for _, t := range ctx.Members(tagid.KindRegular) {
			row(t.Colour()).TagsRegular++
		}
		for _, t := range ctx.Members(tagid.KindOversize) {
			row(t.Colour()).TagsOversize++
		}
		for _, t := range ctx.Members(tagid.KindRetired) {
			row(t.Colour()).TagsRetired++
		}
	}

	out := make([]InventoryRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Colour < out[j].Colour })
	return out
}
