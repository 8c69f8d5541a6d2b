package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/valetops/tagtrack/internal/audit"
	"github.com/valetops/tagtrack/internal/tracker"
)

// VisitID builds the primary key for a stay's row: date.tag.seq.
func VisitID(date string, stay *tracker.Stay) string {
	return fmt.Sprintf("%s.%s.%d", date, stay.Tag, stay.Seq)
}

// UpsertVisit inserts or replaces the row for one stay. Open stays store
// a NULL time_out and duration.
func (db *DB) UpsertVisit(date string, stay *tracker.Stay, batch string) error {
	var timeOut sql.NullString
	var duration sql.NullInt64
	if stay.TimeOut != tracker.NoTimeOut {
		timeOut = sql.NullString{String: stay.TimeOut.Format(), Valid: true}
		duration = sql.NullInt64{Int64: int64(stay.Duration()), Valid: true}
	}
	leftover := 0
	if stay.Leftover {
		leftover = 1
	}

	return withRetry(func() error {
		_, err := db.conn.Exec(`
			INSERT INTO visits (id, date, tag, type, time_in, time_out, duration, leftover, notes, batch)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', ?)
			ON CONFLICT(id) DO UPDATE SET
				time_in  = excluded.time_in,
				time_out = excluded.time_out,
				duration = excluded.duration,
				leftover = excluded.leftover,
				batch    = excluded.batch
		`, VisitID(date, stay), date, stay.Tag.String(), stay.BikeType.String(),
			stay.TimeIn.Format(), timeOut, duration, leftover, batch)
		return err
	})
}

// DeleteVisit removes the row for one stay.
func (db *DB) DeleteVisit(date string, stay *tracker.Stay) error {
	return withRetry(func() error {
		_, err := db.conn.Exec(`DELETE FROM visits WHERE id = ?`, VisitID(date, stay))
		return err
	})
}

// FinalizeDay writes the day-summary row and the leftover visit rows in
// one transaction, at rollover.
func (db *DB) FinalizeDay(date string, totals audit.Totals, leftovers []*tracker.Stay, batch string) error {
	weekday := 0
	if t, err := time.Parse(tracker.DateLayout, date); err == nil {
		weekday = int(t.Weekday())
	}

	return withRetry(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck // best-effort on failure path

		_, err = tx.Exec(`
			INSERT INTO days (date, parked_regular, parked_oversize, parked_total, leftover,
				max_regular, max_regular_time, max_oversize, max_oversize_time,
				max_total, max_total_time, time_open, time_closed, weekday)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET
				parked_regular    = excluded.parked_regular,
				parked_oversize   = excluded.parked_oversize,
				parked_total      = excluded.parked_total,
				leftover          = excluded.leftover,
				max_regular       = excluded.max_regular,
				max_regular_time  = excluded.max_regular_time,
				max_oversize      = excluded.max_oversize,
				max_oversize_time = excluded.max_oversize_time,
				max_total         = excluded.max_total,
				max_total_time    = excluded.max_total_time,
				time_open         = excluded.time_open,
				time_closed       = excluded.time_closed,
				weekday           = excluded.weekday
		`, date, totals.Parked.Regular, totals.Parked.Oversize, totals.Parked.Combined,
			totals.Leftover,
			totals.Peaks.Regular.Max, totals.Peaks.Regular.At.Format(),
			totals.Peaks.Oversize.Max, totals.Peaks.Oversize.At.Format(),
			totals.Peaks.Combined.Max, totals.Peaks.Combined.At.Format(),
			totals.TimeOpen.Format(), totals.TimeClose.Format(), weekday)
		if err != nil {
			return err
		}

		for _, stay := range leftovers {
			_, err = tx.Exec(`
				INSERT INTO visits (id, date, tag, type, time_in, time_out, duration, leftover, notes, batch)
				VALUES (?, ?, ?, ?, ?, ?, ?, 1, '', ?)
				ON CONFLICT(id) DO UPDATE SET
					time_out = excluded.time_out,
					duration = excluded.duration,
					leftover = 1,
					batch    = excluded.batch
			`, VisitID(date, stay), date, stay.Tag.String(), stay.BikeType.String(),
				stay.TimeIn.Format(), stay.TimeOut.Format(), stay.Duration(), batch)
			if err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

// VisitRow is one persisted visit as read back for reports.
type VisitRow struct {
	ID       string
	Date     string
	Tag      string
	Type     string
	TimeIn   string
	TimeOut  string // empty when still open
	Duration int
	Leftover bool
}

// VisitsForDate returns the date's visit rows ordered by check-in time.
func (db *DB) VisitsForDate(date string) ([]VisitRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, date, tag, type, time_in,
			COALESCE(time_out, ''), COALESCE(duration, 0), leftover
		FROM visits WHERE date = ? ORDER BY time_in, id`, date)
	if err != nil {
		return nil, fmt.Errorf("store: visits for %s: %w", date, err)
	}
	defer rows.Close()

	var out []VisitRow
	for rows.Next() {
		var r VisitRow
		var leftover int
		if err := rows.Scan(&r.ID, &r.Date, &r.Tag, &r.Type, &r.TimeIn, &r.TimeOut, &r.Duration, &leftover); err != nil {
			return nil, err
		}
		r.Leftover = leftover != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Batch returns a batch identifier for the current write, timestamped to
// the minute so related rows group together.
func Batch(now time.Time) string {
	return now.Format("2006-01-02T15:04")
}
