// Package daylog maintains the append-only, human-inspectable flat log
// of one day's tag activity. Every successful mutation appends one
// record; replaying the file recovers a partial session after a crash
// or restart.
package daylog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/valetops/tagtrack/internal/tagid"
	"github.com/valetops/tagtrack/internal/tracker"
	"github.com/valetops/tagtrack/internal/vtime"
)

const openMark = "-"

// Record is one logged mutation: the stay's state after the operation.
// Removed marks a record whose stay was deleted outright.
type Record struct {
	At      vtime.VTime
	Action  tracker.Action
	Seq     int
	Tag     tagid.TagID
	Type    tracker.BikeType
	TimeIn  vtime.VTime
	TimeOut vtime.VTime // tracker.NoTimeOut while open
	Removed bool
}

// Log writes and replays per-date log files under a directory.
type Log struct {
	dir string
}

// New creates a Log rooted at dir, creating the directory if needed.
func New(dir string) (*Log, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("daylog: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("daylog: create dir: %w", err)
	}
	return &Log{dir: abs}, nil
}

// Path returns the log file path for a date.
func (l *Log) Path(date string) string {
	return filepath.Join(l.dir, date+".log")
}

// Append writes one record to the date's log file and syncs it. The
// single O_APPEND write keeps records whole even if a backfill process
// reads the file concurrently.
func (l *Log) Append(date string, rec Record) error {
	f, err := os.OpenFile(l.Path(date), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("daylog: open %s: %w", date, err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatRecord(rec)); err != nil {
		return fmt.Errorf("daylog: append %s: %w", date, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("daylog: sync %s: %w", date, err)
	}
	return nil
}

func formatRecord(rec Record) string {
	out := openMark
	if rec.TimeOut != tracker.NoTimeOut {
		out = rec.TimeOut.Format()
	}
	removed := "0"
	if rec.Removed {
		removed = "1"
	}
	return fmt.Sprintf("%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
		rec.At.Format(), rec.Action, rec.Seq, rec.Tag, rec.Type,
		rec.TimeIn.Format(), out, removed)
}

// Replay reads the date's log file back into records, in append order.
// A missing file yields no records and no error. Lines starting with #
// are comments; malformed lines abort the replay so a damaged log is
// noticed rather than silently truncated.
func (l *Log) Replay(date string) ([]Record, error) {
	f, err := os.Open(l.Path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("daylog: open %s: %w", date, err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := parseRecord(text)
		if err != nil {
			return nil, fmt.Errorf("daylog: %s line %d: %w", date, line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("daylog: read %s: %w", date, err)
	}
	return records, nil
}

func parseRecord(text string) (Record, error) {
	fields := strings.Split(text, "\t")
	if len(fields) != 8 {
		return Record{}, fmt.Errorf("want 8 fields, got %d", len(fields))
	}

	at, err := vtime.Parse(fields[0], 0)
	if err != nil {
		return Record{}, err
	}
	seq, err := strconv.Atoi(fields[2])
	if err != nil {
		return Record{}, fmt.Errorf("bad seq %q", fields[2])
	}
	tag, err := tagid.Parse(fields[3], "")
	if err != nil {
		return Record{}, err
	}
	bikeType := tracker.Regular
	if fields[4] == tracker.Oversize.String() {
		bikeType = tracker.Oversize
	}
	timeIn, err := vtime.Parse(fields[5], 0)
	if err != nil {
		return Record{}, err
	}
	timeOut := tracker.NoTimeOut
	if fields[6] != openMark {
		if timeOut, err = vtime.Parse(fields[6], 0); err != nil {
			return Record{}, err
		}
	}

	return Record{
		At:      at,
		Action:  tracker.Action(fields[1]),
		Seq:     seq,
		Tag:     tag,
		Type:    bikeType,
		TimeIn:  timeIn,
		TimeOut: timeOut,
		Removed: fields[7] == "1",
	}, nil
}

// Rebuild folds replayed records into the surviving stays, in seq
// order. Later records for the same seq supersede earlier ones; removed
// records drop the stay.
func Rebuild(records []Record) []tracker.Stay {
	bySeq := make(map[int]*tracker.Stay)
	var order []int
	for _, rec := range records {
		if rec.Removed {
			delete(bySeq, rec.Seq)
			continue
		}
		if _, seen := bySeq[rec.Seq]; !seen {
			order = append(order, rec.Seq)
		}
		bySeq[rec.Seq] = &tracker.Stay{
			Seq:      rec.Seq,
			Tag:      rec.Tag,
			TimeIn:   rec.TimeIn,
			TimeOut:  rec.TimeOut,
			BikeType: rec.Type,
		}
	}

	var stays []tracker.Stay
	for _, seq := range order {
		if s, ok := bySeq[seq]; ok {
			stays = append(stays, *s)
		}
	}
	return stays
}
