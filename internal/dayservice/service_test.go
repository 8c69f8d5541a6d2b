package dayservice

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/valetops/tagtrack/internal/apperr"
	"github.com/valetops/tagtrack/internal/daylog"
	"github.com/valetops/tagtrack/internal/store"
	"github.com/valetops/tagtrack/internal/tagid"
	"github.com/valetops/tagtrack/internal/tracker"
)

type stepClock struct {
	at time.Time
}

func (c *stepClock) Now() time.Time { return c.at }

type testEnv struct {
	session *Session
	db      *store.DB
	dbPath  string
	log     *daylog.Log
	clock   *stepClock
	cfg     Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "test.db")
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dlog, err := daylog.New(filepath.Join(dir, "daylogs"))
	if err != nil {
		t.Fatalf("daylog.New: %v", err)
	}

	clock := &stepClock{at: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
	cfg := Config{
		DB:    db,
		Log:   dlog,
		Clock: clock,
		LoadContext: func() (*tagid.Context, error) {
			return tagid.NewContext([]string{"wa1", "wa2", "wa3"}, []string{"ob1"}, nil, "")
		},
		OpenTime:       7*60 + 30,
		CloseTime:      22 * 60,
		BlockMinutes:   30,
		ConfirmMinutes: 30,
	}

	session, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{session: session, db: db, dbPath: dbPath, log: dlog, clock: clock, cfg: cfg}
}

func TestApplyPersistsMutation(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.session.Apply(tracker.CheckInCmd{Tag: "wa3", Time: "09:14"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stay.TimeIn != 9*60+14 {
		t.Errorf("stay = %+v", res.Stay)
	}

	rows, err := env.db.VisitsForDate("2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Tag != "wa3" || rows[0].TimeOut != "" {
		t.Errorf("db rows = %+v", rows)
	}

	recs, err := env.log.Replay("2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Action != tracker.ActionCheckIn {
		t.Errorf("log records = %+v", recs)
	}
}

func TestQueryBypassesPersistence(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.session.Apply(tracker.QueryCmd{Tag: "wa3"}); err != nil {
		t.Fatal(err)
	}
	recs, err := env.log.Replay("2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("query journaled %d records", len(recs))
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	env := newTestEnv(t)

	mustApply(t, env.session, tracker.CheckInCmd{Tag: "wa1", Time: "10:00"})
	mustApply(t, env.session, tracker.DeleteCmd{Tag: "wa1", Field: tracker.FieldIn, Occurrence: tracker.Latest})

	rows, err := env.db.VisitsForDate("2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("db rows after delete = %+v", rows)
	}

	// The journal keeps the full history including the removal.
	recs, err := env.log.Replay("2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || !recs[1].Removed {
		t.Errorf("log records = %+v", recs)
	}
}

func TestRestartResumesPartialSession(t *testing.T) {
	env := newTestEnv(t)

	mustApply(t, env.session, tracker.CheckInCmd{Tag: "wa3", Time: "09:14"})
	mustApply(t, env.session, tracker.CheckInCmd{Tag: "ob1", Time: "09:30"})
	mustApply(t, env.session, tracker.CheckOutCmd{Tag: "wa3", Time: "11:02"})

	// Simulate a process restart over the same files.
	resumed, err := New(env.cfg)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	snap := resumed.Snapshot()
	if len(snap.Open) != 1 || len(snap.Closed) != 1 {
		t.Fatalf("resumed snapshot: %d open, %d closed", len(snap.Open), len(snap.Closed))
	}
	if snap.Open[0].Tag != "ob1" || snap.Closed[0].Duration() != 108 {
		t.Errorf("resumed stays: %+v / %+v", snap.Open[0], snap.Closed[0])
	}
	if snap.Peaks.Combined.Max != 2 {
		t.Errorf("resumed peaks = %+v", snap.Peaks)
	}

	// New check-ins continue the sequence rather than colliding.
	res, err := resumed.Apply(tracker.CheckInCmd{Tag: "wa1", Time: "12:00"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stay.Seq != 2 {
		t.Errorf("seq after resume = %d, want 2", res.Stay.Seq)
	}
}

func TestFailedPersistRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.db.Close()

	_, err := env.session.Apply(tracker.CheckInCmd{Tag: "wa1", Time: "10:00"})
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	snap := env.session.Snapshot()
	if len(snap.Open) != 0 {
		t.Error("failed write must roll the in-memory stay back")
	}
}

func TestRolloverFinalizesDay(t *testing.T) {
	env := newTestEnv(t)

	mustApply(t, env.session, tracker.CheckInCmd{Tag: "wa1", Time: "10:00"})
	mustApply(t, env.session, tracker.CheckOutCmd{Tag: "wa1", Time: "12:00"})
	mustApply(t, env.session, tracker.CheckInCmd{Tag: "wa2", Time: "15:00"})

	env.clock.at = env.clock.at.Add(24 * time.Hour)
	if err := env.session.Rollover(); err != nil {
		t.Fatalf("Rollover: %v", err)
	}

	snap := env.session.Snapshot()
	if snap.Date != "2026-03-15" {
		t.Errorf("date after rollover = %s", snap.Date)
	}
	if len(snap.Open)+len(snap.Closed) != 0 {
		t.Error("new day should start empty")
	}

	// wa2 was never reclaimed: persisted as a 24:00 leftover.
	rows, err := env.db.VisitsForDate("2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	var leftovers int
	for _, r := range rows {
		if r.Leftover {
			leftovers++
			if r.TimeOut != "24:00" {
				t.Errorf("leftover row = %+v", r)
			}
		}
	}
	if leftovers != 1 {
		t.Errorf("leftover rows = %d, want 1", leftovers)
	}

	// A second rollover call on the same date is a no-op.
	if err := env.session.Rollover(); err != nil {
		t.Fatalf("repeat Rollover: %v", err)
	}
}

func TestFailedStoreWriteCompensatesJournal(t *testing.T) {
	env := newTestEnv(t)
	mustApply(t, env.session, tracker.CheckInCmd{Tag: "wa1", Time: "09:00"})
	env.db.Close()

	// Check-out journaled but the row update fails: the compensation
	// record must restore the stay to its committed open state.
	_, err := env.session.Apply(tracker.CheckOutCmd{Tag: "wa1", Time: "11:00"})
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	// A fresh check-in that fails has no committed state to restore.
	_, err = env.session.Apply(tracker.CheckInCmd{Tag: "wa2", Time: "11:30"})
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	recs, err := env.log.Replay("2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	stays := daylog.Rebuild(recs)
	if len(stays) != 1 {
		t.Fatalf("replayed stays = %+v, want only the committed check-in", stays)
	}
	if stays[0].Tag != "wa1" || !stays[0].Open() {
		t.Errorf("replayed stay = %+v, want wa1 still open", stays[0])
	}
}

func TestRolloverRetriesAfterFailedFinalize(t *testing.T) {
	env := newTestEnv(t)
	mustApply(t, env.session, tracker.CheckInCmd{Tag: "wa1", Time: "10:00"})
	mustApply(t, env.session, tracker.CheckOutCmd{Tag: "wa1", Time: "12:00"})
	mustApply(t, env.session, tracker.CheckInCmd{Tag: "wa2", Time: "15:00"})

	raw, err := sql.Open("sqlite3", env.dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()
	if _, err := raw.Exec(`ALTER TABLE days RENAME TO days_unavailable`); err != nil {
		t.Fatal(err)
	}

	env.clock.at = env.clock.at.Add(24 * time.Hour)
	if err := env.session.Rollover(); err == nil {
		t.Fatal("Rollover should fail while the days table is unavailable")
	}

	// The failed hand-off must leave the day un-finalized so the retry
	// still sees wa2 as open.
	if snap := env.session.Snapshot(); len(snap.Open) != 1 {
		t.Fatalf("open stays after failed rollover = %d, want 1", len(snap.Open))
	}

	if _, err := raw.Exec(`ALTER TABLE days_unavailable RENAME TO days`); err != nil {
		t.Fatal(err)
	}
	if err := env.session.Rollover(); err != nil {
		t.Fatalf("retry Rollover: %v", err)
	}

	rows, err := env.db.VisitsForDate("2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	var leftovers int
	for _, r := range rows {
		if r.Tag == "wa2" {
			leftovers++
			if !r.Leftover || r.TimeOut != "24:00" {
				t.Errorf("wa2 row after retried rollover = %+v", r)
			}
		}
	}
	if leftovers != 1 {
		t.Errorf("wa2 rows = %d, want 1", leftovers)
	}
}

func TestRolloverTriggeredByApply(t *testing.T) {
	env := newTestEnv(t)
	mustApply(t, env.session, tracker.CheckInCmd{Tag: "wa1", Time: "10:00"})

	env.clock.at = env.clock.at.Add(24 * time.Hour)
	res, err := env.session.Apply(tracker.CheckInCmd{Tag: "wa1", Time: "09:00"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stay.Seq != 0 {
		t.Errorf("seq on the new day = %d, want 0", res.Stay.Seq)
	}
	if env.session.Snapshot().Date != "2026-03-15" {
		t.Errorf("date = %s", env.session.Snapshot().Date)
	}
}

func TestSummaryAndInventory(t *testing.T) {
	env := newTestEnv(t)
	mustApply(t, env.session, tracker.CheckInCmd{Tag: "wa1", Time: "10:00"})
	mustApply(t, env.session, tracker.CheckOutCmd{Tag: "wa1", Time: "11:48"})

	sum := env.session.Summary()
	if sum.Totals.Parked.Combined != 1 || sum.Stats.Count != 1 {
		t.Errorf("summary = %+v", sum.Totals)
	}
	if sum.Stats.Longest != 108 {
		t.Errorf("longest = %d", sum.Stats.Longest)
	}

	rows := env.session.Inventory()
	if len(rows) == 0 {
		t.Fatal("no inventory rows")
	}
}

func mustApply(t *testing.T, s *Session, cmd tracker.Command) tracker.Result {
	t.Helper()
	res, err := s.Apply(cmd)
	if err != nil {
		t.Fatalf("Apply(%T): %v", cmd, err)
	}
	return res
}
