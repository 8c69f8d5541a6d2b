// Package dayservice coordinates the occupancy engine with its
// persistence collaborators: every successful mutation is journaled to
// the flat day log and upserted into SQLite before it is considered
// committed, and day rollover hands the finished day off with its
// leftovers intact.
package dayservice

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/valetops/tagtrack/internal/apperr"
	"github.com/valetops/tagtrack/internal/audit"
	"github.com/valetops/tagtrack/internal/daylog"
	"github.com/valetops/tagtrack/internal/sse"
	"github.com/valetops/tagtrack/internal/store"
	"github.com/valetops/tagtrack/internal/tagid"
	"github.com/valetops/tagtrack/internal/tracker"
	"github.com/valetops/tagtrack/internal/vtime"
)

// ContextLoader supplies a fresh tag context, called at start-up, at
// rollover, and when the configuration file changes.
type ContextLoader func() (*tagid.Context, error)

// Config wires a Session.
type Config struct {
	DB     *store.DB
	Log    *daylog.Log
	Broker *sse.Broker // may be nil
	Clock  tracker.Clock
	Logger *slog.Logger

	LoadContext    ContextLoader
	OpenTime       vtime.VTime
	CloseTime      vtime.VTime
	BlockMinutes   int
	ConfirmMinutes int
	IgnoreChars    string
}

// Session owns one day's state and serializes access to it. The engine
// itself is single-threaded; the mutex only shields it from the HTTP
// report readers.
type Session struct {
	mu     sync.Mutex
	engine *tracker.Engine
	cfg    Config
}

// New builds a Session for today, replaying today's day log so a
// restarted process resumes the partial session instead of losing it.
func New(cfg Config) (*Session, error) {
	if cfg.Clock == nil {
		cfg.Clock = tracker.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BlockMinutes <= 0 {
		cfg.BlockMinutes = audit.DefaultBinWidth
	}

	ctx, err := cfg.LoadContext()
	if err != nil {
		return nil, fmt.Errorf("dayservice: load tag context: %w", err)
	}

	today := cfg.Clock.Now().Format(tracker.DateLayout)
	records, err := cfg.Log.Replay(today)
	if err != nil {
		return nil, fmt.Errorf("dayservice: replay day log: %w", err)
	}

	var day *tracker.DayState
	if len(records) > 0 {
		stays := daylog.Rebuild(records)
		day = tracker.RestoreDayState(today, ctx, cfg.OpenTime, cfg.CloseTime, stays)
		cfg.Logger.Info("resumed partial session",
			slog.String("date", today),
			slog.Int("stays", len(stays)))
	} else {
		day = tracker.NewDayState(today, ctx, cfg.OpenTime, cfg.CloseTime)
	}

	s := &Session{cfg: cfg}
	s.engine = tracker.NewEngine(day, cfg.Clock, cfg.IgnoreChars, cfg.ConfirmMinutes)
	return s, nil
}

// Apply validates and applies one command, then persists the mutation.
// If the durable write fails after retries, the in-memory state is
// restored from its pre-image and the error wraps apperr.ErrPersistence:
// the mutation is not committed and data loss is never silent.
func (s *Session) Apply(cmd tracker.Command) (tracker.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rolloverLocked(); err != nil {
		return tracker.Result{}, err
	}

	if _, readOnly := cmd.(tracker.QueryCmd); readOnly {
		return s.engine.Apply(cmd)
	}

	preImage := s.engine.Day().Clone()
	res, err := s.engine.Apply(cmd)
	if err != nil {
		return tracker.Result{}, err
	}

	journaled, err := s.persist(res)
	if err != nil {
		s.engine.SetDay(preImage)
		if journaled {
			s.compensateJournal(res, preImage)
		}
		return tracker.Result{}, err
	}

	s.publish(res)
	return res, nil
}

// persist journals the mutation and upserts it into SQLite. The
// returned bool reports whether the journal record landed, so a
// failed database write can be compensated in the log.
func (s *Session) persist(res tracker.Result) (bool, error) {
	date := s.engine.Day().Date()
	now := vtime.FromClock(s.cfg.Clock.Now())

	rec := daylog.Record{
		At:      now,
		Action:  res.Action,
		Seq:     res.Stay.Seq,
		Tag:     res.Stay.Tag,
		Type:    res.Stay.BikeType,
		TimeIn:  res.Stay.TimeIn,
		TimeOut: res.Stay.TimeOut,
		Removed: res.Removed,
	}
	if err := s.cfg.Log.Append(date, rec); err != nil {
		return false, fmt.Errorf("%w: day log write unconfirmed: %v", apperr.ErrPersistence, err)
	}

	batch := store.Batch(s.cfg.Clock.Now())
	if res.Removed {
		return true, s.cfg.DB.DeleteVisit(date, res.Stay)
	}
	return true, s.cfg.DB.UpsertVisit(date, res.Stay, batch)
}

// compensateJournal appends a record restoring the rolled-back stay to
// its pre-image state, so a replay does not resurrect a mutation the
// caller was told did not commit. Best effort: a failed append is
// logged and the next record for the same seq supersedes it anyway.
func (s *Session) compensateJournal(res tracker.Result, preImage *tracker.DayState) {
	rec := daylog.Record{
		At:      vtime.FromClock(s.cfg.Clock.Now()),
		Action:  res.Action,
		Seq:     res.Stay.Seq,
		Tag:     res.Stay.Tag,
		Type:    res.Stay.BikeType,
		TimeIn:  res.Stay.TimeIn,
		TimeOut: tracker.NoTimeOut,
		Removed: true,
	}
	for _, prev := range preImage.Snapshot().Stays() {
		if prev.Seq == res.Stay.Seq {
			rec.Type = prev.BikeType
			rec.TimeIn = prev.TimeIn
			rec.TimeOut = prev.TimeOut
			rec.Removed = false
			break
		}
	}
	if err := s.cfg.Log.Append(preImage.Date(), rec); err != nil {
		s.cfg.Logger.Warn("journal compensation failed",
			slog.String("tag", res.Stay.Tag.String()),
			slog.String("error", err.Error()))
	}
}

func (s *Session) publish(res tracker.Result) {
	if s.cfg.Broker == nil {
		return
	}
	at := res.Stay.TimeIn
	if res.Stay.TimeOut != tracker.NoTimeOut {
		at = res.Stay.TimeOut
	}
	s.cfg.Broker.PublishVisit(string(res.Action), res.Stay.Tag.String(), at.Format())
	regular, oversize := s.engine.Day().Occupancy()
	s.cfg.Broker.PublishOccupancy(regular, oversize)
}

// Rollover finalizes the loaded day if the calendar has moved on,
// persisting its leftovers, and begins a fresh day with a reloaded tag
// context. Safe to call on a timer; it is a no-op while the date
// matches.
func (s *Session) Rollover() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rolloverLocked()
}

func (s *Session) rolloverLocked() error {
	day := s.engine.Day()
	today := s.cfg.Clock.Now().Format(tracker.DateLayout)
	if !tracker.NeedsRollover(day, today) {
		return nil
	}

	// Finalize a clone so a failed durable write leaves the live day
	// intact; the next attempt re-derives the same leftovers.
	finished := day.Clone()
	leftovers := tracker.Finalize(finished)
	totals := audit.Summarize(finished.Snapshot(), s.cfg.BlockMinutes).Totals
	batch := store.Batch(s.cfg.Clock.Now())
	if err := s.cfg.DB.FinalizeDay(finished.Date(), totals, leftovers, batch); err != nil {
		return fmt.Errorf("dayservice: finalize %s: %w", finished.Date(), err)
	}
	for _, stay := range leftovers {
		rec := daylog.Record{
			At:      vtime.EndOfDay,
			Action:  tracker.ActionCheckOut,
			Seq:     stay.Seq,
			Tag:     stay.Tag,
			Type:    stay.BikeType,
			TimeIn:  stay.TimeIn,
			TimeOut: stay.TimeOut,
		}
		if err := s.cfg.Log.Append(finished.Date(), rec); err != nil {
			s.cfg.Logger.Warn("leftover not journaled",
				slog.String("tag", stay.Tag.String()),
				slog.String("error", err.Error()))
		}
	}

	ctx, err := s.cfg.LoadContext()
	if err != nil {
		return fmt.Errorf("dayservice: reload tag context: %w", err)
	}
	s.engine.SetDay(tracker.NewDayState(today, ctx, s.cfg.OpenTime, s.cfg.CloseTime))
	s.cfg.Logger.Info("day rolled over",
		slog.String("finalized", finished.Date()),
		slog.String("started", today),
		slog.Int("leftovers", len(leftovers)))
	return nil
}

// ReloadContext swaps in a freshly loaded tag context mid-day (for
// example after the configuration file changed). Existing stays keep
// their check-in classification.
func (s *Session) ReloadContext() error {
	ctx, err := s.cfg.LoadContext()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Day().SetContext(ctx)
	s.cfg.Logger.Info("tag context reloaded")
	return nil
}

// Snapshot returns a read-only copy of the day for reporting.
func (s *Session) Snapshot() tracker.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Day().Snapshot()
}

// Summary computes the on-demand day summary.
func (s *Session) Summary() audit.Summary {
	return audit.Summarize(s.Snapshot(), s.cfg.BlockMinutes)
}

// Inventory computes the colour/category tag inventory matrix.
func (s *Session) Inventory() []audit.InventoryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audit.Inventory(s.engine.Day().Snapshot(), s.engine.Day().Context())
}
