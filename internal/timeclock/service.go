// Package timeclock implements the shift lifecycle state machine: OUT -> IN
// -> LUNCH -> IN -> OUT, validated against the remote attendance record.
package timeclock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"punchcard/internal/events"
	"punchcard/internal/history"
	"punchcard/internal/metrics"
	"punchcard/internal/mirror"
	"punchcard/internal/model"
	"punchcard/internal/store"
)

// Service executes shift transitions. Every transition validates against a
// fresh read of the remote record, writes remotely first, and only then
// commits the result locally (mirror snapshot, event, metrics). A failed
// remote write leaves state exactly as it was.
type Service struct {
	records store.RecordStore
	history *history.Store
	mirror  *mirror.Sync
	bus     *events.Bus
	logger  *zerolog.Logger
	now     func() time.Time

	// One in-flight transition per user. A human drives at most one at a
	// time through the UI; this holds the same guarantee for the API.
	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

// New constructs the service. mirrorSync may be nil when the client runs
// without a local cache.
func New(records store.RecordStore, hist *history.Store, mirrorSync *mirror.Sync, bus *events.Bus, logger *zerolog.Logger) *Service {
	return &Service{
		records: records,
		history: hist,
		mirror:  mirrorSync,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// CreateUser seeds the remote document for a new identity.
func (s *Service) CreateUser(ctx context.Context, userID, password string, role model.Role) error {
	rec := &model.UserRecord{
		Password: password,
		Role:     role,
		Shifts:   []model.ShiftEntry{},
	}
	if err := s.records.Set(ctx, userID, rec); err != nil {
		return &PersistenceError{Op: "create user", Err: err}
	}
	return nil
}

// GetUser returns the full remote document.
func (s *Service) GetUser(ctx context.Context, userID string) (*model.UserRecord, error) {
	rec, err := s.records.Get(ctx, userID)
	if err != nil {
		return nil, persistErr("load record", err)
	}
	return rec, nil
}

// ClockIn opens a new shift. Legal only while clocked out.
func (s *Service) ClockIn(ctx context.Context, userID string) (model.AttendanceRecord, error) {
	unlock := s.lock(userID)
	defer unlock()

	rec, err := s.loadRecord(ctx, userID, "clock_in")
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if rec.ClockedIn {
		return s.reject("clock_in", ErrAlreadyClockedIn)
	}

	entry := model.ShiftEntry{ClockIn: s.now()}
	reset, err := s.history.Append(ctx, userID, entry)
	if err != nil {
		return s.fail("clock_in", "append shift", err)
	}

	att := model.AttendanceRecord{ClockedIn: true, CurrentShift: &entry}
	if err := s.writeStatus(ctx, userID, att); err != nil {
		return s.fail("clock_in", "update record", err)
	}

	s.commit(ctx, userID, events.TypeClockIn, att)
	if reset {
		s.bus.Publish(events.Event{Type: events.TypeWeeklyReset, UserID: userID, At: entry.ClockIn})
	}
	return att, nil
}

// ClockOut finalizes the open shift. Legal while clocked in, at lunch or
// not. Clocking out during lunch leaves the lunch interval open; it is not
// silently closed.
func (s *Service) ClockOut(ctx context.Context, userID string) (model.AttendanceRecord, error) {
	unlock := s.lock(userID)
	defer unlock()

	rec, err := s.loadRecord(ctx, userID, "clock_out")
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if !rec.ClockedIn {
		return s.reject("clock_out", ErrNotClockedIn)
	}

	clockOut := s.now()
	if _, err := s.history.UpdateLatest(ctx, userID, history.Patch{ClockOut: &clockOut}); err != nil {
		return s.fail("clock_out", "finalize shift", err)
	}

	att := model.AttendanceRecord{}
	if err := s.writeStatus(ctx, userID, att); err != nil {
		return s.fail("clock_out", "update record", err)
	}

	s.commit(ctx, userID, events.TypeClockOut, att)
	return att, nil
}

// LunchIn starts the shift's single lunch interval. Legal only while
// clocked in, not at lunch, and not already been to lunch this shift.
func (s *Service) LunchIn(ctx context.Context, userID string) (model.AttendanceRecord, error) {
	unlock := s.lock(userID)
	defer unlock()

	rec, err := s.loadRecord(ctx, userID, "lunch_in")
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if !rec.ClockedIn || rec.AtLunch || rec.HasBeenToLunch {
		return s.reject("lunch_in", ErrNotClockedInOrAtLunch)
	}

	lunchIn := s.now()
	updated, err := s.history.UpdateLatest(ctx, userID, history.Patch{LunchIn: &lunchIn})
	if err != nil {
		return s.fail("lunch_in", "record lunch start", err)
	}

	att := model.AttendanceRecord{
		ClockedIn:      true,
		AtLunch:        true,
		HasBeenToLunch: true,
		CurrentShift:   updated,
	}
	if err := s.writeStatus(ctx, userID, att); err != nil {
		return s.fail("lunch_in", "update record", err)
	}

	s.commit(ctx, userID, events.TypeLunchIn, att)
	return att, nil
}

// LunchOut ends the lunch interval. Legal only while at lunch.
func (s *Service) LunchOut(ctx context.Context, userID string) (model.AttendanceRecord, error) {
	unlock := s.lock(userID)
	defer unlock()

	rec, err := s.loadRecord(ctx, userID, "lunch_out")
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if !rec.AtLunch {
		return s.reject("lunch_out", ErrNotAtLunch)
	}

	lunchOut := s.now()
	updated, err := s.history.UpdateLatest(ctx, userID, history.Patch{LunchOut: &lunchOut})
	if err != nil {
		return s.fail("lunch_out", "record lunch end", err)
	}

	att := model.AttendanceRecord{
		ClockedIn:      true,
		HasBeenToLunch: true,
		CurrentShift:   updated,
	}
	if err := s.writeStatus(ctx, userID, att); err != nil {
		return s.fail("lunch_out", "update record", err)
	}

	s.commit(ctx, userID, events.TypeLunchOut, att)
	return att, nil
}

// CurrentStatus returns the live attendance record. The remote value takes
// precedence; the mirror snapshot only answers when the remote store is
// unreachable, so a restarted client can still render mid-shift state.
func (s *Service) CurrentStatus(ctx context.Context, userID string) (model.AttendanceRecord, error) {
	rec, err := s.records.Get(ctx, userID)
	if err == nil {
		att := rec.Attendance()
		if s.mirror != nil {
			s.mirror.Save(ctx, userID, att)
		}
		return att, nil
	}
	if errors.Is(err, store.ErrRecordNotFound) {
		return model.AttendanceRecord{}, err
	}

	if s.mirror != nil {
		if att, ok := s.mirror.Load(ctx, userID); ok {
			s.logger.Warn().Err(err).Str("user", userID).Msg("remote store unreachable, serving mirror snapshot")
			return att, nil
		}
	}
	return model.AttendanceRecord{}, &PersistenceError{Op: "load record", Err: err}
}

// CompletedShifts returns the user's completed shifts in stored order.
func (s *Service) CompletedShifts(ctx context.Context, userID string) ([]model.ShiftEntry, error) {
	shifts, err := s.history.ListCompleted(ctx, userID)
	if err != nil {
		return nil, persistErr("list shifts", err)
	}
	return shifts, nil
}

func (s *Service) loadRecord(ctx context.Context, userID, kind string) (*model.UserRecord, error) {
	rec, err := s.records.Get(ctx, userID)
	if err != nil {
		metrics.IncTransitionFailure(kind)
		return nil, persistErr("load record", err)
	}
	return rec, nil
}

// writeStatus pushes the live fields to the remote document.
func (s *Service) writeStatus(ctx context.Context, userID string, att model.AttendanceRecord) error {
	return s.records.UpdateFields(ctx, userID, map[string]any{
		"clockedIn":      att.ClockedIn,
		"atLunch":        att.AtLunch,
		"hasBeenToLunch": att.HasBeenToLunch,
		"currentShift":   att.CurrentShift,
	})
}

// commit runs the post-write side effects: mirror snapshot, event, metric.
func (s *Service) commit(ctx context.Context, userID, eventType string, att model.AttendanceRecord) {
	if s.mirror != nil {
		s.mirror.Save(ctx, userID, att)
	}
	s.bus.Publish(events.Event{Type: eventType, UserID: userID, At: s.now(), Record: att})
	metrics.IncTransition(eventType)
}

func (s *Service) reject(kind string, err error) (model.AttendanceRecord, error) {
	metrics.IncTransitionFailure(kind)
	return model.AttendanceRecord{}, err
}

func (s *Service) fail(kind, op string, err error) (model.AttendanceRecord, error) {
	metrics.IncTransitionFailure(kind)
	s.logger.Error().Err(err).Str("op", op).Msg("transition persistence failure")
	return model.AttendanceRecord{}, persistErr(op, err)
}

func (s *Service) lock(userID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[userID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// persistErr keeps taxonomy errors intact and wraps everything else as a
// persistence failure.
func persistErr(op string, err error) error {
	if errors.Is(err, store.ErrRecordNotFound) || errors.Is(err, history.ErrShiftNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
