// Package history owns the weekly-bounded shift sequence for each user.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"punchcard/internal/metrics"
	"punchcard/internal/model"
	"punchcard/internal/store"
)

// ErrShiftNotFound is returned when an update targets an empty sequence.
var ErrShiftNotFound = errors.New("shift not found")

// Patch is a partial update for a shift entry. Nil fields are left as they
// are; set fields overwrite the stored value.
type Patch struct {
	ClockOut *time.Time
	LunchIn  *time.Time
	LunchOut *time.Time
}

// Store maintains at most model.MaxWeeklyShifts entries per user and resets
// the sequence lazily at each week boundary. The reset is a side effect of
// the next Append; there is no background timer.
type Store struct {
	records store.RecordStore
	logger  *zerolog.Logger
	now     func() time.Time
}

// New constructs a history store on top of the record store.
func New(records store.RecordStore, logger *zerolog.Logger) *Store {
	return &Store{records: records, logger: logger, now: time.Now}
}

// Append adds entry to the user's sequence. If the stored lastResetDate
// predates the current week's Monday 00:00, the sequence is cleared first
// and lastResetDate advances to that boundary. A full sequence evicts its
// oldest entry. The sequence and lastResetDate are persisted in one write.
// Returns whether a weekly reset happened.
func (s *Store) Append(ctx context.Context, userID string, entry model.ShiftEntry) (bool, error) {
	rec, err := s.records.Get(ctx, userID)
	if err != nil {
		return false, err
	}

	now := s.now()
	weekStart := model.StartOfWeek(now)

	shifts := rec.Shifts
	lastReset := rec.LastResetDate
	if lastReset.IsZero() {
		lastReset = weekStart
	}

	reset := false
	if !now.Before(weekStart) && lastReset.Before(weekStart) {
		shifts = nil
		lastReset = weekStart
		reset = true
		metrics.IncWeeklyReset()
		s.logger.Info().Str("user", userID).Time("week_start", weekStart).Msg("weekly history reset")
	}

	if len(shifts) >= model.MaxWeeklyShifts {
		shifts = shifts[1:]
	}
	shifts = append(shifts, entry)

	if err := s.records.ReplaceShifts(ctx, userID, shifts, lastReset); err != nil {
		return false, fmt.Errorf("append shift: %w", err)
	}
	return reset, nil
}

// UpdateLatest merges patch into the last entry of the sequence. Only one
// shift may be unfinished at a time, and it is always the tail, so the tail
// is the only entry an update can target.
func (s *Store) UpdateLatest(ctx context.Context, userID string, patch Patch) (*model.ShiftEntry, error) {
	rec, err := s.records.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(rec.Shifts) == 0 {
		return nil, ErrShiftNotFound
	}

	shifts := append([]model.ShiftEntry(nil), rec.Shifts...)
	last := &shifts[len(shifts)-1]
	if patch.ClockOut != nil {
		last.ClockOut = patch.ClockOut
	}
	if patch.LunchIn != nil {
		last.LunchIn = patch.LunchIn
	}
	if patch.LunchOut != nil {
		last.LunchOut = patch.LunchOut
	}

	if err := s.records.ReplaceShifts(ctx, userID, shifts, rec.LastResetDate); err != nil {
		return nil, fmt.Errorf("update shift: %w", err)
	}
	updated := *last
	return &updated, nil
}

// ListCompleted returns all entries whose clock-out is set, in stored order.
func (s *Store) ListCompleted(ctx context.Context, userID string) ([]model.ShiftEntry, error) {
	rec, err := s.records.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	completed := make([]model.ShiftEntry, 0, len(rec.Shifts))
	for _, shift := range rec.Shifts {
		if shift.Completed() {
			completed = append(completed, shift)
		}
	}
	return completed, nil
}
