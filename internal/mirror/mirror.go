// Package mirror shadows the live attendance state to a local cache so a
// restarted client can resume mid-shift. The cache is disposable: every
// failure here is logged and swallowed, never surfaced to the transition
// that triggered it.
package mirror

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"punchcard/internal/metrics"
	"punchcard/internal/model"
)

// Cache keys, one JSON-serialized value each. A missing key means "unset".
const (
	KeyClockedIn      = "clockedIn"
	KeyAtLunch        = "atLunch"
	KeyCurrentShift   = "currentShift"
	KeyLunchStart     = "lunchStart"
	KeyHasBeenToLunch = "hasBeenToLunch"
)

// Cache is a best-effort key/value store scoped per user identity.
type Cache interface {
	Get(ctx context.Context, userID, key string) (value string, ok bool, err error)
	Set(ctx context.Context, userID, key, value string) error
}

// Sync writes attendance snapshots to the cache and restores them on
// startup.
type Sync struct {
	cache  Cache
	logger *zerolog.Logger
}

// NewSync constructs a mirror sync over the cache.
func NewSync(cache Cache, logger *zerolog.Logger) *Sync {
	return &Sync{cache: cache, logger: logger}
}

// Save shadows the record to the cache. Write failures are logged and
// counted but never returned.
func (s *Sync) Save(ctx context.Context, userID string, rec model.AttendanceRecord) {
	lunchStart := (*model.ShiftEntry)(nil)
	if rec.CurrentShift != nil && rec.CurrentShift.LunchIn != nil {
		lunchStart = rec.CurrentShift
	}

	pairs := map[string]any{
		KeyClockedIn:      rec.ClockedIn,
		KeyAtLunch:        rec.AtLunch,
		KeyHasBeenToLunch: rec.HasBeenToLunch,
		KeyCurrentShift:   rec.CurrentShift,
	}
	if lunchStart != nil {
		pairs[KeyLunchStart] = lunchStart.LunchIn
	} else {
		pairs[KeyLunchStart] = nil
	}

	for key, val := range pairs {
		data, err := json.Marshal(val)
		if err != nil {
			s.warn(userID, key, err)
			continue
		}
		if err := s.cache.Set(ctx, userID, key, string(data)); err != nil {
			s.warn(userID, key, err)
		}
	}
}

// Load restores a snapshot from the cache. ok is false when no snapshot
// exists or the cache is unreadable; the caller falls back to the remote
// record either way, with the remote value taking precedence.
func (s *Sync) Load(ctx context.Context, userID string) (rec model.AttendanceRecord, ok bool) {
	found := false

	if v, exists := s.get(ctx, userID, KeyClockedIn); exists {
		if err := json.Unmarshal([]byte(v), &rec.ClockedIn); err == nil {
			found = true
		}
	}
	if v, exists := s.get(ctx, userID, KeyAtLunch); exists {
		_ = json.Unmarshal([]byte(v), &rec.AtLunch)
	}
	if v, exists := s.get(ctx, userID, KeyHasBeenToLunch); exists {
		_ = json.Unmarshal([]byte(v), &rec.HasBeenToLunch)
	}
	if v, exists := s.get(ctx, userID, KeyCurrentShift); exists {
		var shift *model.ShiftEntry
		if err := json.Unmarshal([]byte(v), &shift); err == nil {
			rec.CurrentShift = shift
		}
	}

	return rec, found
}

func (s *Sync) get(ctx context.Context, userID, key string) (string, bool) {
	value, ok, err := s.cache.Get(ctx, userID, key)
	if err != nil {
		s.warn(userID, key, err)
		return "", false
	}
	return value, ok
}

func (s *Sync) warn(userID, key string, err error) {
	metrics.IncMirrorFailure()
	s.logger.Warn().Err(err).Str("user", userID).Str("key", key).Msg("mirror cache failure")
}
