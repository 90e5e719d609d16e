package store

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punchcard/internal/model"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.New(io.Discard)
	return NewRedisStore(client, &logger)
}

func TestRedisStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRedisStore_SetGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	clockIn := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	rec := &model.UserRecord{
		Role:          model.RoleEmployee,
		ClockedIn:     true,
		CurrentShift:  &model.ShiftEntry{ClockIn: clockIn},
		LastResetDate: model.StartOfWeek(clockIn),
	}

	require.NoError(t, s.Set(ctx, "alice", rec))

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestRedisStore_UpdateFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "alice", &model.UserRecord{Role: model.RoleEmployee}))

	shift := &model.ShiftEntry{ClockIn: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)}
	err := s.UpdateFields(ctx, "alice", map[string]any{
		"clockedIn":    true,
		"currentShift": shift,
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.ClockedIn)
	assert.Equal(t, shift, got.CurrentShift)
	// Untouched fields survive the merge.
	assert.Equal(t, model.RoleEmployee, got.Role)
}

func TestRedisStore_UpdateFieldsMissing(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateFields(context.Background(), "ghost", map[string]any{"clockedIn": true})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRedisStore_ReplaceShifts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "alice", &model.UserRecord{Role: model.RoleEmployee}))

	clockIn := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	clockOut := clockIn.Add(8 * time.Hour)
	shifts := []model.ShiftEntry{{ClockIn: clockIn, ClockOut: &clockOut}}
	weekStart := model.StartOfWeek(clockIn)

	require.NoError(t, s.ReplaceShifts(ctx, "alice", shifts, weekStart))

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, shifts, got.Shifts)
	assert.Equal(t, weekStart, got.LastResetDate)
}

func TestRedisStore_ListUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "bob", &model.UserRecord{Role: model.RoleEmployee}))
	require.NoError(t, s.Set(ctx, "alice", &model.UserRecord{Role: model.RoleEmployer}))

	ids, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)
}
