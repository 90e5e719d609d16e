package timeclock

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punchcard/internal/events"
	"punchcard/internal/history"
	"punchcard/internal/mirror"
	"punchcard/internal/model"
	"punchcard/internal/store"
)

func newTestService(t *testing.T, records store.RecordStore) (*Service, *events.Bus) {
	t.Helper()

	logger := zerolog.New(io.Discard)
	bus := events.NewBus()
	svc := New(records, history.New(records, &logger), nil, bus, &logger)

	clock := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, bus
}

func seedEmployee(t *testing.T, svc *Service) {
	t.Helper()
	require.NoError(t, svc.CreateUser(context.Background(), "alice", "secret", model.RoleEmployee))
}

func TestFullShiftCycle(t *testing.T) {
	records := store.NewMemoryStore()
	svc, _ := newTestService(t, records)
	seedEmployee(t, svc)
	ctx := context.Background()

	att, err := svc.ClockIn(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, att.ClockedIn)
	require.NotNil(t, att.CurrentShift)
	assert.Nil(t, att.CurrentShift.ClockOut)

	att, err = svc.LunchIn(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, att.AtLunch)
	assert.True(t, att.HasBeenToLunch)
	require.NotNil(t, att.CurrentShift.LunchIn)

	att, err = svc.LunchOut(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, att.AtLunch)
	require.NotNil(t, att.CurrentShift.LunchOut)

	att, err = svc.ClockOut(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, att.ClockedIn)
	assert.Nil(t, att.CurrentShift)

	completed, err := svc.CompletedShifts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.NotNil(t, completed[0].ClockOut)
	assert.NotNil(t, completed[0].LunchIn)
	assert.NotNil(t, completed[0].LunchOut)
}

func TestClockIn_Twice(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemoryStore())
	seedEmployee(t, svc)
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.ClockIn(ctx, "alice")
	assert.ErrorIs(t, err, ErrAlreadyClockedIn)
	assert.True(t, IsInvalidTransition(err))
	assert.False(t, IsPersistenceFailure(err))
}

func TestClockOut_WhileOut(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemoryStore())
	seedEmployee(t, svc)

	_, err := svc.ClockOut(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNotClockedIn)
}

func TestLunchIn_WhileOut(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemoryStore())
	seedEmployee(t, svc)

	_, err := svc.LunchIn(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNotClockedInOrAtLunch)
}

func TestLunchIn_OnlyOncePerShift(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemoryStore())
	seedEmployee(t, svc)
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.LunchIn(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.LunchOut(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.LunchIn(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotClockedInOrAtLunch)
}

func TestLunchOut_NotAtLunch(t *testing.T) {
	records := store.NewMemoryStore()
	svc, _ := newTestService(t, records)
	seedEmployee(t, svc)
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, "alice")
	require.NoError(t, err)

	before, err := records.Get(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.LunchOut(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotAtLunch)

	// The failed transition must not have touched the record.
	after, err := records.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestClockOut_DuringLunchLeavesLunchOpen(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemoryStore())
	seedEmployee(t, svc)
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.LunchIn(ctx, "alice")
	require.NoError(t, err)

	att, err := svc.ClockOut(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, att.AtLunch)

	completed, err := svc.CompletedShifts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.NotNil(t, completed[0].LunchIn)
	assert.Nil(t, completed[0].LunchOut)
}

func TestClockIn_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemoryStore())

	_, err := svc.ClockIn(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestTransitionEventsPublished(t *testing.T) {
	svc, bus := newTestService(t, store.NewMemoryStore())
	seedEmployee(t, svc)

	var mu sync.Mutex
	var seen []string
	record := func(e events.Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	}
	bus.Subscribe(events.TypeClockIn, record)
	bus.Subscribe(events.TypeClockOut, record)

	ctx := context.Background()
	_, err := svc.ClockIn(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.ClockOut(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, []string{events.TypeClockIn, events.TypeClockOut}, seen)
}

// brokenStore fails every write so tests can observe the no-commit-on-error
// contract.
type brokenStore struct {
	*store.MemoryStore
}

var errRemoteDown = errors.New("remote store down")

func (b brokenStore) ReplaceShifts(context.Context, string, []model.ShiftEntry, time.Time) error {
	return errRemoteDown
}

func TestClockIn_PersistenceFailureLeavesStateUntouched(t *testing.T) {
	records := store.NewMemoryStore()
	svc, _ := newTestService(t, brokenStore{records})
	require.NoError(t, records.Set(context.Background(), "alice", &model.UserRecord{Role: model.RoleEmployee}))
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, "alice")
	require.Error(t, err)
	assert.True(t, IsPersistenceFailure(err))
	assert.False(t, IsInvalidTransition(err))

	rec, err := records.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, rec.ClockedIn)
	assert.Empty(t, rec.Shifts)
}

// downStore fails reads, simulating an unreachable remote.
type downStore struct {
	*store.MemoryStore
}

func (d downStore) Get(context.Context, string) (*model.UserRecord, error) {
	return nil, errRemoteDown
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *mapCache) Get(_ context.Context, userID, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[userID+"/"+key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, userID, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[userID+"/"+key] = value
	return nil
}

func TestCurrentStatus_MirrorFallback(t *testing.T) {
	logger := zerolog.New(io.Discard)
	cache := &mapCache{data: make(map[string]string)}
	mirrorSync := mirror.NewSync(cache, &logger)
	ctx := context.Background()

	// Seed the mirror from a healthy service.
	records := store.NewMemoryStore()
	bus := events.NewBus()
	healthy := New(records, history.New(records, &logger), mirrorSync, bus, &logger)
	require.NoError(t, healthy.CreateUser(ctx, "alice", "secret", model.RoleEmployee))
	_, err := healthy.ClockIn(ctx, "alice")
	require.NoError(t, err)

	// A restarted client with the remote down resumes from the snapshot.
	offline := New(downStore{records}, history.New(downStore{records}, &logger), mirrorSync, bus, &logger)
	att, err := offline.CurrentStatus(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, att.ClockedIn)
	require.NotNil(t, att.CurrentShift)
}

func TestCurrentStatus_RemoteTakesPrecedence(t *testing.T) {
	logger := zerolog.New(io.Discard)
	cache := &mapCache{data: make(map[string]string)}
	mirrorSync := mirror.NewSync(cache, &logger)
	ctx := context.Background()

	records := store.NewMemoryStore()
	bus := events.NewBus()
	svc := New(records, history.New(records, &logger), mirrorSync, bus, &logger)
	require.NoError(t, svc.CreateUser(ctx, "alice", "secret", model.RoleEmployee))

	// Stale snapshot claims alice is clocked in; the remote says otherwise.
	mirrorSync.Save(ctx, "alice", model.AttendanceRecord{
		ClockedIn:    true,
		CurrentShift: &model.ShiftEntry{ClockIn: time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)},
	})

	att, err := svc.CurrentStatus(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, att.ClockedIn)

	// Reconciliation refreshed the mirror with the remote value.
	restored, ok := mirrorSync.Load(ctx, "alice")
	require.True(t, ok)
	assert.False(t, restored.ClockedIn)
}
