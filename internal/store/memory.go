package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"punchcard/internal/model"
)

// MemoryStore is an in-process RecordStore used in tests and offline
// development. It mirrors the remote store's semantics, including the
// atomic sequence swap.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.UserRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*model.UserRecord)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) Set(_ context.Context, userID string, rec *model.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = copyRecord(rec)
	return nil
}

func (s *MemoryStore) UpdateFields(_ context.Context, userID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return ErrRecordNotFound
	}
	return ApplyFields(rec, fields)
}

func (s *MemoryStore) ReplaceShifts(_ context.Context, userID string, shifts []model.ShiftEntry, lastReset time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Shifts = append([]model.ShiftEntry(nil), shifts...)
	rec.LastResetDate = lastReset
	return nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func copyRecord(rec *model.UserRecord) *model.UserRecord {
	cp := *rec
	if rec.CurrentShift != nil {
		shift := *rec.CurrentShift
		cp.CurrentShift = &shift
	}
	cp.Shifts = append([]model.ShiftEntry(nil), rec.Shifts...)
	return &cp
}
