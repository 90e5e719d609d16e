// Package store provides access to the remote attendance record store, a
// document store keyed by user identity.
package store

import (
	"context"
	"errors"
	"time"

	"punchcard/internal/model"
)

// ErrRecordNotFound is returned when no attendance document exists for the
// given identity.
var ErrRecordNotFound = errors.New("attendance record not found")

// RecordStore is the durable owner of attendance documents.
//
// ReplaceShifts swaps the whole shift sequence and lastResetDate in one
// atomic write, so a partial write can never desynchronize them and two
// writers cannot interleave element-level updates.
type RecordStore interface {
	Get(ctx context.Context, userID string) (*model.UserRecord, error)
	Set(ctx context.Context, userID string, rec *model.UserRecord) error
	UpdateFields(ctx context.Context, userID string, fields map[string]any) error
	ReplaceShifts(ctx context.Context, userID string, shifts []model.ShiftEntry, lastReset time.Time) error
	ListUsers(ctx context.Context) ([]string, error)
}
