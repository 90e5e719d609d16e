// Package model defines the attendance data model shared by all components.
package model

import (
	"math"
	"time"
)

// Role gates the employer-only views in the UI layer. It carries no
// authorization weight beyond that.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleEmployer Role = "employer"
)

// MaxWeeklyShifts bounds the per-user shift history. When a new entry would
// exceed the bound, the oldest entry is evicted first.
const MaxWeeklyShifts = 7

// ShiftEntry is one clock-in-to-clock-out work session. ClockOut stays nil
// while the shift is open. LunchOut is never set without a prior LunchIn.
type ShiftEntry struct {
	ClockIn  time.Time  `json:"clockIn"`
	ClockOut *time.Time `json:"clockOut"`
	LunchIn  *time.Time `json:"lunchIn"`
	LunchOut *time.Time `json:"lunchOut"`
}

// Completed reports whether the shift has been clocked out.
func (s ShiftEntry) Completed() bool {
	return s.ClockOut != nil
}

// LunchDuration returns the lunch interval length, or zero if the shift has
// no closed lunch interval.
func (s ShiftEntry) LunchDuration() time.Duration {
	if s.LunchIn == nil || s.LunchOut == nil {
		return 0
	}
	return s.LunchOut.Sub(*s.LunchIn)
}

// WorkedHours returns elapsed work time in hours to 2-decimal precision:
// (clockOut - clockIn) minus the lunch interval when both lunch timestamps
// are present. For an open shift the given now substitutes for the missing
// clock-out; that value is for display only and must never be persisted.
func (s ShiftEntry) WorkedHours(now time.Time) float64 {
	end := now
	if s.ClockOut != nil {
		end = *s.ClockOut
	}
	worked := end.Sub(s.ClockIn) - s.LunchDuration()
	return math.Round(worked.Hours()*100) / 100
}

// AttendanceRecord is the live per-user status: flags plus the open shift.
// CurrentShift is non-nil exactly when ClockedIn is true. AtLunch implies
// ClockedIn. HasBeenToLunch blocks a second lunch within the same shift.
type AttendanceRecord struct {
	ClockedIn      bool        `json:"clockedIn"`
	AtLunch        bool        `json:"atLunch"`
	HasBeenToLunch bool        `json:"hasBeenToLunch"`
	CurrentShift   *ShiftEntry `json:"currentShift"`
}

// UserRecord is the remote document for one user identity. The remote store
// is the durable owner; the local mirror only shadows the live fields.
type UserRecord struct {
	// Password is carried over from account creation; it is not used for
	// authentication here.
	Password       string       `json:"password"`
	Role           Role         `json:"role"`
	ClockedIn      bool         `json:"clockedIn"`
	AtLunch        bool         `json:"atLunch"`
	HasBeenToLunch bool         `json:"hasBeenToLunch"`
	CurrentShift   *ShiftEntry  `json:"currentShift"`
	Shifts         []ShiftEntry `json:"shifts"`
	LastResetDate  time.Time    `json:"lastResetDate"`
}

// Attendance extracts the live status fields from the document.
func (u *UserRecord) Attendance() AttendanceRecord {
	return AttendanceRecord{
		ClockedIn:      u.ClockedIn,
		AtLunch:        u.AtLunch,
		HasBeenToLunch: u.HasBeenToLunch,
		CurrentShift:   u.CurrentShift,
	}
}

// StartOfWeek returns the most recent Monday 00:00 in now's location.
func StartOfWeek(now time.Time) time.Time {
	// 0 = Sunday, so Monday is (weekday+6) mod 7 days back.
	back := (int(now.Weekday()) + 6) % 7
	day := now.AddDate(0, 0, -back)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
}
