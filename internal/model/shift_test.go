package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(hour, min int) time.Time {
	return time.Date(2026, 8, 24, hour, min, 0, 0, time.UTC)
}

func tsPtr(hour, min int) *time.Time {
	t := ts(hour, min)
	return &t
}

func TestWorkedHours(t *testing.T) {
	tests := []struct {
		name  string
		shift ShiftEntry
		want  float64
	}{
		{
			name: "full day with lunch",
			shift: ShiftEntry{
				ClockIn:  ts(9, 0),
				ClockOut: tsPtr(17, 0),
				LunchIn:  tsPtr(12, 0),
				LunchOut: tsPtr(12, 30),
			},
			want: 7.50,
		},
		{
			name: "no lunch",
			shift: ShiftEntry{
				ClockIn:  ts(9, 0),
				ClockOut: tsPtr(13, 15),
			},
			want: 4.25,
		},
		{
			name: "open lunch interval ignored",
			shift: ShiftEntry{
				ClockIn:  ts(9, 0),
				ClockOut: tsPtr(17, 0),
				LunchIn:  tsPtr(12, 0),
			},
			want: 8.00,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.shift.WorkedHours(ts(23, 0)))
		})
	}
}

func TestWorkedHours_OpenShiftUsesNow(t *testing.T) {
	shift := ShiftEntry{ClockIn: ts(9, 0)}
	assert.Equal(t, 2.50, shift.WorkedHours(ts(11, 30)))
	// The substituted end time must not leak into the entry.
	assert.Nil(t, shift.ClockOut)
}

func TestLunchDuration(t *testing.T) {
	shift := ShiftEntry{ClockIn: ts(9, 0), LunchIn: tsPtr(12, 0), LunchOut: tsPtr(12, 45)}
	assert.Equal(t, 45*time.Minute, shift.LunchDuration())

	open := ShiftEntry{ClockIn: ts(9, 0), LunchIn: tsPtr(12, 0)}
	assert.Equal(t, time.Duration(0), open.LunchDuration())
}

func TestStartOfWeek(t *testing.T) {
	// 2026-08-24 is a Monday.
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
	}{
		{"monday morning", time.Date(2026, 8, 24, 0, 0, 1, 0, time.UTC)},
		{"wednesday", time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC)},
		{"saturday", time.Date(2026, 8, 29, 23, 59, 59, 0, time.UTC)},
		{"sunday wraps to previous monday", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, monday, StartOfWeek(tt.now))
		})
	}
}

func TestStartOfWeek_OnBoundary(t *testing.T) {
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, StartOfWeek(monday))
}

func TestAttendanceFromUserRecord(t *testing.T) {
	shift := ShiftEntry{ClockIn: ts(9, 0)}
	rec := UserRecord{
		Role:         RoleEmployee,
		ClockedIn:    true,
		AtLunch:      false,
		CurrentShift: &shift,
	}

	att := rec.Attendance()
	assert.True(t, att.ClockedIn)
	assert.False(t, att.AtLunch)
	assert.Equal(t, &shift, att.CurrentShift)
}
