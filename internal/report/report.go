// Package report aggregates completed shifts for the employer views.
package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"punchcard/internal/model"
	"punchcard/internal/store"
)

// ShiftRow is one completed shift prepared for display or export.
type ShiftRow struct {
	Shift        model.ShiftEntry `json:"shift"`
	LunchMinutes float64          `json:"lunchMinutes"`
	WorkedHours  float64          `json:"workedHours"`
}

// EmployeeSummary groups one employee's completed shifts.
type EmployeeSummary struct {
	UserID     string     `json:"userId"`
	Shifts     []ShiftRow `json:"shifts"`
	TotalHours float64    `json:"totalHours"`
}

// WeeklyReport is the employer-facing view over the current history window.
type WeeklyReport struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	Employees   []EmployeeSummary `json:"employees"`
}

// Service builds weekly reports from the record store.
type Service struct {
	records store.RecordStore
	logger  *zerolog.Logger
	now     func() time.Time
}

// New constructs a report service.
func New(records store.RecordStore, logger *zerolog.Logger) *Service {
	return &Service{records: records, logger: logger, now: time.Now}
}

// BuildWeekly aggregates completed shifts for every employee. Employer
// accounts are skipped.
func (s *Service) BuildWeekly(ctx context.Context) (*WeeklyReport, error) {
	ids, err := s.records.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	rep := &WeeklyReport{GeneratedAt: s.now()}
	for _, id := range ids {
		rec, err := s.records.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load record %s: %w", id, err)
		}
		if rec.Role != model.RoleEmployee {
			continue
		}

		summary := EmployeeSummary{UserID: id, Shifts: []ShiftRow{}}
		for _, shift := range rec.Shifts {
			if !shift.Completed() {
				continue
			}
			row := ShiftRow{
				Shift:        shift,
				LunchMinutes: math.Round(shift.LunchDuration().Minutes()),
				WorkedHours:  shift.WorkedHours(rep.GeneratedAt),
			}
			summary.Shifts = append(summary.Shifts, row)
			summary.TotalHours += row.WorkedHours
		}
		summary.TotalHours = math.Round(summary.TotalHours*100) / 100
		rep.Employees = append(rep.Employees, summary)
	}
	return rep, nil
}
