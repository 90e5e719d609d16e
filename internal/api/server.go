// Package api exposes the shift lifecycle operations to the UI layer over
// HTTP. It consumes only the core transition and read operations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"punchcard/internal/history"
	"punchcard/internal/metrics"
	"punchcard/internal/model"
	"punchcard/internal/report"
	"punchcard/internal/store"
	"punchcard/internal/timeclock"
)

// Server routes UI requests to the timeclock and report services.
type Server struct {
	svc     *timeclock.Service
	reports *report.Service
	logger  *zerolog.Logger

	rps   rate.Limit
	burst int

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewServer constructs the API server. rps/burst bound transition requests
// per user.
func NewServer(svc *timeclock.Service, reports *report.Service, logger *zerolog.Logger, rps float64, burst int) *Server {
	return &Server{
		svc:      svc,
		reports:  reports,
		logger:   logger,
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/clock-in", s.transitionHandler("clock_in", s.svc.ClockIn))
	mux.HandleFunc("/api/clock-out", s.transitionHandler("clock_out", s.svc.ClockOut))
	mux.HandleFunc("/api/lunch-in", s.transitionHandler("lunch_in", s.svc.LunchIn))
	mux.HandleFunc("/api/lunch-out", s.transitionHandler("lunch_out", s.svc.LunchOut))
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/shifts", s.handleShifts)
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/report/export", s.handleReportExport)
	return mux
}

// transitionRequest is the body for all four transition endpoints.
type transitionRequest struct {
	UserID string `json:"user_id"`
}

// statusResponse is the attendance record plus a display-only elapsed-hours
// figure for the open shift. The figure is never persisted.
type statusResponse struct {
	model.AttendanceRecord
	WorkedHours *float64 `json:"workedHours,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	// Retryable distinguishes persistence failures from validation
	// failures so the UI offers retry only for the former.
	Retryable bool `json:"retryable"`
}

type transitionFunc func(ctx context.Context, userID string) (model.AttendanceRecord, error)

func (s *Server) transitionHandler(name string, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(name)

		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST", false)
			return
		}

		var req transitionRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", false)
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required", false)
			return
		}

		if !s.limiter(req.UserID).Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests", true)
			return
		}

		att, err := fn(r.Context(), req.UserID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{AttendanceRecord: att})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("status")

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	att, err := s.svc.CurrentStatus(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := statusResponse{AttendanceRecord: att}
	if att.ClockedIn && att.CurrentShift != nil {
		hours := att.CurrentShift.WorkedHours(time.Now())
		resp.WorkedHours = &hours
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleShifts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("shifts")

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	shifts, err := s.svc.CompletedShifts(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("report")

	if !s.requireEmployer(w, r) {
		return
	}

	rep, err := s.reports.BuildWeekly(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("report_export")

	if !s.requireEmployer(w, r) {
		return
	}

	rep, err := s.reports.BuildWeekly(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	filename := fmt.Sprintf("shifts_%s.xlsx", rep.GeneratedAt.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if err := report.WriteXLSX(rep, w); err != nil {
		s.logger.Error().Err(err).Msg("report export failed")
	}
}

// requireEmployer gates the report endpoints on the role flag. This is UI
// gating, not authorization.
func (s *Server) requireEmployer(w http.ResponseWriter, r *http.Request) bool {
	userID, ok := requireUserID(w, r)
	if !ok {
		return false
	}

	rec, err := s.svc.GetUser(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return false
	}
	if rec.Role != model.RoleEmployer {
		writeError(w, http.StatusForbidden, "employer role required", false)
		return false
	}
	return true
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "attendance record not found", false)
	case errors.Is(err, history.ErrShiftNotFound):
		writeError(w, http.StatusNotFound, "no shift to update", false)
	case timeclock.IsInvalidTransition(err):
		writeError(w, http.StatusConflict, transitionMessage(err), false)
	case timeclock.IsPersistenceFailure(err):
		writeError(w, http.StatusBadGateway, "record store unavailable, try again", true)
	default:
		s.logger.Error().Err(err).Msg("unhandled API error")
		writeError(w, http.StatusInternalServerError, "internal error", false)
	}
}

// transitionMessage maps validation errors to short human-readable text.
func transitionMessage(err error) string {
	switch {
	case errors.Is(err, timeclock.ErrAlreadyClockedIn):
		return "You are already clocked in."
	case errors.Is(err, timeclock.ErrNotClockedIn):
		return "You are not clocked in."
	case errors.Is(err, timeclock.ErrNotClockedInOrAtLunch):
		return "You are not clocked in, or you already took lunch."
	case errors.Is(err, timeclock.ErrNotAtLunch):
		return "You are not at lunch."
	default:
		return "Invalid transition."
	}
}

func (s *Server) limiter(userID string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	lim, ok := s.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(s.rps, s.burst)
		s.limiters[userID] = lim
	}
	return lim
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", false)
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, retryable bool) {
	writeJSON(w, status, errorResponse{Error: msg, Retryable: retryable})
}
