package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"slotwise/internal/guard"
	"slotwise/internal/metrics"
	"slotwise/internal/model"
	"slotwise/internal/otp"
	"slotwise/internal/reservation"
)

// handleAvailability returns the resolved open windows for a date.
// GET /api/v1/availability?date=YYYY-MM-DD
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	windows, source, err := s.resolver.Resolve(r.Context(), date)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if windows == nil {
		windows = []model.TimeRange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":    date,
		"windows": windows,
		"source":  source,
	})
}

// handleSlots lists free start times for a date, optionally for a service.
// GET /api/v1/slots?date=YYYY-MM-DD&service_id=...
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var svc *model.Service
	if id := r.URL.Query().Get("service_id"); id != "" {
		svc, err = s.bookings.ServiceByID(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		if svc == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown service %q", id))
			return
		}
		if !svc.Active {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("service %q is not bookable", svc.Name))
			return
		}
	}

	starts, err := s.allocator.ListAvailableStarts(r.Context(), date, svc)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if starts == nil {
		starts = []model.TimeOfDay{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "starts": starts})
}

// ValidateSlotRequest is the body for POST /api/v1/slots/validate.
type ValidateSlotRequest struct {
	Date      string `json:"date"`
	Start     string `json:"start"`
	ServiceID string `json:"service_id"`
}

// handleValidateSlot point-checks one start for a service.
func (s *HTTPServer) handleValidateSlot(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots_validate")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ValidateSlotRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := model.ParseTimeOfDay(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc, err := s.bookings.ServiceByID(r.Context(), req.ServiceID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if svc == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown service %q", req.ServiceID))
		return
	}

	rejection, err := s.allocator.ValidateStart(r.Context(), date, start, svc.DurationMinutes, "")
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if rejection != nil {
		writeJSON(w, rejectionStatus(string(rejection.Reason)), map[string]any{
			"valid":     false,
			"rejection": rejection,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// handleCreateReservation runs the full reservation workflow.
// POST /api/v1/reservations
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req reservation.Request
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.workflow.Create(r.Context(), req)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !result.Created {
		writeJSON(w, rejectionStatus(string(result.Reason)), result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleBooking serves GET and DELETE for /api/v1/bookings/{id}.
// Deleting a booking releases its slot claims.
func (s *HTTPServer) handleBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings")
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		b, err := s.bookings.GetBooking(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	case http.MethodDelete:
		if err := s.bookings.DeleteBooking(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.logger.Info().Str("booking_id", id).Msg("booking canceled")
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleExport streams an Excel report of bookings in a date range.
// GET /api/v1/bookings/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings_export")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from, err := model.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := model.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if string(to) < string(from) {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=bookings_%s_%s.xlsx", from, to))
	if err := s.reporter.WriteBookings(r.Context(), from, to, w); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

// OTPRequest is the body for POST /api/v1/otp/request.
type OTPRequest struct {
	Phone string `json:"phone"`
}

// handleOTPRequest issues a one-time code to a phone number.
func (s *HTTPServer) handleOTPRequest(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("otp_request")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req OTPRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	if err := s.otp.Issue(r.Context(), strings.TrimSpace(req.Phone)); err != nil {
		if errors.Is(err, otp.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "code already requested; try again later")
			return
		}
		s.logger.Error().Err(err).Msg("otp issue failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": true})
}

// handleServices lists bookable services.
// GET /api/v1/services
func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("services")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	services, err := s.bookings.ListServices(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if services == nil {
		services = []model.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// handleGuardDryRun evaluates a configuration change without applying it.
// POST /api/v1/config/guard
func (s *HTTPServer) handleGuardDryRun(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("config_guard")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var change guard.Change
	if err := decodeStrict(r, &change); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	decision, err := s.guard.Evaluate(r.Context(), change)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// guardThenApply evaluates a change and, if allowed, runs apply.
// Conflicts come back with 409 and the full conflicting booking list.
func (s *HTTPServer) guardThenApply(w http.ResponseWriter, r *http.Request, change guard.Change, apply func() error) {
	decision, err := s.guard.Evaluate(r.Context(), change)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !decision.Allowed {
		writeJSON(w, http.StatusConflict, decision)
		return
	}
	if err := apply(); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// TemplateChangeRequest is the body for PUT /api/v1/config/template.
type TemplateChangeRequest struct {
	Weekday int               `json:"weekday"`
	Windows []model.TimeRange `json:"windows"`
}

// handleTemplateChange replaces one weekday's template windows, guarded.
func (s *HTTPServer) handleTemplateChange(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("config_template")
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use PUT")
		return
	}

	var req TemplateChangeRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		writeError(w, http.StatusBadRequest, "weekday must be 0 (Sunday) through 6 (Saturday)")
		return
	}
	if msg := invalidWindows(req.Windows); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	day := time.Weekday(req.Weekday)
	change := guard.Change{Kind: guard.KindTemplateDay, Weekday: day, Windows: req.Windows}
	s.guardThenApply(w, r, change, func() error {
		return s.config.ApplyTemplateDay(r.Context(), day, req.Windows)
	})
}

// OverrideChangeRequest is the body for PUT/DELETE /api/v1/config/overrides.
type OverrideChangeRequest struct {
	Date    string            `json:"date"`
	Windows []model.TimeRange `json:"windows"`
}

// handleOverrideChange sets (PUT) or deletes (DELETE) a date override,
// guarded either way.
func (s *HTTPServer) handleOverrideChange(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("config_overrides")
	if r.Method != http.MethodPut && r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use PUT or DELETE")
		return
	}

	var req OverrideChangeRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.Method == http.MethodDelete {
		change := guard.Change{Kind: guard.KindOverrideDelete, Date: date}
		s.guardThenApply(w, r, change, func() error {
			return s.config.DeleteOverride(r.Context(), date)
		})
		return
	}

	if msg := invalidWindows(req.Windows); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	change := guard.Change{Kind: guard.KindOverrideSet, Date: date, Windows: req.Windows}
	s.guardThenApply(w, r, change, func() error {
		return s.config.PutOverride(r.Context(), &model.DateOverride{Date: date, Windows: req.Windows})
	})
}

// ClosureCreateRequest is the body for POST /api/v1/config/closures.
type ClosureCreateRequest struct {
	Name      string   `json:"name"`
	Dates     []string `json:"dates"`
	Recurring bool     `json:"recurring"`
	Weekday   int      `json:"weekday"`
}

// handleClosureCreate creates a closure after the positive zero-bookings
// check on every affected date.
func (s *HTTPServer) handleClosureCreate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("config_closures")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ClosureCreateRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Dates) == 0 && !req.Recurring {
		writeError(w, http.StatusBadRequest, "dates or a recurring weekday is required")
		return
	}

	dates := make([]model.Date, 0, len(req.Dates))
	for _, d := range req.Dates {
		date, err := model.ParseDate(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		dates = append(dates, date)
	}

	change := guard.Change{
		Kind:           guard.KindClosureCreate,
		Dates:          dates,
		Recurring:      req.Recurring,
		ClosureWeekday: time.Weekday(req.Weekday),
	}
	closure := &model.Closure{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Dates:     dates,
		Recurring: req.Recurring,
		Weekday:   time.Weekday(req.Weekday),
	}
	s.guardThenApply(w, r, change, func() error {
		return s.config.CreateClosure(r.Context(), closure)
	})
}

// handleClosureDelete removes a closure. Unblocking is always safe, so no
// guard evaluation is needed beyond the trivially allowed decision.
// DELETE /api/v1/config/closures/{id}
func (s *HTTPServer) handleClosureDelete(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("config_closures")
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use DELETE")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/config/closures/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}

	if err := s.config.DeleteClosure(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func invalidWindows(windows []model.TimeRange) string {
	for _, w := range windows {
		if !w.Valid() {
			return fmt.Sprintf("invalid window %s: start must precede end within one day", w)
		}
	}
	for i := 1; i < len(windows); i++ {
		if windows[i].Start < windows[i-1].End {
			return fmt.Sprintf("windows %s and %s overlap or are unordered", windows[i-1], windows[i])
		}
	}
	return ""
}
