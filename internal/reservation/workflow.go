// Package reservation orchestrates reservation creation: OTP verification,
// field and business-rule validation, slot validation, and atomic persist.
//
// The workflow is a single pass with no intermediate state; any step's
// failure is a terminal rejection with a stable reason code.
package reservation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"slotwise/internal/allocator"
	"slotwise/internal/metrics"
	"slotwise/internal/model"
	"slotwise/internal/otp"
	"slotwise/internal/store"
	"slotwise/internal/timegrid"
)

// Code is a stable, enumerable rejection reason. Callers branch on these.
type Code string

const (
	CodeOTPNotFound        Code = "otp_not_found"
	CodeOTPExpired         Code = "otp_expired"
	CodeOTPTooManyAttempts Code = "otp_too_many_attempts"
	CodeOTPWrongCode       Code = "otp_wrong_code"
	CodeMissingName        Code = "missing_name"
	CodeInvalidPhone       Code = "invalid_phone"
	CodeInvalidDate        Code = "invalid_date"
	CodeInvalidTime        Code = "invalid_time"
	CodeMissingService     Code = "missing_service"
	CodePast               Code = "past"
	CodeTooFarAhead        Code = "too_far_ahead"
	CodeTooSoon            Code = "too_soon"
	CodeUnknownService     Code = "unknown_service"
	CodeServiceInactive    Code = "service_inactive"
	CodeMisaligned         Code = "misaligned"
	CodeClosed             Code = "closed"
	CodeOutsideHours       Code = "outside_hours"
	CodeNoFit              Code = "no_fit"
	CodeSlotTaken          Code = "slot_taken"
)

// Request is the raw client submission. Date and Start are strings because
// field validation is the workflow's job, not the caller's.
type Request struct {
	OTPCode    string `json:"otp_code"`
	ClientName string `json:"client_name"`
	Phone      string `json:"phone"`
	Date       string `json:"date"`
	Start      string `json:"start"`
	ServiceID  string `json:"service_id"`
}

// Result is the terminal outcome. Rejections are values, not errors;
// only infrastructure failures surface as Go errors.
type Result struct {
	Created      bool   `json:"created"`
	BookingID    string `json:"booking_id,omitempty"`
	Reason       Code   `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
	AttemptsLeft int    `json:"attempts_left,omitempty"`
}

func rejected(code Code, format string, args ...any) Result {
	return Result{Reason: code, Message: fmt.Sprintf(format, args...)}
}

// ServiceSource loads a service by ID; nil means not found.
type ServiceSource interface {
	ServiceByID(ctx context.Context, id string) (*model.Service, error)
}

// BookingCreator persists a booking atomically. It must claim every slot in
// [Start, End) exclusively and return store.ErrSlotTaken if any claim is
// already held, so two racing submissions can never both succeed.
type BookingCreator interface {
	CreateBooking(ctx context.Context, b *model.Booking, slotDuration int) error
}

// Rules are the externally configured booking constraints.
type Rules struct {
	SlotDuration int
	Location     *time.Location
	// MaxAdvance is the furthest a booking may be placed in the future.
	MaxAdvance time.Duration
	// MinNotice applies only to same-day bookings.
	MinNotice time.Duration
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (r Rules) now() time.Time {
	if r.Now != nil {
		return r.Now().In(r.Location)
	}
	return time.Now().In(r.Location)
}

// Workflow creates pending bookings.
type Workflow struct {
	verifier  otp.Verifier
	allocator *allocator.Allocator
	services  ServiceSource
	bookings  BookingCreator
	rules     Rules
	logger    *zerolog.Logger
}

// New creates a reservation workflow.
func New(verifier otp.Verifier, alloc *allocator.Allocator, services ServiceSource, bookings BookingCreator, rules Rules, logger *zerolog.Logger) *Workflow {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	return &Workflow{
		verifier:  verifier,
		allocator: alloc,
		services:  services,
		bookings:  bookings,
		rules:     rules,
		logger:    logger,
	}
}

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// Create walks the reservation state machine. Infrastructure failures come
// back as errors; everything else is a Result.
func (w *Workflow) Create(ctx context.Context, req Request) (Result, error) {
	// OTP first: an unverified caller learns nothing about the calendar.
	verification, err := w.verifier.Verify(ctx, strings.TrimSpace(req.Phone), strings.TrimSpace(req.OTPCode))
	if err != nil {
		return Result{}, fmt.Errorf("verify otp: %w", err)
	}
	metrics.IncOTPVerification(string(verification.Status))
	if verification.Status != otp.StatusVerified {
		r := rejected(otpCode(verification.Status), "code verification failed: %s", verification.Status)
		r.AttemptsLeft = verification.AttemptsLeft
		metrics.IncReservationRejected(string(r.Reason))
		return r, nil
	}

	date, start, result := w.validateFields(&req)
	if result != nil {
		metrics.IncReservationRejected(string(result.Reason))
		return *result, nil
	}

	if result := w.validateTiming(date, start); result != nil {
		metrics.IncReservationRejected(string(result.Reason))
		return *result, nil
	}

	svc, err := w.services.ServiceByID(ctx, req.ServiceID)
	if err != nil {
		return Result{}, fmt.Errorf("load service %s: %w", req.ServiceID, err)
	}
	if svc == nil {
		metrics.IncReservationRejected(string(CodeUnknownService))
		return rejected(CodeUnknownService, "unknown service %q", req.ServiceID), nil
	}
	if !svc.Active {
		metrics.IncReservationRejected(string(CodeServiceInactive))
		return rejected(CodeServiceInactive, "service %q is not bookable", svc.Name), nil
	}

	if rej, err := w.allocator.ValidateStart(ctx, date, start, svc.DurationMinutes, ""); err != nil {
		return Result{}, err
	} else if rej != nil {
		metrics.IncReservationRejected(string(rej.Reason))
		return Result{Reason: Code(rej.Reason), Message: rej.Message}, nil
	}

	booking := &model.Booking{
		ID:              uuid.NewString(),
		Date:            date,
		Start:           start,
		End:             timegrid.RoundedEnd(start, svc.DurationMinutes, w.rules.SlotDuration),
		DurationMinutes: svc.DurationMinutes,
		ServiceID:       svc.ID,
		ClientName:      strings.TrimSpace(req.ClientName),
		ClientPhone:     strings.TrimSpace(req.Phone),
		Status:          model.StatusPending,
		CreatedAt:       w.rules.now(),
	}

	if err := w.bookings.CreateBooking(ctx, booking, w.rules.SlotDuration); err != nil {
		if store.IsSlotTaken(err) {
			// Lost the race: someone claimed the slot after validation.
			metrics.IncReservationRejected(string(CodeSlotTaken))
			return rejected(CodeSlotTaken, "slot %s on %s was booked concurrently", start, date), nil
		}
		return Result{}, fmt.Errorf("create booking: %w", err)
	}

	metrics.IncReservationCreated()
	w.logger.Info().
		Str("booking_id", booking.ID).
		Str("date", string(booking.Date)).
		Str("start", booking.Start.String()).
		Str("service_id", booking.ServiceID).
		Msg("reservation created")

	return Result{Created: true, BookingID: booking.ID}, nil
}

func (w *Workflow) validateFields(req *Request) (model.Date, model.TimeOfDay, *Result) {
	if len(strings.Fields(req.ClientName)) == 0 {
		r := rejected(CodeMissingName, "client name is required")
		return "", 0, &r
	}
	if !phoneRegex.MatchString(strings.TrimSpace(req.Phone)) {
		r := rejected(CodeInvalidPhone, "invalid phone number %q", req.Phone)
		return "", 0, &r
	}
	date, err := model.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		r := rejected(CodeInvalidDate, "%s", err)
		return "", 0, &r
	}
	start, err := model.ParseTimeOfDay(strings.TrimSpace(req.Start))
	if err != nil {
		r := rejected(CodeInvalidTime, "%s", err)
		return "", 0, &r
	}
	if strings.TrimSpace(req.ServiceID) == "" {
		r := rejected(CodeMissingService, "service id is required")
		return "", 0, &r
	}
	return date, start, nil
}

func (w *Workflow) validateTiming(date model.Date, start model.TimeOfDay) *Result {
	now := w.rules.now()
	startAt := date.Time(start, w.rules.Location)

	if !startAt.After(now) {
		r := rejected(CodePast, "%s %s is in the past", date, start)
		return &r
	}
	if w.rules.MaxAdvance > 0 && startAt.After(now.Add(w.rules.MaxAdvance)) {
		r := rejected(CodeTooFarAhead, "bookings may be placed at most %s ahead", w.rules.MaxAdvance)
		return &r
	}
	if w.rules.MinNotice > 0 && date == model.DateOf(now) && startAt.Before(now.Add(w.rules.MinNotice)) {
		r := rejected(CodeTooSoon, "same-day bookings need at least %s notice", w.rules.MinNotice)
		return &r
	}
	return nil
}

func otpCode(status otp.Status) Code {
	switch status {
	case otp.StatusNotFound:
		return CodeOTPNotFound
	case otp.StatusExpired:
		return CodeOTPExpired
	case otp.StatusTooManyAttempts:
		return CodeOTPTooManyAttempts
	default:
		return CodeOTPWrongCode
	}
}
