// Package api exposes the availability engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"slotwise/internal/allocator"
	"slotwise/internal/export"
	"slotwise/internal/guard"
	"slotwise/internal/model"
	"slotwise/internal/reservation"
	"slotwise/internal/schedule"
	"slotwise/internal/store"
)

// ConfigStore is the mutation side of the schedule configuration; every
// mutating call is preceded by a guard evaluation.
type ConfigStore interface {
	ApplyTemplateDay(ctx context.Context, day time.Weekday, windows []model.TimeRange) error
	PutOverride(ctx context.Context, o *model.DateOverride) error
	DeleteOverride(ctx context.Context, date model.Date) error
	CreateClosure(ctx context.Context, c *model.Closure) error
	DeleteClosure(ctx context.Context, id string) error
}

// OTPIssuer requests a code delivery for a phone number.
type OTPIssuer interface {
	Issue(ctx context.Context, phone string) error
}

// BookingStore is the booking side the API needs beyond the workflow.
type BookingStore interface {
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	ListServices(ctx context.Context) ([]model.Service, error)
	ServiceByID(ctx context.Context, id string) (*model.Service, error)
}

// HTTPServer serves the engine's public operations.
type HTTPServer struct {
	resolver  *schedule.Resolver
	allocator *allocator.Allocator
	workflow  *reservation.Workflow
	guard     *guard.Guard
	otp       OTPIssuer
	config    ConfigStore
	bookings  BookingStore
	reporter  *export.Reporter
	logger    *zerolog.Logger
}

// NewHTTPServer wires the engine components behind HTTP handlers.
func NewHTTPServer(
	resolver *schedule.Resolver,
	alloc *allocator.Allocator,
	workflow *reservation.Workflow,
	g *guard.Guard,
	issuer OTPIssuer,
	config ConfigStore,
	bookings BookingStore,
	reporter *export.Reporter,
	logger *zerolog.Logger,
) *HTTPServer {
	return &HTTPServer{
		resolver:  resolver,
		allocator: alloc,
		workflow:  workflow,
		guard:     g,
		otp:       issuer,
		config:    config,
		bookings:  bookings,
		reporter:  reporter,
		logger:    logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/availability", s.handleAvailability)
	mux.HandleFunc("/api/v1/slots", s.handleSlots)
	mux.HandleFunc("/api/v1/slots/validate", s.handleValidateSlot)
	mux.HandleFunc("/api/v1/reservations", s.handleCreateReservation)
	mux.HandleFunc("/api/v1/bookings/", s.handleBooking)
	mux.HandleFunc("/api/v1/bookings/export", s.handleExport)
	mux.HandleFunc("/api/v1/otp/request", s.handleOTPRequest)
	mux.HandleFunc("/api/v1/services", s.handleServices)
	mux.HandleFunc("/api/v1/config/guard", s.handleGuardDryRun)
	mux.HandleFunc("/api/v1/config/template", s.handleTemplateChange)
	mux.HandleFunc("/api/v1/config/overrides", s.handleOverrideChange)
	mux.HandleFunc("/api/v1/config/closures", s.handleClosureCreate)
	mux.HandleFunc("/api/v1/config/closures/", s.handleClosureDelete)
	return mux
}

// Serve runs the API server until ctx is done.
func (s *HTTPServer) Serve(ctx context.Context, port int) error {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError distinguishes infrastructure faults from missing rows.
func (s *HTTPServer) writeStoreError(w http.ResponseWriter, err error) {
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.logger.Error().Err(err).Msg("store failure")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeStrict(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func rejectionStatus(reason string) int {
	if reason == string(allocator.ReasonSlotTaken) || reason == string(reservation.CodeSlotTaken) {
		return http.StatusConflict
	}
	return http.StatusUnprocessableEntity
}
