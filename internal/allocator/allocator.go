// Package allocator answers the two slot questions: which starts are free
// on a date, and whether one specific start can host a service.
package allocator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"slotwise/internal/model"
	"slotwise/internal/occupancy"
	"slotwise/internal/schedule"
	"slotwise/internal/timegrid"
)

// Reason is a stable rejection code callers branch on.
type Reason string

const (
	ReasonPast         Reason = "past"
	ReasonMisaligned   Reason = "misaligned"
	ReasonClosed       Reason = "closed"
	ReasonOutsideHours Reason = "outside_hours"
	ReasonNoFit        Reason = "no_fit"
	ReasonSlotTaken    Reason = "slot_taken"
)

// Rejection explains why a start is not bookable.
type Rejection struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Config carries the externally supplied business parameters. The engine
// treats them as immutable inputs per call; nothing is hardcoded.
type Config struct {
	SlotDuration int
	Location     *time.Location
	// DayEnd is an optional business-hours ceiling; 0 disables it.
	DayEnd model.TimeOfDay
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now().In(c.Location)
	}
	return time.Now().In(c.Location)
}

// Allocator is the query/validation facade over the resolver and the
// booking index. It is stateless between calls.
type Allocator struct {
	resolver *schedule.Resolver
	index    *occupancy.Index
	cfg      Config
}

// New creates a slot allocator.
func New(resolver *schedule.Resolver, index *occupancy.Index, cfg Config) *Allocator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Allocator{resolver: resolver, index: index, cfg: cfg}
}

// ListAvailableStarts returns the ascending free start times for a date.
// With a service given, a start is kept only if the service's rounded
// duration fits inside the same open window that produced it and none of
// the additional slots are booked. An empty result is a valid answer.
func (a *Allocator) ListAvailableStarts(ctx context.Context, date model.Date, svc *model.Service) ([]model.TimeOfDay, error) {
	windows, _, err := a.resolver.Resolve(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	occupied, err := a.index.OccupiedSlots(ctx, date, a.cfg.SlotDuration, "")
	if err != nil {
		return nil, err
	}

	now := a.cfg.now()
	today := model.DateOf(now)
	if string(date) < string(today) {
		return nil, nil
	}
	var cutoff model.TimeOfDay = -1
	if date == today {
		cutoff = model.TimeOfDay(now.Hour()*60 + now.Minute())
	}

	seen := make(map[model.TimeOfDay]bool)
	var starts []model.TimeOfDay
	for _, w := range windows {
		for _, start := range timegrid.ExpandRange(w, a.cfg.SlotDuration) {
			if seen[start] {
				continue
			}
			if start <= cutoff {
				continue
			}
			if occupied.Has(start) {
				continue
			}
			if svc != nil && !a.serviceFits(w, start, svc.DurationMinutes, occupied) {
				continue
			}
			seen[start] = true
			starts = append(starts, start)
		}
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	return starts, nil
}

// serviceFits checks the rounded duration stays inside the window that
// produced the start — a service may not straddle two disjoint windows —
// and that every extra slot it would occupy is free.
func (a *Allocator) serviceFits(w model.TimeRange, start model.TimeOfDay, durationMinutes int, occupied occupancy.SlotSet) bool {
	end := timegrid.RoundedEnd(start, durationMinutes, a.cfg.SlotDuration)
	if end > w.End {
		return false
	}
	if a.cfg.DayEnd > 0 && end > a.cfg.DayEnd {
		return false
	}
	for slot := start; slot < end; slot += model.TimeOfDay(a.cfg.SlotDuration) {
		if occupied.Has(slot) {
			return false
		}
	}
	return true
}

// ValidateStart checks whether a single requested start can host a service
// of durationMinutes on date. Checks run in order and short-circuit on the
// first failure; a nil Rejection means the start is valid. excludeBookingID
// skips one existing booking, for edit flows.
func (a *Allocator) ValidateStart(ctx context.Context, date model.Date, start model.TimeOfDay, durationMinutes int, excludeBookingID string) (*Rejection, error) {
	now := a.cfg.now()
	startAt := date.Time(start, a.cfg.Location)
	if !startAt.After(now) {
		return reject(ReasonPast, "%s %s is in the past", date, start), nil
	}

	if !timegrid.IsAligned(start, a.cfg.SlotDuration) {
		return reject(ReasonMisaligned, "%s is not aligned to the %d-minute grid", start, a.cfg.SlotDuration), nil
	}

	windows, source, err := a.resolver.Resolve(ctx, date)
	if err != nil {
		return nil, err
	}
	if source == schedule.SourceClosure {
		return reject(ReasonClosed, "%s is closed", date), nil
	}

	var window *model.TimeRange
	for i := range windows {
		if start >= windows[i].Start && start < windows[i].End {
			window = &windows[i]
			break
		}
	}
	if window == nil {
		return reject(ReasonOutsideHours, "%s is outside the open hours of %s", start, date), nil
	}

	end := timegrid.RoundedEnd(start, durationMinutes, a.cfg.SlotDuration)
	if end > window.End {
		return reject(ReasonNoFit, "a %d-minute booking at %s does not fit before %s", durationMinutes, start, window.End), nil
	}
	if a.cfg.DayEnd > 0 && end > a.cfg.DayEnd {
		return reject(ReasonNoFit, "a %d-minute booking at %s runs past closing time %s", durationMinutes, start, a.cfg.DayEnd), nil
	}

	occupied, err := a.index.OccupiedSlots(ctx, date, a.cfg.SlotDuration, excludeBookingID)
	if err != nil {
		return nil, err
	}
	for slot := start; slot < end; slot += model.TimeOfDay(a.cfg.SlotDuration) {
		if occupied.Has(slot) {
			return reject(ReasonSlotTaken, "slot %s on %s is already booked", slot, date), nil
		}
	}

	return nil, nil
}
