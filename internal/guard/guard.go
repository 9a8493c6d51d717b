// Package guard protects configuration mutations that would orphan
// existing bookings.
//
// Shrinking or deleting open time is blocked while bookings occupy the
// removed ranges. The asymmetry is intentional: closures (which remove
// time) need a positive zero-bookings check to be created, while deleting
// a closure (which re-opens time) is always safe.
package guard

import (
	"context"
	"fmt"
	"time"

	"slotwise/internal/metrics"
	"slotwise/internal/model"
	"slotwise/internal/occupancy"
	"slotwise/internal/schedule"
	"slotwise/internal/timegrid"
)

// Kind names the configuration mutation being proposed.
type Kind string

const (
	KindTemplateDay    Kind = "template_day"
	KindOverrideSet    Kind = "override_set"
	KindOverrideDelete Kind = "override_delete"
	KindClosureCreate  Kind = "closure_create"
	KindClosureDelete  Kind = "closure_delete"
)

// Change describes a proposed configuration mutation. Fields are used per
// Kind: Weekday+Windows for template edits, Date(+Windows) for overrides,
// Dates/Recurring/ClosureWeekday for closure creation.
type Change struct {
	Kind           Kind              `json:"kind"`
	Weekday        time.Weekday      `json:"weekday,omitempty"`
	Windows        []model.TimeRange `json:"windows,omitempty"`
	Date           model.Date        `json:"date,omitempty"`
	Dates          []model.Date      `json:"dates,omitempty"`
	Recurring      bool              `json:"recurring,omitempty"`
	ClosureWeekday time.Weekday      `json:"closure_weekday,omitempty"`
}

// Decision is the guard's verdict. Conflicts enumerates every blocking
// booking so an administrator can resolve all of them in one pass.
type Decision struct {
	Allowed   bool            `json:"allowed"`
	Conflicts []model.Booking `json:"conflicts,omitempty"`
}

// Config carries the guard's externally supplied parameters.
type Config struct {
	SlotDuration int
	// LookaheadDays bounds how far template and recurring-closure edits
	// project affected dates. Templates have no end date, so the check
	// has to be bounded somewhere.
	LookaheadDays int
	Location      *time.Location
	Now           func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now().In(c.Location)
	}
	return time.Now().In(c.Location)
}

// Guard evaluates configuration mutations against existing bookings.
type Guard struct {
	resolver *schedule.Resolver
	template schedule.TemplateSource
	bookings occupancy.BookingSource
	cfg      Config
}

// New creates a mutation guard.
func New(resolver *schedule.Resolver, template schedule.TemplateSource, bookings occupancy.BookingSource, cfg Config) *Guard {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = 28
	}
	return &Guard{resolver: resolver, template: template, bookings: bookings, cfg: cfg}
}

// Evaluate decides whether a mutation may be committed. The check is
// all-or-nothing: any conflict blocks the whole change.
func (g *Guard) Evaluate(ctx context.Context, change Change) (Decision, error) {
	var (
		decision Decision
		err      error
	)
	switch change.Kind {
	case KindClosureDelete:
		// Re-opening time can never orphan a booking.
		decision = Decision{Allowed: true}
	case KindClosureCreate:
		decision, err = g.evaluateClosureCreate(ctx, change)
	case KindOverrideSet, KindOverrideDelete:
		decision, err = g.evaluateOverrideChange(ctx, change)
	case KindTemplateDay:
		decision, err = g.evaluateTemplateDay(ctx, change)
	default:
		return Decision{}, fmt.Errorf("unknown change kind %q", change.Kind)
	}
	if err != nil {
		return Decision{}, err
	}

	if decision.Allowed {
		metrics.IncGuardDecision("allowed")
	} else {
		metrics.IncGuardDecision("blocked")
	}
	return decision, nil
}

// evaluateClosureCreate requires every affected date to have zero bookings.
func (g *Guard) evaluateClosureCreate(ctx context.Context, change Change) (Decision, error) {
	dates := append([]model.Date(nil), change.Dates...)
	if change.Recurring {
		dates = append(dates, g.projectWeekday(change.ClosureWeekday)...)
	}

	var conflicts []model.Booking
	seen := make(map[model.Date]bool)
	for _, date := range dates {
		if seen[date] {
			continue
		}
		seen[date] = true
		list, err := g.bookings.BookingsOn(ctx, date)
		if err != nil {
			return Decision{}, fmt.Errorf("bookings on %s: %w", date, err)
		}
		for _, b := range list {
			if b.Active() {
				conflicts = append(conflicts, b)
			}
		}
	}
	return Decision{Allowed: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// evaluateOverrideChange compares the date's current effective windows with
// the proposed ones and blocks if a booked slot would fall out.
func (g *Guard) evaluateOverrideChange(ctx context.Context, change Change) (Decision, error) {
	oldWindows, _, err := g.resolver.Resolve(ctx, change.Date)
	if err != nil {
		return Decision{}, err
	}

	newWindows := change.Windows
	if change.Kind == KindOverrideDelete {
		// Deleting an override falls back to the weekly template.
		newWindows, err = g.template.TemplateFor(ctx, change.Date.Weekday())
		if err != nil {
			return Decision{}, fmt.Errorf("template for %s: %w", change.Date.Weekday(), err)
		}
	}

	removed := g.removedSlots(oldWindows, newWindows)
	if len(removed) == 0 {
		return Decision{Allowed: true}, nil
	}
	conflicts, err := g.conflictsOn(ctx, change.Date, removed)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// evaluateTemplateDay projects the edit across every lookahead date whose
// weekday matches and whose availability actually comes from the template.
func (g *Guard) evaluateTemplateDay(ctx context.Context, change Change) (Decision, error) {
	oldWindows, err := g.template.TemplateFor(ctx, change.Weekday)
	if err != nil {
		return Decision{}, fmt.Errorf("template for %s: %w", change.Weekday, err)
	}

	removed := g.removedSlots(oldWindows, change.Windows)
	if len(removed) == 0 {
		return Decision{Allowed: true}, nil
	}

	var conflicts []model.Booking
	for _, date := range g.projectWeekday(change.Weekday) {
		_, source, err := g.resolver.Resolve(ctx, date)
		if err != nil {
			return Decision{}, err
		}
		// Dates governed by an override or a closure do not change with
		// the template.
		if source != schedule.SourceTemplate {
			continue
		}
		dayConflicts, err := g.conflictsOn(ctx, date, removed)
		if err != nil {
			return Decision{}, err
		}
		conflicts = append(conflicts, dayConflicts...)
	}
	return Decision{Allowed: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// removedSlots returns the slot starts open under old but not under new,
// compared at grid granularity.
func (g *Guard) removedSlots(oldWindows, newWindows []model.TimeRange) occupancy.SlotSet {
	kept := make(occupancy.SlotSet)
	for _, w := range newWindows {
		for _, slot := range timegrid.ExpandRange(w, g.cfg.SlotDuration) {
			kept.Add(slot)
		}
	}
	removed := make(occupancy.SlotSet)
	for _, w := range oldWindows {
		for _, slot := range timegrid.ExpandRange(w, g.cfg.SlotDuration) {
			if !kept.Has(slot) {
				removed.Add(slot)
			}
		}
	}
	return removed
}

// conflictsOn returns the bookings on date occupying any removed slot.
func (g *Guard) conflictsOn(ctx context.Context, date model.Date, removed occupancy.SlotSet) ([]model.Booking, error) {
	list, err := g.bookings.BookingsOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("bookings on %s: %w", date, err)
	}
	var conflicts []model.Booking
	for _, b := range list {
		if !b.Active() {
			continue
		}
		end := timegrid.RoundedEnd(b.Start, b.DurationMinutes, g.cfg.SlotDuration)
		if end < b.End {
			end = b.End
		}
		for _, slot := range timegrid.ExpandRange(model.TimeRange{Start: b.Start, End: end}, g.cfg.SlotDuration) {
			if removed.Has(slot) {
				conflicts = append(conflicts, b)
				break
			}
		}
	}
	return conflicts, nil
}

// projectWeekday lists the concrete dates within the lookahead window that
// fall on day, starting today.
func (g *Guard) projectWeekday(day time.Weekday) []model.Date {
	today := model.DateOf(g.cfg.now())
	var dates []model.Date
	for i := 0; i < g.cfg.LookaheadDays; i++ {
		d := today.AddDays(i)
		if d.Weekday() == day {
			dates = append(dates, d)
		}
	}
	return dates
}
