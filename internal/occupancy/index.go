// Package occupancy builds the slot-level occupancy set for a date.
package occupancy

import (
	"context"
	"fmt"

	"slotwise/internal/model"
	"slotwise/internal/timegrid"
)

// BookingSource lists the active (pending or confirmed) bookings on a date.
type BookingSource interface {
	BookingsOn(ctx context.Context, date model.Date) ([]model.Booking, error)
}

// SlotSet is a set of occupied slot start minutes. Membership tests make
// downstream collision checks O(1) per candidate slot.
type SlotSet map[int]struct{}

// Has reports whether the slot starting at t is occupied.
func (s SlotSet) Has(t model.TimeOfDay) bool {
	_, ok := s[t.Minutes()]
	return ok
}

// Add marks the slot starting at t occupied.
func (s SlotSet) Add(t model.TimeOfDay) {
	s[t.Minutes()] = struct{}{}
}

// Index exposes which slots existing bookings consume.
type Index struct {
	bookings BookingSource
}

// NewIndex creates a booking index over the given source.
func NewIndex(bookings BookingSource) *Index {
	return &Index{bookings: bookings}
}

// OccupiedSlots returns the occupied slot set for a date. Each booking's
// duration is rounded up to whole slots before expansion. excludeID skips
// one booking, for edit flows; pass "" to include all.
func (ix *Index) OccupiedSlots(ctx context.Context, date model.Date, slotDuration int, excludeID string) (SlotSet, error) {
	list, err := ix.bookings.BookingsOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("bookings on %s: %w", date, err)
	}

	occupied := make(SlotSet)
	for i := range list {
		b := &list[i]
		if !b.Active() || (excludeID != "" && b.ID == excludeID) {
			continue
		}
		end := timegrid.RoundedEnd(b.Start, b.DurationMinutes, slotDuration)
		if end < b.End {
			end = b.End
		}
		for _, slot := range timegrid.ExpandRange(model.TimeRange{Start: b.Start, End: end}, slotDuration) {
			occupied.Add(slot)
		}
	}
	return occupied, nil
}
