// Package timegrid provides minute arithmetic for the booking grid.
// All functions are pure; slotDuration is the grid granularity in minutes.
package timegrid

import "slotwise/internal/model"

// IsAligned reports whether t is an exact multiple of slotDuration from midnight.
func IsAligned(t model.TimeOfDay, slotDuration int) bool {
	if slotDuration <= 0 {
		return false
	}
	return t.Minutes()%slotDuration == 0
}

// SlotsNeeded returns how many whole slots a service of durationMinutes consumes.
func SlotsNeeded(durationMinutes, slotDuration int) int {
	if durationMinutes <= 0 || slotDuration <= 0 {
		return 0
	}
	return (durationMinutes + slotDuration - 1) / slotDuration
}

// RoundedEnd returns start plus the duration rounded up to whole slots.
// The result may exceed model.MinutesPerDay; callers check fit separately.
func RoundedEnd(start model.TimeOfDay, durationMinutes, slotDuration int) model.TimeOfDay {
	return start + model.TimeOfDay(SlotsNeeded(durationMinutes, slotDuration)*slotDuration)
}

// ExpandRange returns the ordered aligned start times t such that
// [t, t+slotDuration) fits inside r. Unaligned range boundaries shrink
// inward: the first start is the first aligned minute at or after r.Start.
func ExpandRange(r model.TimeRange, slotDuration int) []model.TimeOfDay {
	if slotDuration <= 0 || !r.Valid() {
		return nil
	}
	first := r.Start.Minutes()
	if rem := first % slotDuration; rem != 0 {
		first += slotDuration - rem
	}
	var starts []model.TimeOfDay
	for m := first; m+slotDuration <= r.End.Minutes(); m += slotDuration {
		starts = append(starts, model.TimeOfDay(m))
	}
	return starts
}

// RangesOverlap is the half-open interval collision test.
// Touching boundaries (a.End == b.Start) do not overlap.
func RangesOverlap(a, b model.TimeRange) bool {
	return a.Overlaps(b)
}
