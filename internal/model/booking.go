package model

import "time"

// BookingStatus represents booking lifecycle state.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
)

// Booking occupies [Start, End) on Date. End is the duration rounded up to
// whole slots and added to Start, so it may exceed the nominal service
// duration; the surplus is intentional buffer.
type Booking struct {
	ID              string        `json:"id"`
	Date            Date          `json:"date"`
	Start           TimeOfDay     `json:"start"`
	End             TimeOfDay     `json:"end"`
	DurationMinutes int           `json:"duration_minutes"`
	ServiceID       string        `json:"service_id"`
	ClientName      string        `json:"client_name"`
	ClientPhone     string        `json:"client_phone"`
	Status          BookingStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Range returns the occupied time range.
func (b *Booking) Range() TimeRange {
	return TimeRange{Start: b.Start, End: b.End}
}

// OverlapsWith reports whether two bookings on the same date collide.
func (b *Booking) OverlapsWith(other *Booking) bool {
	return b.Date == other.Date && b.Range().Overlaps(other.Range())
}

// Active reports whether the booking consumes slots.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// Service is a bookable offering. Inactive services must not be bookable.
type Service struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Active          bool   `json:"active"`
}
