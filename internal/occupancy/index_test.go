package occupancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotwise/internal/model"
)

type fakeBookings struct {
	bookings []model.Booking
}

func (f *fakeBookings) BookingsOn(_ context.Context, date model.Date) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if b.Date == date {
			out = append(out, b)
		}
	}
	return out, nil
}

func TestOccupiedSlots(t *testing.T) {
	date := model.Date("2026-09-07")
	ix := NewIndex(&fakeBookings{bookings: []model.Booking{
		{ID: "b1", Date: date, Start: 540, End: 600, DurationMinutes: 60, Status: model.StatusPending},
		{ID: "b2", Date: date, Start: 720, End: 735, DurationMinutes: 15, Status: model.StatusConfirmed},
	}})

	occupied, err := ix.OccupiedSlots(context.Background(), date, 15, "")
	require.NoError(t, err)

	for _, slot := range []model.TimeOfDay{540, 555, 570, 585, 720} {
		assert.True(t, occupied.Has(slot), "slot %s should be occupied", slot)
	}
	assert.False(t, occupied.Has(600), "the minute after a booking ends is free")
	assert.False(t, occupied.Has(735))
	assert.Len(t, occupied, 5)
}

func TestOccupiedSlotsRoundsDurationUp(t *testing.T) {
	date := model.Date("2026-09-07")
	// A 50-minute booking stored with its rounded end still consumes 4 slots.
	ix := NewIndex(&fakeBookings{bookings: []model.Booking{
		{ID: "b1", Date: date, Start: 540, End: 600, DurationMinutes: 50, Status: model.StatusPending},
	}})

	occupied, err := ix.OccupiedSlots(context.Background(), date, 15, "")
	require.NoError(t, err)
	assert.Len(t, occupied, 4)
	assert.True(t, occupied.Has(585))
}

func TestOccupiedSlotsExcludesBooking(t *testing.T) {
	date := model.Date("2026-09-07")
	ix := NewIndex(&fakeBookings{bookings: []model.Booking{
		{ID: "b1", Date: date, Start: 540, End: 600, DurationMinutes: 60, Status: model.StatusPending},
		{ID: "b2", Date: date, Start: 600, End: 660, DurationMinutes: 60, Status: model.StatusPending},
	}})

	occupied, err := ix.OccupiedSlots(context.Background(), date, 15, "b1")
	require.NoError(t, err)
	assert.False(t, occupied.Has(540), "excluded booking's slots are free")
	assert.True(t, occupied.Has(600))
}

func TestOccupiedSlotsSkipsInactive(t *testing.T) {
	date := model.Date("2026-09-07")
	ix := NewIndex(&fakeBookings{bookings: []model.Booking{
		{ID: "b1", Date: date, Start: 540, End: 600, DurationMinutes: 60, Status: model.BookingStatus("canceled")},
	}})

	occupied, err := ix.OccupiedSlots(context.Background(), date, 15, "")
	require.NoError(t, err)
	assert.Empty(t, occupied)
}
