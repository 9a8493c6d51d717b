package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotwise/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedService(t *testing.T, db *DB, id string, duration int, active bool) {
	t.Helper()
	require.NoError(t, db.UpsertService(context.Background(), &model.Service{
		ID: id, Name: id, DurationMinutes: duration, Active: active,
	}))
}

func testBooking(id string, date model.Date, start, end model.TimeOfDay) *model.Booking {
	return &model.Booking{
		ID:              id,
		Date:            date,
		Start:           start,
		End:             end,
		DurationMinutes: int(end - start),
		ServiceID:       "cut",
		ClientName:      "Ada Lovelace",
		ClientPhone:     "+4915112345678",
		Status:          model.StatusPending,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	windows := []model.TimeRange{{Start: 540, End: 720}, {Start: 780, End: 1020}}
	require.NoError(t, db.ApplyTemplateDay(ctx, time.Monday, windows))

	got, err := db.TemplateFor(ctx, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, windows, got)

	empty, err := db.TemplateFor(ctx, time.Tuesday)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Replacing a day drops the old windows.
	require.NoError(t, db.ApplyTemplateDay(ctx, time.Monday, []model.TimeRange{{Start: 600, End: 660}}))
	got, err = db.TemplateFor(ctx, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, []model.TimeRange{{Start: 600, End: 660}}, got)
}

func TestOverrideRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	date := model.Date("2026-09-07")

	missing, err := db.OverrideFor(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, missing, "no override row means nil, not empty")

	require.NoError(t, db.PutOverride(ctx, &model.DateOverride{
		Date: date, Windows: []model.TimeRange{{Start: 600, End: 720}},
	}))
	got, err := db.OverrideFor(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []model.TimeRange{{Start: 600, End: 720}}, got.Windows)

	// A closed-day override keeps its row but carries zero windows.
	require.NoError(t, db.PutOverride(ctx, &model.DateOverride{Date: date}))
	got, err = db.OverrideFor(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Windows)

	require.NoError(t, db.DeleteOverride(ctx, date))
	missing, err = db.OverrideFor(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClosures(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateClosure(ctx, &model.Closure{
		ID: "c1", Name: "renovation", Dates: []model.Date{"2026-09-07", "2026-09-08"},
	}))
	require.NoError(t, db.CreateClosure(ctx, &model.Closure{
		ID: "c2", Name: "sundays", Recurring: true, Weekday: time.Sunday,
	}))

	onMonday, err := db.ClosuresOn(ctx, "2026-09-07")
	require.NoError(t, err)
	require.Len(t, onMonday, 1)
	assert.Equal(t, "c1", onMonday[0].ID)
	assert.True(t, onMonday[0].Covers("2026-09-07"))

	// 2026-09-06 is a Sunday; only the recurring closure covers it.
	onSunday, err := db.ClosuresOn(ctx, "2026-09-06")
	require.NoError(t, err)
	require.Len(t, onSunday, 1)
	assert.Equal(t, "c2", onSunday[0].ID)

	none, err := db.ClosuresOn(ctx, "2026-09-09")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, db.DeleteClosure(ctx, "c1"))
	assert.ErrorIs(t, db.DeleteClosure(ctx, "c1"), ErrNotFound)

	onMonday, err = db.ClosuresOn(ctx, "2026-09-07")
	require.NoError(t, err)
	assert.Empty(t, onMonday, "closure dates cascade away with the closure")
}

func TestCreateBookingClaimsSlots(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedService(t, db, "cut", 60, true)

	require.NoError(t, db.CreateBooking(ctx, testBooking("b1", "2026-09-07", 540, 600), 15))

	// Overlapping second booking loses the claim race.
	err := db.CreateBooking(ctx, testBooking("b2", "2026-09-07", 585, 645), 15)
	assert.True(t, IsSlotTaken(err), "expected ErrSlotTaken, got %v", err)

	// The losing transaction rolled back entirely.
	_, err = db.GetBooking(ctx, "b2")
	assert.ErrorIs(t, err, ErrNotFound)

	// Back-to-back is fine.
	require.NoError(t, db.CreateBooking(ctx, testBooking("b3", "2026-09-07", 600, 660), 15))

	// Same minutes on another date are independent.
	require.NoError(t, db.CreateBooking(ctx, testBooking("b4", "2026-09-08", 540, 600), 15))
}

func TestDeleteBookingReleasesSlots(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedService(t, db, "cut", 60, true)

	require.NoError(t, db.CreateBooking(ctx, testBooking("b1", "2026-09-07", 540, 600), 15))
	require.NoError(t, db.DeleteBooking(ctx, "b1"))
	assert.ErrorIs(t, db.DeleteBooking(ctx, "b1"), ErrNotFound)

	// The claims cascaded away, so the slot is bookable again.
	require.NoError(t, db.CreateBooking(ctx, testBooking("b2", "2026-09-07", 540, 600), 15))
}

// Slot claims must cascade away on every pooled connection, not just the
// one that ran the migrations.
func TestDeleteBookingCascadesOnFreshConnection(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedService(t, db, "cut", 60, true)

	require.NoError(t, db.CreateBooking(ctx, testBooking("b1", "2026-09-07", 540, 600), 15))

	// Drop the idle pool so the delete runs on a brand-new connection.
	db.SetMaxIdleConns(0)
	require.NoError(t, db.DeleteBooking(ctx, "b1"))

	var claims int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM slot_claims").Scan(&claims))
	assert.Zero(t, claims, "claims must not outlive their booking")

	// The freed slot is bookable again.
	require.NoError(t, db.CreateBooking(ctx, testBooking("b2", "2026-09-07", 540, 600), 15))
}

func TestBookingsQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedService(t, db, "cut", 60, true)

	require.NoError(t, db.CreateBooking(ctx, testBooking("b1", "2026-09-07", 600, 660), 15))
	require.NoError(t, db.CreateBooking(ctx, testBooking("b2", "2026-09-07", 540, 600), 15))
	require.NoError(t, db.CreateBooking(ctx, testBooking("b3", "2026-09-09", 540, 600), 15))

	on, err := db.BookingsOn(ctx, "2026-09-07")
	require.NoError(t, err)
	require.Len(t, on, 2)
	assert.Equal(t, "b2", on[0].ID, "ordered by start time")
	assert.Equal(t, model.TimeOfDay(540), on[0].Start)

	inRange, err := db.BookingsInRange(ctx, "2026-09-07", "2026-09-09")
	require.NoError(t, err)
	assert.Len(t, inRange, 3)

	has, err := db.HasBookingsOnDate(ctx, "2026-09-09")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = db.HasBookingsOnDate(ctx, "2026-09-10")
	require.NoError(t, err)
	assert.False(t, has)

	got, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, model.Date("2026-09-07"), got.Date)
	assert.Equal(t, model.TimeOfDay(600), got.Start)
	assert.Equal(t, model.StatusPending, got.Status)

	_, err = db.GetBooking(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServices(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	missing, err := db.ServiceByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	seedService(t, db, "cut", 30, true)
	seedService(t, db, "perm", 90, false)

	svc, err := db.ServiceByID(ctx, "cut")
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Equal(t, 30, svc.DurationMinutes)
	assert.True(t, svc.Active)

	// Upsert updates in place.
	seedService(t, db, "cut", 45, true)
	svc, err = db.ServiceByID(ctx, "cut")
	require.NoError(t, err)
	assert.Equal(t, 45, svc.DurationMinutes)

	list, err := db.ListServices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Active, "active services list first")
}
