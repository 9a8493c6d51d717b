package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotwise/internal/model"
	"slotwise/internal/schedule"
)

type fakeConfigStore struct {
	closures  []model.Closure
	overrides map[model.Date]*model.DateOverride
	template  model.WeeklyTemplate
	bookings  map[model.Date][]model.Booking
}

func (f *fakeConfigStore) ClosuresOn(_ context.Context, date model.Date) ([]model.Closure, error) {
	var covering []model.Closure
	for _, c := range f.closures {
		if c.Covers(date) {
			covering = append(covering, c)
		}
	}
	return covering, nil
}

func (f *fakeConfigStore) OverrideFor(_ context.Context, date model.Date) (*model.DateOverride, error) {
	return f.overrides[date], nil
}

func (f *fakeConfigStore) TemplateFor(_ context.Context, day time.Weekday) ([]model.TimeRange, error) {
	return f.template.WindowsFor(day), nil
}

func (f *fakeConfigStore) BookingsOn(_ context.Context, date model.Date) ([]model.Booking, error) {
	return f.bookings[date], nil
}

// "Now" is Monday 2026-09-07 08:00; the lookahead covers four weeks from it.
func fixedNow() time.Time {
	return time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
}

func newTestGuard(f *fakeConfigStore) *Guard {
	resolver := schedule.NewResolver(f, f, f)
	return New(resolver, f, f, Config{
		SlotDuration:  15,
		LookaheadDays: 28,
		Location:      time.UTC,
		Now:           fixedNow,
	})
}

func booking(id string, date model.Date, start, end model.TimeOfDay) model.Booking {
	return model.Booking{
		ID: id, Date: date, Start: start, End: end,
		DurationMinutes: int(end - start), Status: model.StatusConfirmed,
	}
}

func TestTemplateShrinkBlockedByBooking(t *testing.T) {
	f := &fakeConfigStore{
		template: model.WeeklyTemplate{
			time.Monday: {{Start: 540, End: 1020}}, // 09:00-17:00
		},
		bookings: map[model.Date][]model.Booking{
			"2026-09-14": {booking("b1", "2026-09-14", 840, 900)}, // 14:00-15:00
		},
	}

	decision, err := newTestGuard(f).Evaluate(context.Background(), Change{
		Kind:    KindTemplateDay,
		Weekday: time.Monday,
		Windows: []model.TimeRange{{Start: 540, End: 720}}, // shrink to 09:00-12:00
	})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	require.Len(t, decision.Conflicts, 1)
	assert.Equal(t, "b1", decision.Conflicts[0].ID)
}

func TestTemplateShrinkAllowedWhenBookingsFit(t *testing.T) {
	f := &fakeConfigStore{
		template: model.WeeklyTemplate{
			time.Monday: {{Start: 540, End: 1020}},
		},
		bookings: map[model.Date][]model.Booking{
			"2026-09-14": {booking("b1", "2026-09-14", 600, 660)}, // 10:00-11:00
		},
	}

	decision, err := newTestGuard(f).Evaluate(context.Background(), Change{
		Kind:    KindTemplateDay,
		Weekday: time.Monday,
		Windows: []model.TimeRange{{Start: 540, End: 720}},
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.Conflicts)
}

func TestTemplateGrowAlwaysAllowed(t *testing.T) {
	f := &fakeConfigStore{
		template: model.WeeklyTemplate{
			time.Monday: {{Start: 540, End: 720}},
		},
		bookings: map[model.Date][]model.Booking{
			"2026-09-14": {booking("b1", "2026-09-14", 600, 660)},
		},
	}

	decision, err := newTestGuard(f).Evaluate(context.Background(), Change{
		Kind:    KindTemplateDay,
		Weekday: time.Monday,
		Windows: []model.TimeRange{{Start: 480, End: 1020}},
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestTemplateShrinkCollectsAllConflicts(t *testing.T) {
	f := &fakeConfigStore{
		template: model.WeeklyTemplate{
			time.Monday: {{Start: 540, End: 1020}},
		},
		bookings: map[model.Date][]model.Booking{
			"2026-09-14": {booking("b1", "2026-09-14", 840, 900)},
			"2026-09-21": {booking("b2", "2026-09-21", 780, 840)},
			"2026-09-28": {booking("b3", "2026-09-28", 600, 660)}, // survives the shrink
		},
	}

	decision, err := newTestGuard(f).Evaluate(context.Background(), Change{
		Kind:    KindTemplateDay,
		Weekday: time.Monday,
		Windows: []model.TimeRange{{Start: 540, End: 720}},
	})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Len(t, decision.Conflicts, 2, "every blocking booking is reported")
}

func TestTemplateShrinkSkipsOverriddenDates(t *testing.T) {
	f := &fakeConfigStore{
		template: model.WeeklyTemplate{
			time.Monday: {{Start: 540, End: 1020}},
		},
		overrides: map[model.Date]*model.DateOverride{
			// This Monday runs on its own windows; the template edit does
			// not touch it.
			"2026-09-14": {Date: "2026-09-14", Windows: []model.TimeRange{{Start: 840, End: 960}}},
		},
		bookings: map[model.Date][]model.Booking{
			"2026-09-14": {booking("b1", "2026-09-14", 840, 900)},
		},
	}

	decision, err := newTestGuard(f).Evaluate(context.Background(), Change{
		Kind:    KindTemplateDay,
		Weekday: time.Monday,
		Windows: []model.TimeRange{{Start: 540, End: 720}},
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestOverrideSetBlockedByBooking(t *testing.T) {
	f := &fakeConfigStore{
		template: model.WeeklyTemplate{
			time.Monday: {{Start: 540, End: 1020}},
		},
		bookings: map[model.Date][]model.Booking{
			"2026-09-14": {booking("b1", "2026-09-14", 840, 900)},
		},
	}

	decision, err := newTestGuard(f).Evaluate(context.Background(), Change{
		Kind:    KindOverrideSet,
		Date:    "2026-09-14",
		Windows: []model.TimeRange{{Start: 540, End: 720}},
	})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	require.Len(t, decision.Conflicts, 1)
}

func TestOverrideSetAllowedWhenExpanding(t *testing.T) {
	f := &fakeConfigStore{
		template: model.WeeklyTemplate{
			time.Monday: {{Start: 540, End: 720}},
		},
		bookings: map[model.Date][]model.Booking{
			"2026-09-14": {booking("b1", "2026-09-14", 600, 660)},
		},
	}

	decision, err := newTestGuard(f).Evaluate(context.Background(), Change{
		Kind:    KindOverrideSet,
		Date:    "2026-09-14",
		Windows: []model.TimeRange{{Start: 480, End: 900}},
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestOverrideDeleteComparesAgainstTemplate(t *testing.T) {
	f := &fakeConfigStore{
		template: model.WeeklyTemplate{
			time.Monday: {{Start: 540, End: 720}}, // template: 09:00-12:00
		},
		overrides: map[model.Date]*model.DateOverride{
			// Extended hours this Monday; a booking sits in the extension.
			"2026-09-14": {Date: "2026-09-14", Windows: []model.TimeRange{{Start: 540, End: 1020}}},
		},
		bookings: map[model.Date][]model.Booking{
			"2026-09-14": {booking("b1", "2026-09-14", 840, 900)},
		},
	}

	decision, err := newTestGuard(f).Evaluate(context.Background(), Change{
		Kind: KindOverrideDelete,
		Date: "2026-09-14",
	})
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "deleting the override would strand the 14:00 booking")
}

func TestClosureCreateRequiresEmptyDates(t *testing.T) {
	f := &fakeConfigStore{
		template: model.WeeklyTemplate{
			time.Monday: {{Start: 540, End: 1020}},
		},
		bookings: map[model.Date][]model.Booking{
			"2026-09-14": {booking("b1", "2026-09-14", 600, 660)},
		},
	}
	g := newTestGuard(f)

	blocked, err := g.Evaluate(context.Background(), Change{
		Kind:  KindClosureCreate,
		Dates: []model.Date{"2026-09-14"},
	})
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)
	require.Len(t, blocked.Conflicts, 1)

	allowed, err := g.Evaluate(context.Background(), Change{
		Kind:  KindClosureCreate,
		Dates: []model.Date{"2026-09-15"},
	})
	require.NoError(t, err)
	assert.True(t, allowed.Allowed)
}

func TestRecurringClosureProjectsWeekday(t *testing.T) {
	f := &fakeConfigStore{
		template: model.WeeklyTemplate{
			time.Monday: {{Start: 540, End: 1020}},
		},
		bookings: map[model.Date][]model.Booking{
			// Third Monday in the lookahead window.
			"2026-09-21": {booking("b1", "2026-09-21", 600, 660)},
		},
	}

	decision, err := newTestGuard(f).Evaluate(context.Background(), Change{
		Kind:           KindClosureCreate,
		Recurring:      true,
		ClosureWeekday: time.Monday,
	})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestClosureDeleteAlwaysAllowed(t *testing.T) {
	f := &fakeConfigStore{
		bookings: map[model.Date][]model.Booking{
			"2026-09-14": {booking("b1", "2026-09-14", 600, 660)},
		},
	}

	decision, err := newTestGuard(f).Evaluate(context.Background(), Change{Kind: KindClosureDelete})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestUnknownChangeKind(t *testing.T) {
	_, err := newTestGuard(&fakeConfigStore{}).Evaluate(context.Background(), Change{Kind: "repaint"})
	assert.Error(t, err)
}
