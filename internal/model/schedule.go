package model

import "time"

// WeeklyTemplate is the default recurring schedule: open windows per weekday.
// A weekday with no entry (or an empty list) has no availability by default.
type WeeklyTemplate map[time.Weekday][]TimeRange

// WindowsFor returns the template windows for a weekday.
func (t WeeklyTemplate) WindowsFor(day time.Weekday) []TimeRange {
	return t[day]
}

// DateOverride replaces the template's windows for a single date.
// An override with zero windows means "closed this date".
type DateOverride struct {
	Date    Date        `json:"date"`
	Windows []TimeRange `json:"windows"`
}

// Closure blocks one or more dates from booking entirely.
// A recurring closure additionally blocks every date falling on Weekday.
type Closure struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Dates     []Date       `json:"dates"`
	Recurring bool         `json:"recurring"`
	Weekday   time.Weekday `json:"weekday,omitempty"`
}

// Covers reports whether the closure blocks the given date.
func (c Closure) Covers(d Date) bool {
	if c.Recurring && d.Weekday() == c.Weekday {
		return true
	}
	for _, cd := range c.Dates {
		if cd == d {
			return true
		}
	}
	return false
}
