package model

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TimeOfDay is a wall-clock minute of day in [0, 1440).
// It is timezone-naive: the business timezone gives it meaning.
type TimeOfDay int

const MinutesPerDay = 1440

var timeOfDayRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ParseTimeOfDay parses a strict zero-padded "HH:MM" string. Anything
// else, including trailing characters, is an input error.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if !timeOfDayRe.MatchString(s) {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hour, _ := strconv.Atoi(s[:2])
	minute, _ := strconv.Atoi(s[3:])
	return TimeOfDay(hour*60 + minute), nil
}

// Minutes returns the minute-of-day value.
func (t TimeOfDay) Minutes() int { return int(t) }

// Valid reports whether t is within a single day.
func (t TimeOfDay) Valid() bool { return t >= 0 && t < MinutesPerDay }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON serializes as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON parses a quoted "HH:MM" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid time value %s", data)
	}
	parsed, err := ParseTimeOfDay(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeRange is a half-open [Start, End) interval within one calendar day.
// Invariant: Start < End; ranges never span midnight.
type TimeRange struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Valid reports whether the range respects its invariant.
func (r TimeRange) Valid() bool {
	return r.Start.Valid() && r.End > r.Start && r.End <= MinutesPerDay
}

// Duration returns the range length in minutes.
func (r TimeRange) Duration() int { return int(r.End - r.Start) }

// Contains reports whether [start, end) lies entirely inside the range.
func (r TimeRange) Contains(start, end TimeOfDay) bool {
	return start >= r.Start && end <= r.End
}

// Overlaps reports whether two half-open ranges intersect.
// Touching boundaries (r.End == other.Start) do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && other.Start < r.End
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Date is a civil calendar date in "YYYY-MM-DD" form, timezone-naive.
type Date string

const dateLayout = "2006-01-02"

// ParseDate validates a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date(s), nil
}

// DateOf extracts the civil date of a time instant.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Weekday returns the day of week. Civil dates map to the same weekday
// regardless of timezone.
func (d Date) Weekday() time.Weekday {
	t, _ := time.Parse(dateLayout, string(d))
	return t.Weekday()
}

// Time anchors the date at the given time of day in loc.
func (d Date) Time(t TimeOfDay, loc *time.Location) time.Time {
	day, _ := time.ParseInLocation(dateLayout, string(d), loc)
	return day.Add(time.Duration(t) * time.Minute)
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	t, _ := time.Parse(dateLayout, string(d))
	return Date(t.AddDate(0, 0, n).Format(dateLayout))
}

func (d Date) String() string { return string(d) }
