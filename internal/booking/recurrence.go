package booking

import (
	"errors"
	"time"
)

// Pattern enumerates the supported recurrence frequencies.
type Pattern string

const (
	// PatternDaily generates one occurrence per calendar day.
	PatternDaily Pattern = "DAILY"
	// PatternWeekly generates occurrences on the selected weekdays.
	PatternWeekly Pattern = "WEEKLY"
	// PatternMonthly generates occurrences on the base start's day of month.
	PatternMonthly Pattern = "MONTHLY"
)

// ParsePattern validates a raw pattern string.
func ParsePattern(s string) (Pattern, bool) {
	switch Pattern(s) {
	case PatternDaily, PatternWeekly, PatternMonthly:
		return Pattern(s), true
	}
	return "", false
}

// RecurrenceSpec captures a recurring booking request.  DaysOfWeek is only
// consulted for WEEKLY patterns (0 = Sunday .. 6 = Saturday, matching
// time.Weekday).  EndDate bounds the *start* of the last occurrence and is
// inclusive at calendar-day granularity: an occurrence starting any time on
// the end date is kept.
type RecurrenceSpec struct {
	Pattern    Pattern
	DaysOfWeek []time.Weekday
	EndDate    time.Time
}

var (
	// ErrInvalidInterval indicates the base interval has start >= end.
	ErrInvalidInterval = errors.New("booking: interval start must be before end")
	// ErrInvalidPattern indicates an unsupported recurrence pattern.
	ErrInvalidPattern = errors.New("booking: invalid recurrence pattern")
	// ErrEndBeforeStart indicates the recurrence end date precedes the base start date.
	ErrEndBeforeStart = errors.New("booking: recurrence end date before start date")
	// ErrNoWeekdays indicates a WEEKLY pattern without any selected weekday.
	ErrNoWeekdays = errors.New("booking: weekly recurrence requires at least one weekday")
)

// Expand materializes the ordered occurrence list for a recurring request.
// The time-of-day and duration of the base interval are preserved; a cursor
// walks day by day from the base start's date through the end date and each
// date is included or skipped according to the pattern:
//
//   - DAILY: every date.
//   - WEEKLY: dates whose weekday is in DaysOfWeek.
//   - MONTHLY: dates whose day-of-month equals the base start's day of
//     month.  Months without that day simply produce no occurrence.
//
// The result is ascending by start time and a pure function of its inputs.
func Expand(base Interval, spec RecurrenceSpec) ([]Interval, error) {
	if !base.Valid() {
		return nil, ErrInvalidInterval
	}
	if _, ok := ParsePattern(string(spec.Pattern)); !ok {
		return nil, ErrInvalidPattern
	}

	loc := base.Start.Location()
	cursor := dateOf(base.Start, loc)
	endDay := dateOf(spec.EndDate.In(loc), loc)
	if endDay.Before(cursor) {
		return nil, ErrEndBeforeStart
	}

	weekdays := make(map[time.Weekday]struct{}, len(spec.DaysOfWeek))
	for _, d := range spec.DaysOfWeek {
		weekdays[d] = struct{}{}
	}
	if spec.Pattern == PatternWeekly && len(weekdays) == 0 {
		return nil, ErrNoWeekdays
	}

	anchorDay := base.Start.Day()
	duration := base.Duration()

	var out []Interval
	for !cursor.After(endDay) {
		include := false
		switch spec.Pattern {
		case PatternDaily:
			include = true
		case PatternWeekly:
			_, include = weekdays[cursor.Weekday()]
		case PatternMonthly:
			include = cursor.Day() == anchorDay
		}
		if include {
			start := combineDateTime(cursor, base.Start, loc)
			out = append(out, Interval{Start: start, End: start.Add(duration)})
		}
		cursor = cursor.AddDate(0, 0, 1)
	}
	return out, nil
}

// dateOf truncates t to midnight of its calendar day in loc.
func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// combineDateTime builds a timestamp from the date of one value and the
// time-of-day of another.
func combineDateTime(dateSource, timeSource time.Time, loc *time.Location) time.Time {
	y, m, d := dateSource.In(loc).Date()
	ts := timeSource.In(loc)
	return time.Date(y, m, d, ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), loc)
}
