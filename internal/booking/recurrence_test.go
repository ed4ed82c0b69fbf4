package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestExpandDaily(t *testing.T) {
	base := iv("2024-01-01T09:00:00Z", "2024-01-01T10:00:00Z")
	got, err := Expand(base, RecurrenceSpec{Pattern: PatternDaily, EndDate: date("2024-01-04T00:00:00Z")})
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, occ := range got {
		assert.Equal(t, base.Start.AddDate(0, 0, i), occ.Start)
		assert.Equal(t, time.Hour, occ.Duration())
	}
}

func TestExpandWeekly(t *testing.T) {
	// Monday 2024-01-01 09:00-10:00, Mondays and Wednesdays, through 2024-01-10.
	// 01-10 is a Wednesday and is included: the end date bounds occurrence
	// starts inclusively at day granularity.
	base := iv("2024-01-01T09:00:00Z", "2024-01-01T10:00:00Z")
	spec := RecurrenceSpec{
		Pattern:    PatternWeekly,
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday},
		EndDate:    date("2024-01-10T00:00:00Z"),
	}
	got, err := Expand(base, spec)
	require.NoError(t, err)
	wantStarts := []string{
		"2024-01-01T09:00:00Z",
		"2024-01-03T09:00:00Z",
		"2024-01-08T09:00:00Z",
		"2024-01-10T09:00:00Z",
	}
	require.Len(t, got, len(wantStarts))
	for i, w := range wantStarts {
		assert.Equal(t, date(w), got[i].Start)
		assert.Equal(t, date(w).Add(time.Hour), got[i].End)
	}
}

func TestExpandMonthlySkipsShortMonths(t *testing.T) {
	// Anchored on the 31st: February, April and June produce no occurrence.
	base := iv("2024-01-31T14:00:00Z", "2024-01-31T15:30:00Z")
	got, err := Expand(base, RecurrenceSpec{Pattern: PatternMonthly, EndDate: date("2024-06-30T00:00:00Z")})
	require.NoError(t, err)
	wantStarts := []string{
		"2024-01-31T14:00:00Z",
		"2024-03-31T14:00:00Z",
		"2024-05-31T14:00:00Z",
	}
	require.Len(t, got, len(wantStarts))
	for i, w := range wantStarts {
		assert.Equal(t, date(w), got[i].Start)
		assert.Equal(t, 90*time.Minute, got[i].Duration())
	}
}

func TestExpandDeterministicAndOrdered(t *testing.T) {
	base := iv("2024-01-01T09:00:00Z", "2024-01-01T10:00:00Z")
	spec := RecurrenceSpec{
		Pattern:    PatternWeekly,
		DaysOfWeek: []time.Weekday{time.Friday, time.Monday},
		EndDate:    date("2024-02-29T00:00:00Z"),
	}
	first, err := Expand(base, spec)
	require.NoError(t, err)
	second, err := Expand(base, spec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].Start.Before(first[i].Start), "occurrences must ascend")
	}
}

func TestExpandErrors(t *testing.T) {
	base := iv("2024-01-01T09:00:00Z", "2024-01-01T10:00:00Z")

	_, err := Expand(Interval{Start: base.End, End: base.Start}, RecurrenceSpec{Pattern: PatternDaily, EndDate: date("2024-01-05T00:00:00Z")})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = Expand(base, RecurrenceSpec{Pattern: "YEARLY", EndDate: date("2024-01-05T00:00:00Z")})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = Expand(base, RecurrenceSpec{Pattern: PatternDaily, EndDate: date("2023-12-31T00:00:00Z")})
	assert.ErrorIs(t, err, ErrEndBeforeStart)

	_, err = Expand(base, RecurrenceSpec{Pattern: PatternWeekly, EndDate: date("2024-01-05T00:00:00Z")})
	assert.ErrorIs(t, err, ErrNoWeekdays)
}

func TestExpandEndDateSameDay(t *testing.T) {
	// A single-day recurrence where the end date equals the start date yields
	// exactly the base occurrence.
	base := iv("2024-01-01T09:00:00Z", "2024-01-01T10:00:00Z")
	got, err := Expand(base, RecurrenceSpec{Pattern: PatternDaily, EndDate: date("2024-01-01T00:00:00Z")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, base, got[0])
}
