package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := ParseDate(raw)
	require.NoError(t, err)
	return d
}

func TestNew_NormalizesToCalendarDates(t *testing.T) {
	in := time.Date(2024, 1, 1, 15, 30, 0, 0, time.FixedZone("x", 3*3600))
	out := time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)

	dr, err := New(in, out)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), dr.CheckIn)
	assert.Equal(t, 3, dr.Nights())
}

func TestNew_RejectsEmptyAndInvertedRanges(t *testing.T) {
	d := date(t, "2024-01-05")

	_, err := New(d, d)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(d, d.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(time.Time{}, d)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestDates_ExcludesCheckout(t *testing.T) {
	dr, err := New(date(t, "2024-01-30"), date(t, "2024-02-02"))
	require.NoError(t, err)

	got := dr.Dates()

	require.Len(t, got, 3)
	assert.Equal(t, "2024-01-30", Format(got[0]))
	assert.Equal(t, "2024-02-01", Format(got[2]))
	assert.False(t, dr.ContainsDate(date(t, "2024-02-02")))
}

func TestOverlaps_HalfOpen(t *testing.T) {
	a, _ := New(date(t, "2024-01-01"), date(t, "2024-01-05"))
	backToBack, _ := New(date(t, "2024-01-05"), date(t, "2024-01-10"))
	overlapping, _ := New(date(t, "2024-01-04"), date(t, "2024-01-08"))

	assert.False(t, a.Overlaps(backToBack))
	assert.True(t, a.Overlaps(overlapping))
	assert.True(t, overlapping.Overlaps(a))
}

func TestNights_CenturiesLongRange(t *testing.T) {
	dr, err := New(date(t, "2024-07-01"), date(t, "2500-01-01"))
	require.NoError(t, err)

	// Past the ~292 year limit of time.Duration.
	assert.Equal(t, 173674, dr.Nights())
	dates := dr.Dates()
	require.Len(t, dates, 173674)
	assert.Equal(t, "2499-12-31", Format(dates[len(dates)-1]))
}

func TestDayNumber_RoundTrip(t *testing.T) {
	for _, raw := range []string{"1969-12-31", "1970-01-01", "2024-02-29", "2400-01-04"} {
		d := date(t, raw)
		assert.Equal(t, d, FromDayNumber(DayNumber(d)), raw)
	}
	assert.Equal(t, int64(-1), DayNumber(date(t, "1969-12-31")))
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("2024-13-01")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("  ")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
