package daterange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	secondsPerDay = 24 * 60 * 60
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
	ErrInvalidDate  = errors.New("daterange: invalid calendar date")
)

// DateRange represents a half-open interval of calendar dates [checkIn, checkOut).
// Both ends are kept at UTC midnight.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// New builds a range from two instants, keeping only their calendar dates.
// It fails with ErrInvalidRange unless checkIn is before checkOut.
func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}

// Format renders t as YYYY-MM-DD in UTC.
func Format(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts calendar days between the ends. Day numbers are used instead
// of time.Duration, which saturates after about 292 years.
func (dr DateRange) Nights() int {
	return int(DayNumber(dr.CheckOut) - DayNumber(dr.CheckIn))
}

// DayNumber is the number of days between the Unix epoch and t's calendar date.
func DayNumber(t time.Time) int64 {
	return Day(t).Unix() / secondsPerDay
}

// FromDayNumber is the inverse of DayNumber.
func FromDayNumber(n int64) time.Time {
	return time.Unix(n*secondsPerDay, 0).UTC()
}

// Dates lists every night of the stay; the checkout date is excluded.
func (dr DateRange) Dates() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	start := Day(dr.CheckIn)
	for i := 0; i < n; i++ {
		out = append(out, start.AddDate(0, 0, i))
	}
	return out
}

// Overlaps is false for back-to-back ranges.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

func (dr DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", Format(dr.CheckIn), Format(dr.CheckOut))
}
