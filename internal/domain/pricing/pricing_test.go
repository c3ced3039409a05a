package pricing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var now = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func mustRange(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	ci, err := daterange.ParseDate(in)
	require.NoError(t, err)
	co, err := daterange.ParseDate(out)
	require.NoError(t, err)
	dr, err := daterange.New(ci, co)
	require.NoError(t, err)
	return dr
}

func prop() *property.Property {
	return &property.Property{ID: "p-1", OwnerID: "o-1", NightlyRate: money.Must(10000, "USD"), MaxGuests: 2, Active: true}
}

func TestComputeTotal_BaseRate(t *testing.T) {
	p := prop()
	dr := mustRange(t, "2024-01-10", "2024-01-13")

	q, err := pricing.ComputeTotal(p, dr, availability.NewIndex(p, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, 3, q.Nights)
	assert.Equal(t, int64(30000), q.Total.Amount)
	assert.Equal(t, "USD", q.Total.Currency)
	assert.Len(t, q.Lines, 3)
}

func TestComputeTotal_WithOverride(t *testing.T) {
	p := prop()
	dr := mustRange(t, "2024-01-10", "2024-01-13")
	price := money.Must(5000, "USD")
	o, err := availability.NewOverride(availability.SetOverrideParams{
		PropertyID: p.ID, Date: dr.CheckIn.AddDate(0, 0, 1), Available: true, PriceOverride: &price, Now: now,
	})
	require.NoError(t, err)

	q, err := pricing.ComputeTotal(p, dr, availability.NewIndex(p, nil, []*availability.Override{o}))
	require.NoError(t, err)
	assert.Equal(t, int64(25000), q.Total.Amount)
	assert.Equal(t, int64(5000), q.Lines[1].Price.Amount)
}

func TestComputeTotal_CurrencyMismatch(t *testing.T) {
	p := prop()
	dr := mustRange(t, "2024-01-10", "2024-01-12")
	price := money.Must(5000, "EUR")
	o, err := availability.NewOverride(availability.SetOverrideParams{PropertyID: p.ID, Date: dr.CheckIn, Available: true, PriceOverride: &price, Now: now})
	require.NoError(t, err)

	_, err = pricing.ComputeTotal(p, dr, availability.NewIndex(p, nil, []*availability.Override{o}))
	assert.ErrorIs(t, err, money.ErrCurrencyMismatch)
}

func TestValidateRequest(t *testing.T) {
	p := prop()
	valid := mustRange(t, "2024-01-10", "2024-01-12")
	inverted := daterange.DateRange{CheckIn: valid.CheckOut, CheckOut: valid.CheckIn}
	past := mustRange(t, "2023-12-30", "2024-01-02")

	tests := []struct {
		name   string
		dr     daterange.DateRange
		guests int
		want   error
	}{
		{name: "ok", dr: valid, guests: 2},
		{name: "check-in today", dr: mustRange(t, "2024-01-01", "2024-01-02"), guests: 1},
		{name: "too many guests", dr: valid, guests: 3, want: pricing.ErrCapacityExceeded},
		{name: "too many guests with bad dates", dr: inverted, guests: 5, want: pricing.ErrCapacityExceeded},
		{name: "no guests", dr: valid, guests: 0, want: pricing.ErrInvalidGuests},
		{name: "inverted range", dr: inverted, guests: 1, want: daterange.ErrInvalidRange},
		{name: "past check-in", dr: past, guests: 1, want: pricing.ErrCheckInInPast},
		{name: "longest stay", dr: mustRange(t, "2024-01-10", "2026-01-09"), guests: 1},
		{name: "stay too long", dr: mustRange(t, "2024-01-10", "2026-01-10"), guests: 1, want: pricing.ErrStayTooLong},
		{name: "centuries long stay", dr: mustRange(t, "2024-07-01", "2500-01-01"), guests: 1, want: daterange.ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pricing.ValidateRequest(p, tt.dr, tt.guests, now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheckInInPastIsInvalidRange(t *testing.T) {
	assert.ErrorIs(t, pricing.ErrCheckInInPast, daterange.ErrInvalidRange)
}
