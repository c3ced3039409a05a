package pricing

import (
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var (
	ErrCapacityExceeded = errors.New("pricing: guest count exceeds property capacity")
	ErrInvalidGuests    = errors.New("pricing: guest count must be positive")
	ErrCheckInInPast    = fmt.Errorf("%w: check-in is in the past", daterange.ErrInvalidRange)
	ErrCurrencyUnset    = errors.New("pricing: currency must be defined")
	ErrStayTooLong      = fmt.Errorf("%w: stay is too long", daterange.ErrInvalidRange)
)

// MaxStayNights bounds a single booking.
const MaxStayNights = 730

// NightlyPricer resolves the price of one night. availability.Index implements it.
type NightlyPricer interface {
	NightlyPrice(date time.Time) money.Money
}

// Line is the price of one night.
type Line struct {
	Date  time.Time
	Price money.Money
}

// Quote is the server-computed price of a stay.
type Quote struct {
	Nights int
	Lines  []Line
	Total  money.Money
}

// ValidateRequest checks a booking request before any store access. Capacity is
// checked first so an oversized party always fails the same way.
func ValidateRequest(p *property.Property, dr daterange.DateRange, guests int, now time.Time) error {
	if p == nil {
		return property.ErrNotFound
	}
	if guests > p.MaxGuests {
		return fmt.Errorf("%w: %d guests, max %d", ErrCapacityExceeded, guests, p.MaxGuests)
	}
	if guests < 1 {
		return ErrInvalidGuests
	}
	if err := dr.Validate(); err != nil {
		return err
	}
	if n := dr.Nights(); n > MaxStayNights {
		return fmt.Errorf("%w: %d nights, max %d", ErrStayTooLong, n, MaxStayNights)
	}
	if dr.CheckIn.Before(daterange.Day(now.UTC())) {
		return ErrCheckInInPast
	}
	return nil
}

// ComputeTotal sums the nightly price of every night in [CheckIn, CheckOut).
func ComputeTotal(p *property.Property, dr daterange.DateRange, pricer NightlyPricer) (Quote, error) {
	if p == nil {
		return Quote{}, property.ErrNotFound
	}
	if err := dr.Validate(); err != nil {
		return Quote{}, err
	}
	if p.NightlyRate.Currency == "" {
		return Quote{}, ErrCurrencyUnset
	}
	dates := dr.Dates()
	q := Quote{
		Nights: len(dates),
		Lines:  make([]Line, 0, len(dates)),
		Total:  money.Zero(p.NightlyRate.Currency),
	}
	for _, d := range dates {
		price := p.NightlyRate
		if pricer != nil {
			price = pricer.NightlyPrice(d)
		}
		total, err := q.Total.Add(price)
		if err != nil {
			return Quote{}, fmt.Errorf("pricing: night %s: %w", daterange.Format(d), err)
		}
		q.Total = total
		q.Lines = append(q.Lines, Line{Date: d, Price: price})
	}
	return q, nil
}
