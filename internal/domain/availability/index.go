package availability

import (
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type BlockReason string

const (
	ReasonBooking  BlockReason = "booking"
	ReasonOverride BlockReason = "override"
)

// Stay is a date range held by a booking in a blocking status.
type Stay struct {
	Reference string
	Range     daterange.DateRange
}

// NightStatus describes a single night as seen by the index.
type NightStatus struct {
	Date      time.Time
	Available bool
	Reason    BlockReason
	Reference string
	Price     money.Money
}

// Index answers availability and price questions for one property. It is
// built from store state inside the caller's transaction and discarded after.
type Index struct {
	property  *property.Property
	stays     []Stay
	overrides map[int64]*Override
}

// NewIndex indexes the blocking stays and overrides of p. Overrides that
// belong to another property are ignored; a later override for the same
// date replaces an earlier one.
func NewIndex(p *property.Property, stays []Stay, overrides []*Override) *Index {
	byDay := make(map[int64]*Override, len(overrides))
	for _, o := range overrides {
		if o == nil || o.PropertyID != p.ID {
			continue
		}
		byDay[dayKey(o.Date)] = o
	}
	return &Index{
		property:  p,
		stays:     append([]Stay(nil), stays...),
		overrides: byDay,
	}
}

// BlockedNights is the union of nights held by blocking stays and nights an
// override marks unavailable.
func (ix *Index) BlockedNights() NightSet {
	blocked := make(NightSet)
	for _, stay := range ix.stays {
		blocked.AddRange(stay.Range)
	}
	for key, o := range ix.overrides {
		if !o.Available {
			blocked[key] = struct{}{}
		}
	}
	return blocked
}

// NightlyPrice returns the override price for the date when set, else the base rate.
func (ix *Index) NightlyPrice(date time.Time) money.Money {
	if o, ok := ix.overrides[dayKey(date)]; ok && o.PriceOverride != nil {
		return *o.PriceOverride
	}
	return ix.property.NightlyRate
}

// Check returns ErrDateConflict when the candidate touches a blocked night.
// Check is CheckConflict against the index's blocked nights.
func (ix *Index) Check(candidate daterange.DateRange) error {
	return CheckConflict(ix.BlockedNights(), candidate)
}

// Nights describes every night of the window.
func (ix *Index) Nights(window daterange.DateRange) []NightStatus {
	dates := window.Dates()
	out := make([]NightStatus, 0, len(dates))
	for _, d := range dates {
		status := NightStatus{Date: d, Available: true, Price: ix.NightlyPrice(d)}
		if o, ok := ix.overrides[dayKey(d)]; ok && !o.Available {
			status.Available = false
			status.Reason = ReasonOverride
		}
		for _, stay := range ix.stays {
			if stay.Range.ContainsDate(d) {
				status.Available = false
				status.Reason = ReasonBooking
				status.Reference = stay.Reference
				break
			}
		}
		out = append(out, status)
	}
	return out
}
