package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

var (
	ErrOverrideNotFound = errors.New("availability: override not found")
	ErrOverrideDate     = errors.New("availability: override date is required")
	ErrOverridePrice    = errors.New("availability: price override must be positive")
)

// Override is an owner-set exception for one night: blocked, re-priced, or both.
type Override struct {
	PropertyID    property.ID
	Date          time.Time
	Available     bool
	PriceOverride *money.Money
	UpdatedBy     string
	UpdatedAt     time.Time
	events.EventRecorder
}

// OverrideRepository persists overrides keyed by (property, date).
// A zero window passed to ListByProperty returns every override of the property.
type OverrideRepository interface {
	ListByProperty(ctx context.Context, id property.ID, window daterange.DateRange) ([]*Override, error)
	Get(ctx context.Context, id property.ID, date time.Time) (*Override, error)
	Save(ctx context.Context, o *Override) error
	Delete(ctx context.Context, id property.ID, date time.Time) error
}

type SetOverrideParams struct {
	PropertyID    property.ID
	Date          time.Time
	Available     bool
	PriceOverride *money.Money
	UpdatedBy     string
	Now           time.Time
}

func NewOverride(params SetOverrideParams) (*Override, error) {
	if strings.TrimSpace(string(params.PropertyID)) == "" {
		return nil, property.ErrNotFound
	}
	if params.Date.IsZero() {
		return nil, ErrOverrideDate
	}
	var price *money.Money
	if params.PriceOverride != nil {
		if params.PriceOverride.Amount <= 0 || params.PriceOverride.Currency == "" {
			return nil, ErrOverridePrice
		}
		p := *params.PriceOverride
		price = &p
	}
	now := params.Now.UTC()
	o := &Override{
		PropertyID:    params.PropertyID,
		Date:          daterange.Day(params.Date),
		Available:     params.Available,
		PriceOverride: price,
		UpdatedBy:     params.UpdatedBy,
		UpdatedAt:     now,
	}
	o.Record(OverrideSet{
		PropertyID:    string(o.PropertyID),
		Date:          daterange.Format(o.Date),
		Available:     o.Available,
		PriceOverride: price,
		At:            now,
	})
	return o, nil
}

// MarkRemoved records the removal event; the caller deletes the record.
func (o *Override) MarkRemoved(by string, now time.Time) {
	o.Record(OverrideRemoved{
		PropertyID: string(o.PropertyID),
		Date:       daterange.Format(o.Date),
		RemovedBy:  by,
		At:         now.UTC(),
	})
}

func (o *Override) Clone() *Override {
	if o == nil {
		return nil
	}
	c := &Override{
		PropertyID: o.PropertyID,
		Date:       o.Date,
		Available:  o.Available,
		UpdatedBy:  o.UpdatedBy,
		UpdatedAt:  o.UpdatedAt,
	}
	if o.PriceOverride != nil {
		p := *o.PriceOverride
		c.PriceOverride = &p
	}
	return c
}
