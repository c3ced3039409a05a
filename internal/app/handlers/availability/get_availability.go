package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

const (
	getAvailabilityKey = "availability.get"
	MaxWindowNights    = 366
	defaultWindowDays  = 30
)

var ErrWindowTooLarge = fmt.Errorf("%w: window exceeds %d nights", daterange.ErrInvalidRange, MaxWindowNights)

// GetAvailabilityQuery asks for per-night status in [From, To). A zero From
// means today and a zero To means thirty nights after From.
type GetAvailabilityQuery struct {
	PropertyID string `validate:"required"`
	From       time.Time
	To         time.Time
}

func (q GetAvailabilityQuery) Key() string { return getAvailabilityKey }

type GetAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *GetAvailabilityHandler) Handle(ctx context.Context, q GetAvailabilityQuery) (dto.Availability, error) {
	window, err := h.window(q)
	if err != nil {
		return dto.Availability{}, err
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	prop, err := unit.Properties().ByID(execCtx, property.ID(strings.TrimSpace(q.PropertyID)))
	if err != nil {
		return dto.Availability{}, err
	}
	index, err := support.LoadIndex(execCtx, unit, prop, window)
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.MapAvailability(prop.ID, window, index.Nights(window)), nil
}

func (h *GetAvailabilityHandler) window(q GetAvailabilityQuery) (daterange.DateRange, error) {
	from := q.From
	if from.IsZero() {
		now := time.Now()
		if h.Now != nil {
			now = h.Now()
		}
		from = now.UTC()
	}
	from = daterange.Day(from)
	to := q.To
	if to.IsZero() {
		to = from.AddDate(0, 0, defaultWindowDays)
	}
	window, err := daterange.New(from, to)
	if err != nil {
		return daterange.DateRange{}, err
	}
	if window.Nights() > MaxWindowNights {
		return daterange.DateRange{}, ErrWindowTooLarge
	}
	return window, nil
}

var _ queries.Handler[GetAvailabilityQuery, dto.Availability] = (*GetAvailabilityHandler)(nil)
