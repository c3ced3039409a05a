package support

import (
	"context"
	"fmt"

	"staybook/internal/app/uow"
	"staybook/internal/domain/access"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

// LoadIndex builds the availability index of p from the unit's current state.
// A zero window loads every blocking stay and override of the property.
func LoadIndex(ctx context.Context, unit uow.UnitOfWork, p *property.Property, window daterange.DateRange) (*availability.Index, error) {
	bookings, err := unit.Bookings().ListBlocking(ctx, p.ID, window)
	if err != nil {
		return nil, err
	}
	overrides, err := unit.Overrides().ListByProperty(ctx, p.ID, window)
	if err != nil {
		return nil, err
	}
	stays := make([]availability.Stay, 0, len(bookings))
	for _, b := range bookings {
		stays = append(stays, b.Stay())
	}
	return availability.NewIndex(p, stays, overrides), nil
}

// ApprovedNights collects nights held by approved bookings of the property,
// leaving out the booking with id skip.
func ApprovedNights(ctx context.Context, unit uow.UnitOfWork, id property.ID, window daterange.DateRange, skip booking.BookingID) (availability.NightSet, error) {
	bookings, err := unit.Bookings().ListBlocking(ctx, id, window)
	if err != nil {
		return nil, err
	}
	nights := availability.NewNightSet()
	for _, b := range bookings {
		if b.ID == skip || b.Status != booking.StatusApproved {
			continue
		}
		nights.AddRange(b.Range)
	}
	return nights, nil
}

// OwnerOrAdmin fails with ErrUnauthorized unless the actor manages the property.
func OwnerOrAdmin(p *property.Property, actor access.Principal) error {
	if actor.IsAdmin() || p.IsOwnedBy(actor.UserID) {
		return nil
	}
	return fmt.Errorf("%w: property %s is managed by another owner", access.ErrUnauthorized, p.ID)
}
