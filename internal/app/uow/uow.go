package uow

import (
	"context"
	"time"

	"staybook/internal/app/outbox"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

// UnitOfWork is one transaction against the store. Repositories returned by it
// see the unit's own writes and nothing is visible to others before Commit.
type UnitOfWork interface {
	Properties() property.Repository
	Bookings() booking.Repository
	Overrides() availability.OverrideRepository
	Outbox() outbox.Outbox

	// LockProperty serializes check-then-act sequences on one property until
	// the unit commits or rolls back. Must be called before reading availability.
	LockProperty(ctx context.Context, id property.ID) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
	// Timeout bounds the whole unit; zero means no bound.
	Timeout time.Duration
}
