package memory

import (
	"context"
	"sync"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

// Unit stages writes until Commit. Reads see the unit's own staged writes
// layered over committed state.
type Unit struct {
	store    *Store
	readOnly bool

	mu        sync.Mutex
	done      bool
	bookings  map[booking.BookingID]*booking.Booking
	overrides map[overrideKey]*availability.Override
	deleted   map[overrideKey]struct{}
	records   []outbox.EventRecord
	held      []property.ID
}

func newUnit(s *Store, readOnly bool) *Unit {
	return &Unit{
		store:     s,
		readOnly:  readOnly,
		bookings:  make(map[booking.BookingID]*booking.Booking),
		overrides: make(map[overrideKey]*availability.Override),
		deleted:   make(map[overrideKey]struct{}),
	}
}

func (u *Unit) Properties() property.Repository {
	return propertyRepository{store: u.store}
}

func (u *Unit) Bookings() booking.Repository {
	return bookingRepository{unit: u}
}

func (u *Unit) Overrides() availability.OverrideRepository {
	return overrideRepository{unit: u}
}

func (u *Unit) Outbox() outbox.Outbox {
	return unitOutbox{unit: u}
}

// LockProperty acquires the property's semaphore for the rest of the unit.
// A context that expires while waiting yields uow.ErrRetryable.
func (u *Unit) LockProperty(ctx context.Context, id property.ID) error {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return ErrStoreClosed
	}
	for _, h := range u.held {
		if h == id {
			u.mu.Unlock()
			return nil
		}
	}
	u.mu.Unlock()

	sem := u.store.semaphoreFor(id)
	if err := sem.Acquire(ctx, 1); err != nil {
		return uow.Retryable(err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		sem.Release(1)
		return ErrStoreClosed
	}
	u.held = append(u.held, id)
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		u.finishLocked()
		return err
	}
	if !u.readOnly {
		s := u.store
		s.mu.Lock()
		for id, b := range u.bookings {
			s.bookings[id] = b
		}
		for k := range u.deleted {
			delete(s.overrides, k)
		}
		for k, o := range u.overrides {
			s.overrides[k] = o
		}
		s.mu.Unlock()
		s.outbox.append(u.records...)
	}
	u.finishLocked()
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.finishLocked()
	return nil
}

func (u *Unit) finishLocked() {
	u.done = true
	for _, id := range u.held {
		u.store.semaphoreFor(id).Release(1)
	}
	u.held = nil
	u.bookings = nil
	u.overrides = nil
	u.deleted = nil
	u.records = nil
}

func (u *Unit) ensureWritable() error {
	if u.done {
		return ErrStoreClosed
	}
	if u.readOnly {
		return uow.StorageFailure(errReadOnly)
	}
	return nil
}

var _ uow.UnitOfWork = (*Unit)(nil)
