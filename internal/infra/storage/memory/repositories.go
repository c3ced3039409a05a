package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

var errReadOnly = errors.New("memory: write in read-only unit")

type propertyRepository struct {
	store *Store
}

func (r propertyRepository) ByID(_ context.Context, id property.ID) (*property.Property, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.properties[id]
	if !ok {
		return nil, property.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type bookingRepository struct {
	unit *Unit
}

func (r bookingRepository) ByID(_ context.Context, id booking.BookingID) (*booking.Booking, error) {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil, ErrStoreClosed
	}
	if b, ok := u.bookings[id]; ok {
		return b.Clone(), nil
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	b, ok := u.store.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

// Save stages the booking. Its Version must equal the version visible to
// this unit; new bookings carry zero.
func (r bookingRepository) Save(_ context.Context, b *booking.Booking) error {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.ensureWritable(); err != nil {
		return err
	}
	var visible int64
	if staged, ok := u.bookings[b.ID]; ok {
		visible = staged.Version
	} else {
		u.store.mu.RLock()
		if committed, ok := u.store.bookings[b.ID]; ok {
			visible = committed.Version
		}
		u.store.mu.RUnlock()
	}
	if b.Version != visible {
		return uow.Retryable(booking.ErrVersionConflict)
	}
	next := b.Clone()
	next.Version = visible + 1
	u.bookings[b.ID] = next
	b.Version = next.Version
	return nil
}

// snapshot merges committed bookings with the unit's staged ones.
func (r bookingRepository) snapshot(keep func(*booking.Booking) bool) ([]*booking.Booking, error) {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil, ErrStoreClosed
	}
	u.store.mu.RLock()
	out := make([]*booking.Booking, 0)
	for id, b := range u.store.bookings {
		if _, staged := u.bookings[id]; staged {
			continue
		}
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	u.store.mu.RUnlock()
	for _, b := range u.bookings {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (r bookingRepository) ListByProperty(_ context.Context, id property.ID, filter booking.Filter) ([]*booking.Booking, int, error) {
	all, err := r.snapshot(func(b *booking.Booking) bool { return b.PropertyID == id })
	if err != nil {
		return nil, 0, err
	}
	items, total := booking.Page(all, filter)
	return items, total, nil
}

func (r bookingRepository) ListByUser(_ context.Context, userID string, filter booking.Filter) ([]*booking.Booking, int, error) {
	all, err := r.snapshot(func(b *booking.Booking) bool { return b.UserID == userID })
	if err != nil {
		return nil, 0, err
	}
	items, total := booking.Page(all, filter)
	return items, total, nil
}

func (r bookingRepository) ListBlocking(_ context.Context, id property.ID, window daterange.DateRange) ([]*booking.Booking, error) {
	zero := window == (daterange.DateRange{})
	out, err := r.snapshot(func(b *booking.Booking) bool {
		return b.PropertyID == id && b.Status.Blocking() && (zero || b.Range.Overlaps(window))
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.CheckIn.Before(out[j].Range.CheckIn) })
	return out, nil
}

func (r bookingRepository) ListApprovedEndingBefore(_ context.Context, cutoff time.Time, limit int) ([]*booking.Booking, error) {
	cutoff = daterange.Day(cutoff)
	out, err := r.snapshot(func(b *booking.Booking) bool {
		return b.Status == booking.StatusApproved && !b.Range.CheckOut.After(cutoff)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.CheckOut.Before(out[j].Range.CheckOut) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type overrideRepository struct {
	unit *Unit
}

func (r overrideRepository) lookup(k overrideKey) (*availability.Override, bool) {
	u := r.unit
	if _, gone := u.deleted[k]; gone {
		return nil, false
	}
	if o, ok := u.overrides[k]; ok {
		return o, true
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	o, ok := u.store.overrides[k]
	return o, ok
}

func (r overrideRepository) ListByProperty(_ context.Context, id property.ID, window daterange.DateRange) ([]*availability.Override, error) {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil, ErrStoreClosed
	}
	zero := window == (daterange.DateRange{})
	merged := make(map[overrideKey]*availability.Override)
	u.store.mu.RLock()
	for k, o := range u.store.overrides {
		if k.property == id {
			merged[k] = o
		}
	}
	u.store.mu.RUnlock()
	for k := range u.deleted {
		delete(merged, k)
	}
	for k, o := range u.overrides {
		if k.property == id {
			merged[k] = o
		}
	}
	out := make([]*availability.Override, 0, len(merged))
	for _, o := range merged {
		if zero || window.ContainsDate(o.Date) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r overrideRepository) Get(_ context.Context, id property.ID, date time.Time) (*availability.Override, error) {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil, ErrStoreClosed
	}
	o, ok := r.lookup(keyOf(id, date))
	if !ok {
		return nil, availability.ErrOverrideNotFound
	}
	return o.Clone(), nil
}

func (r overrideRepository) Save(_ context.Context, o *availability.Override) error {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.ensureWritable(); err != nil {
		return err
	}
	k := keyOf(o.PropertyID, o.Date)
	delete(u.deleted, k)
	u.overrides[k] = o.Clone()
	return nil
}

func (r overrideRepository) Delete(_ context.Context, id property.ID, date time.Time) error {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.ensureWritable(); err != nil {
		return err
	}
	k := keyOf(id, date)
	if _, ok := r.lookup(k); !ok {
		return availability.ErrOverrideNotFound
	}
	delete(u.overrides, k)
	u.deleted[k] = struct{}{}
	return nil
}

type unitOutbox struct {
	unit *Unit
}

func (o unitOutbox) Add(_ context.Context, rec outbox.EventRecord) error {
	u := o.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.ensureWritable(); err != nil {
		return err
	}
	u.records = append(u.records, rec)
	return nil
}
