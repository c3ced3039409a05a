package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

var ErrStoreClosed = errors.New("memory: unit already finished")

type overrideKey struct {
	property property.ID
	day      string
}

func keyOf(id property.ID, date time.Time) overrideKey {
	return overrideKey{property: id, day: daterange.Format(date)}
}

// Store is the committed state shared by all units. Units stage their writes
// and apply them under mu on commit.
type Store struct {
	mu         sync.RWMutex
	properties map[property.ID]*property.Property
	bookings   map[booking.BookingID]*booking.Booking
	overrides  map[overrideKey]*availability.Override
	outbox     *Outbox

	locksMu sync.Mutex
	locks   map[property.ID]*semaphore.Weighted
}

func NewStore() *Store {
	return &Store{
		properties: make(map[property.ID]*property.Property),
		bookings:   make(map[booking.BookingID]*booking.Booking),
		overrides:  make(map[overrideKey]*availability.Override),
		outbox:     NewOutbox(),
		locks:      make(map[property.ID]*semaphore.Weighted),
	}
}

// Outbox returns the committed outbox relay source.
func (s *Store) Outbox() *Outbox {
	return s.outbox
}

// SaveProperty seeds a property record. Properties are owned elsewhere, so
// there is no transactional write path for them.
func (s *Store) SaveProperty(_ context.Context, p *property.Property) error {
	if p == nil {
		return errors.New("memory: nil property")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	cp := *p
	s.mu.Lock()
	s.properties[p.ID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *Store) semaphoreFor(id property.ID) *semaphore.Weighted {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	sem, ok := s.locks[id]
	if !ok {
		sem = semaphore.NewWeighted(1)
		s.locks[id] = sem
	}
	return sem
}

// Factory opens units over one Store.
type Factory struct {
	Store *Store
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newUnit(f.Store, opts.ReadOnly), nil
}

var _ uow.UoWFactory = Factory{}
var _ property.Writer = propertyWriter{}

type propertyWriter struct{ s *Store }

func (w propertyWriter) Save(ctx context.Context, p *property.Property) error {
	return w.s.SaveProperty(ctx, p)
}

// PropertyWriter exposes SaveProperty as a property.Writer for fixture loaders.
func (s *Store) PropertyWriter() property.Writer {
	return propertyWriter{s: s}
}
