package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

var (
	ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")
	ErrUnitFinished            = errors.New("postgres: unit already finished")
)

// Factory opens SERIALIZABLE transactions.
type Factory struct {
	DB *sql.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx, err := f.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, classify(err)
	}
	return &Unit{tx: tx, readOnly: opts.ReadOnly}, nil
}

type Unit struct {
	tx       *sql.Tx
	readOnly bool

	mu       sync.Mutex
	locked   map[property.ID]struct{}
	finished bool
}

func (u *Unit) Properties() property.Repository { return propertyRepository{unit: u} }
func (u *Unit) Bookings() booking.Repository { return bookingRepository{unit: u} }
func (u *Unit) Overrides() availability.OverrideRepository { return overrideRepository{unit: u} }
func (u *Unit) Outbox() outbox.Outbox { return unitOutbox{unit: u} }

const lockPropertySQL = `
INSERT INTO property_locks (property_id, seq, locked_at) VALUES ($1, 1, NOW())
ON CONFLICT (property_id) DO UPDATE SET seq = property_locks.seq + 1, locked_at = NOW()`

// LockProperty bumps the property's lock row. A concurrent transaction blocks
// on the row and then fails with a serialization error once the holder commits.
func (u *Unit) LockProperty(ctx context.Context, id property.ID) error {
	u.mu.Lock()
	_, held := u.locked[id]
	u.mu.Unlock()
	if held {
		return nil
	}
	if u.readOnly {
		// Read-only SERIALIZABLE units already see a consistent snapshot.
		return nil
	}
	if _, err := u.tx.ExecContext(ctx, lockPropertySQL, string(id)); err != nil {
		return classify(err)
	}
	u.mu.Lock()
	if u.locked == nil {
		u.locked = make(map[property.ID]struct{})
	}
	u.locked[id] = struct{}{}
	u.mu.Unlock()
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if !u.finish() {
		return ErrUnitFinished
	}
	if err := u.tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if !u.finish() {
		return nil
	}
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return classify(err)
	}
	return nil
}

func (u *Unit) finish() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return false
	}
	u.finished = true
	return true
}

func (u *Unit) ensureWritable() error {
	if u.readOnly {
		return uow.StorageFailure(errReadOnly)
	}
	return nil
}

var errReadOnly = errors.New("postgres: write in read-only unit")

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)
