package mongo

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	driversession "go.mongodb.org/mongo-driver/x/mongo/driver/session"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database
}

var (
	ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")
	ErrUnitFinished            = errors.New("mongo: unit already finished")
)

// Begin starts a session with a snapshot transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, classify(err)
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, classify(err)
	}
	return &Unit{db: f.DB, session: session, readOnly: opts.ReadOnly}, nil
}

type Unit struct {
	db       *mongo.Database
	session  mongo.Session
	readOnly bool

	mu       sync.Mutex
	locked   map[property.ID]struct{}
	finished bool
}

// sc binds ctx to the unit's session whether or not the caller injected it.
func (u *Unit) sc(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

func (u *Unit) Properties() property.Repository {
	return propertyRepository{col: u.db.Collection(colProperties), unit: u}
}

func (u *Unit) Bookings() booking.Repository {
	return bookingRepository{col: u.db.Collection(colBookings), unit: u}
}

func (u *Unit) Overrides() availability.OverrideRepository {
	return overrideRepository{col: u.db.Collection(colOverrides), unit: u}
}

func (u *Unit) Outbox() outbox.Outbox {
	return unitOutbox{col: u.db.Collection(colOutbox), unit: u}
}

// LockProperty bumps the property's lock document inside the transaction. A
// second transaction touching the same document fails with a write conflict,
// which surfaces as uow.ErrRetryable.
func (u *Unit) LockProperty(ctx context.Context, id property.ID) error {
	u.mu.Lock()
	if _, ok := u.locked[id]; ok {
		u.mu.Unlock()
		return nil
	}
	u.mu.Unlock()
	_, err := u.db.Collection(colLocks).UpdateOne(u.sc(ctx),
		bson.M{"_id": string(id)},
		bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"locked_at": time.Now().UTC()}},
		options.Update().SetUpsert(true))
	if err != nil {
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
	defer u.session.EndSession(context.WithoutCancel(ctx))
	if err := u.session.CommitTransaction(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if !u.finish() {
		return nil
	}
	defer u.session.EndSession(ctx)
	if err := u.session.AbortTransaction(ctx); err != nil && !errors.Is(err, driversession.ErrAbortAfterCommit) {
		return classify(err)
	}
	return nil
}

// finish reports whether this call ended the unit.
func (u *Unit) finish() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return false
	}
	u.finished = true
	return true
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return u.sc(ctx)
}

func (u *Unit) ensureWritable() error {
	if u.readOnly {
		return uow.StorageFailure(errReadOnly)
	}
	return nil
}

var errReadOnly = errors.New("mongo: write in read-only unit")

var (
	_ uow.UoWFactory      = Factory{}
	_ uow.UnitOfWork      = (*Unit)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
