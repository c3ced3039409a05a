package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

func day(s string) time.Time {
	t, err := daterange.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.SaveProperty(context.Background(), &property.Property{
		ID:          "p-1",
		OwnerID:     "owner-1",
		Title:       "Cabin",
		NightlyRate: money.Must(10000, "USD"),
		MaxGuests:   4,
		Active:      true,
	}))
	return s
}

func newBooking(t *testing.T, id, in, out string) *booking.Booking {
	t.Helper()
	b, err := booking.NewBooking(booking.CreateParams{
		ID:         booking.BookingID(id),
		PropertyID: "p-1",
		UserID:     "guest-1",
		Range:      daterange.DateRange{CheckIn: day(in), CheckOut: day(out)},
		Guests:     2,
		Total:      money.Must(20000, "USD"),
		CreatedAt:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return b
}

func begin(t *testing.T, s *Store, readOnly bool) uow.UnitOfWork {
	t.Helper()
	unit, err := Factory{Store: s}.Begin(context.Background(), uow.TxOptions{ReadOnly: readOnly})
	require.NoError(t, err)
	return unit
}

func TestUnit_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	unit := begin(t, s, false)
	require.NoError(t, unit.LockProperty(ctx, "p-1"))
	require.NoError(t, unit.Bookings().Save(ctx, newBooking(t, "b-1", "2024-07-01", "2024-07-03")))
	require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e-1", Name: "booking.requested"}))

	_, err := unit.Bookings().ByID(ctx, "b-1")
	require.NoError(t, err, "a unit sees its own staged writes")
	require.NoError(t, unit.Rollback(ctx))

	reader := begin(t, s, true)
	defer reader.Rollback(ctx)
	_, err = reader.Bookings().ByID(ctx, "b-1")
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	assert.Empty(t, s.Outbox().Pending())

	// the lock was released by the rollback
	again := begin(t, s, false)
	defer again.Rollback(ctx)
	lockCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, again.LockProperty(lockCtx, "p-1"))
}

func TestUnit_CommitAppliesWritesAndOutbox(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	unit := begin(t, s, false)
	require.NoError(t, unit.Bookings().Save(ctx, newBooking(t, "b-1", "2024-07-01", "2024-07-03")))
	require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e-1", Name: "booking.requested"}))
	require.NoError(t, unit.Commit(ctx))

	reader := begin(t, s, true)
	defer reader.Rollback(ctx)
	got, err := reader.Bookings().ByID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, booking.StatusPending, got.Status)
	require.Len(t, s.Outbox().Pending(), 1)

	assert.ErrorIs(t, unit.Commit(ctx), ErrStoreClosed)
}

func TestUnit_ReadOnlyRejectsWrites(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	unit := begin(t, s, true)
	defer unit.Rollback(ctx)

	err := unit.Bookings().Save(ctx, newBooking(t, "b-1", "2024-07-01", "2024-07-03"))
	assert.ErrorIs(t, err, uow.ErrStorageFailure)
}

func TestLockProperty_ContendedUnitTimesOutRetryable(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	holder := begin(t, s, false)
	require.NoError(t, holder.LockProperty(ctx, "p-1"))
	require.NoError(t, holder.LockProperty(ctx, "p-1"), "re-entrant within a unit")

	waiter := begin(t, s, false)
	defer waiter.Rollback(ctx)
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := waiter.LockProperty(waitCtx, "p-1")
	assert.ErrorIs(t, err, uow.ErrRetryable)

	other := begin(t, s, false)
	defer other.Rollback(ctx)
	assert.NoError(t, other.LockProperty(ctx, "p-2"), "locks are per property")

	require.NoError(t, holder.Commit(ctx))
	assert.NoError(t, waiter.LockProperty(ctx, "p-1"))
}

func TestBookingSave_StaleVersionIsRetryable(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	seed := begin(t, s, false)
	require.NoError(t, seed.Bookings().Save(ctx, newBooking(t, "b-1", "2024-07-01", "2024-07-03")))
	require.NoError(t, seed.Commit(ctx))

	first := begin(t, s, false)
	second := begin(t, s, false)
	defer second.Rollback(ctx)
	a, err := first.Bookings().ByID(ctx, "b-1")
	require.NoError(t, err)
	b, err := second.Bookings().ByID(ctx, "b-1")
	require.NoError(t, err)

	a.Status = booking.StatusApproved
	require.NoError(t, first.Bookings().Save(ctx, a))
	require.NoError(t, first.Commit(ctx))

	b.Status = booking.StatusCancelled
	err = second.Bookings().Save(ctx, b)
	assert.ErrorIs(t, err, uow.ErrRetryable)
	assert.ErrorIs(t, err, booking.ErrVersionConflict)
}

func TestBookingQueries(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	unit := begin(t, s, false)
	b1 := newBooking(t, "b-1", "2024-07-01", "2024-07-03")
	b2 := newBooking(t, "b-2", "2024-07-03", "2024-07-05")
	b2.Status = booking.StatusApproved
	b3 := newBooking(t, "b-3", "2024-07-10", "2024-07-12")
	b3.Status = booking.StatusDenied
	for _, b := range []*booking.Booking{b1, b2, b3} {
		require.NoError(t, unit.Bookings().Save(ctx, b))
	}
	require.NoError(t, unit.Commit(ctx))

	reader := begin(t, s, true)
	defer reader.Rollback(ctx)

	blocking, err := reader.Bookings().ListBlocking(ctx, "p-1", daterange.DateRange{})
	require.NoError(t, err)
	require.Len(t, blocking, 2)
	assert.Equal(t, booking.BookingID("b-1"), blocking[0].ID)

	window := daterange.DateRange{CheckIn: day("2024-07-03"), CheckOut: day("2024-07-04")}
	blocking, err = reader.Bookings().ListBlocking(ctx, "p-1", window)
	require.NoError(t, err)
	require.Len(t, blocking, 1, "checkout day does not overlap")
	assert.Equal(t, booking.BookingID("b-2"), blocking[0].ID)

	due, err := reader.Bookings().ListApprovedEndingBefore(ctx, day("2024-07-05"), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, booking.BookingID("b-2"), due[0].ID)

	items, total, err := reader.Bookings().ListByUser(ctx, "guest-1", booking.Filter{Statuses: []booking.Status{booking.StatusPending}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}

func TestOverrides_StagedDeleteAndPriceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	price := money.Must(5000, "USD")
	o, err := availability.NewOverride(availability.SetOverrideParams{
		PropertyID:    "p-1",
		Date:          day("2024-07-02"),
		Available:     true,
		PriceOverride: &price,
		Now:           time.Now(),
	})
	require.NoError(t, err)

	unit := begin(t, s, false)
	require.NoError(t, unit.Overrides().Save(ctx, o))
	require.NoError(t, unit.Commit(ctx))

	reader := begin(t, s, true)
	got, err := reader.Overrides().Get(ctx, "p-1", day("2024-07-02"))
	require.NoError(t, err)
	require.NotNil(t, got.PriceOverride)
	assert.Equal(t, price, *got.PriceOverride)
	require.NoError(t, reader.Rollback(ctx))

	unit = begin(t, s, false)
	require.NoError(t, unit.Overrides().Delete(ctx, "p-1", day("2024-07-02")))
	list, err := unit.Overrides().ListByProperty(ctx, "p-1", daterange.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.ErrorIs(t, unit.Overrides().Delete(ctx, "p-1", day("2024-07-02")), availability.ErrOverrideNotFound)
	require.NoError(t, unit.Rollback(ctx))

	reader = begin(t, s, true)
	defer reader.Rollback(ctx)
	list, err = reader.Overrides().ListByProperty(ctx, "p-1", daterange.DateRange{})
	require.NoError(t, err)
	assert.Len(t, list, 1, "rolled back delete leaves the override")
}

func TestOutbox_ClaimRetryAndSend(t *testing.T) {
	ctx := context.Background()
	box := NewOutbox()
	box.append(appoutbox.EventRecord{ID: "e-1"}, appoutbox.EventRecord{ID: "e-2"})

	rec, err := box.Claim(ctx, "w")
	require.NoError(t, err)
	require.Equal(t, "e-1", rec.ID)
	require.NoError(t, box.MarkFailed(ctx, "e-1", time.Now().Add(time.Hour), "down"))

	rec, err = box.Claim(ctx, "w")
	require.NoError(t, err)
	require.Equal(t, "e-2", rec.ID, "failed record waits for its retry time")
	require.NoError(t, box.MarkSent(ctx, "e-2"))

	rec, err = box.Claim(ctx, "w")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Len(t, box.Pending(), 1)
}

func TestIdempotencyStore_TTL(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(time.Minute)
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k", Payload: []byte("{}"), OccurredAt: time.Now()}))
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "old", OccurredAt: time.Now().Add(-time.Hour)}))

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = store.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInbox_SeenAndForget(t *testing.T) {
	ctx := context.Background()
	inbox := NewInbox()

	seen, err := inbox.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, _ = inbox.Seen(ctx, "evt-1")
	assert.True(t, seen)

	require.NoError(t, inbox.Forget(ctx, "evt-1"))
	seen, _ = inbox.Seen(ctx, "evt-1")
	assert.False(t, seen)
}
