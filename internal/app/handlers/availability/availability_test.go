package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/middleware"
	"staybook/internal/domain/access"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

var (
	clock    = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	owner    = access.Principal{UserID: "owner-1", Role: access.RolePropertyOwner}
	admin    = access.Principal{UserID: "admin-1", Role: access.RoleAdmin}
	guest    = access.Principal{UserID: "guest-1", Role: access.RoleUser}
	stranger = access.Principal{UserID: "owner-2", Role: access.RolePropertyOwner}
)

type fixture struct {
	store   *memory.Store
	bus     commands.Bus
	queries *availabilityapp.GetAvailabilityHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.SaveProperty(context.Background(), &property.Property{
		ID:          "p-1",
		OwnerID:     owner.UserID,
		Title:       "Harbour flat",
		NightlyRate: money.Must(10000, "USD"),
		MaxGuests:   4,
		Active:      true,
	}))
	now := func() time.Time { return clock }

	overrides := &availabilityapp.OverrideHandler{Now: now}
	base := commands.NewInMemoryBus()
	commands.RegisterHandler(base, availabilityapp.SetOverrideCommand{}.Key(), overrides.SetHandler())
	commands.RegisterHandler(base, availabilityapp.RemoveOverrideCommand{}.Key(), overrides.RemoveHandler())
	commands.RegisterHandler[bookingapp.CreateBookingCommand, *dto.Booking](base, bookingapp.CreateBookingCommand{}.Key(),
		&bookingapp.CreateBookingHandler{Now: now})

	factory := memory.Factory{Store: store}
	return &fixture{
		store:   store,
		bus:     middleware.ChainCommands(base, middleware.Transaction(factory, middleware.FixedTimeout(5*time.Second))),
		queries: &availabilityapp.GetAvailabilityHandler{UoWFactory: factory, Now: now},
	}
}

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := daterange.ParseDate(raw)
	require.NoError(t, err)
	return d
}

func (f *fixture) set(ctx context.Context, t *testing.T, actor access.Principal, date string, available bool, price *int64) (*dto.Override, error) {
	return commands.Dispatch[availabilityapp.SetOverrideCommand, *dto.Override](ctx, f.bus, availabilityapp.SetOverrideCommand{
		Actor:         actor,
		PropertyID:    "p-1",
		Date:          day(t, date),
		Available:     available,
		PriceOverride: price,
	})
}

func (f *fixture) remove(ctx context.Context, t *testing.T, actor access.Principal, date string) (*dto.Override, error) {
	return commands.Dispatch[availabilityapp.RemoveOverrideCommand, *dto.Override](ctx, f.bus, availabilityapp.RemoveOverrideCommand{
		Actor:      actor,
		PropertyID: "p-1",
		Date:       day(t, date),
	})
}

func (f *fixture) book(ctx context.Context, t *testing.T, in, out string) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](ctx, f.bus, bookingapp.CreateBookingCommand{
		Actor:      guest,
		PropertyID: "p-1",
		CheckIn:    day(t, in),
		CheckOut:   day(t, out),
		Guests:     2,
	})
}

func price(v int64) *int64 { return &v }

func TestOverrides_OnlyOwnerOrAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	o, err := f.set(ctx, t, owner, "2024-07-02", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-02", o.Date)
	assert.False(t, o.Available)

	_, err = f.set(ctx, t, stranger, "2024-07-03", false, nil)
	assert.ErrorIs(t, err, access.ErrUnauthorized)
	_, err = f.set(ctx, t, guest, "2024-07-03", false, nil)
	assert.ErrorIs(t, err, access.ErrUnauthorized)
	_, err = f.remove(ctx, t, stranger, "2024-07-02")
	assert.ErrorIs(t, err, access.ErrUnauthorized)

	_, err = f.set(ctx, t, admin, "2024-07-05", true, price(5000))
	require.NoError(t, err)
	_, err = f.remove(ctx, t, admin, "2024-07-02")
	require.NoError(t, err)
	_, err = f.remove(ctx, t, owner, "2024-07-02")
	assert.ErrorIs(t, err, availability.ErrOverrideNotFound)

	var names []string
	for _, rec := range f.store.Outbox().Pending() {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"availability.override_set", "availability.override_set", "availability.override_removed"}, names)
}

func TestOverrides_RejectBadPrice(t *testing.T) {
	f := newFixture(t)
	_, err := f.set(context.Background(), t, owner, "2024-07-02", true, price(-1))
	assert.ErrorIs(t, err, availability.ErrOverridePrice)
	assert.Empty(t, f.store.Outbox().Pending())
}

func TestOverrides_PriceRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	base, err := f.book(ctx, t, "2024-07-01", "2024-07-04")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), base.Total.Amount)

	_, err = f.set(ctx, t, owner, "2024-07-12", true, price(5000))
	require.NoError(t, err)
	discounted, err := f.book(ctx, t, "2024-07-11", "2024-07-14")
	require.NoError(t, err)
	assert.Equal(t, dto.MoneyDTO{Amount: 25000, Currency: "USD"}, discounted.Total)
}

func TestOverrides_BlockedNightRejectsBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.set(ctx, t, owner, "2024-07-02", false, nil)
	require.NoError(t, err)

	_, err = f.book(ctx, t, "2024-07-01", "2024-07-03")
	assert.ErrorIs(t, err, availability.ErrDateConflict)

	_, err = f.book(ctx, t, "2024-06-30", "2024-07-02")
	assert.NoError(t, err, "checkout on the blocked night")
	_, err = f.book(ctx, t, "2024-07-03", "2024-07-05")
	assert.NoError(t, err)

	_, err = f.remove(ctx, t, owner, "2024-07-02")
	require.NoError(t, err)
	_, err = f.book(ctx, t, "2024-07-02", "2024-07-03")
	assert.NoError(t, err)
}

func TestGetAvailability_NightsAndReasons(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b, err := f.book(ctx, t, "2024-07-01", "2024-07-03")
	require.NoError(t, err)
	_, err = f.set(ctx, t, owner, "2024-07-03", true, price(5000))
	require.NoError(t, err)
	_, err = f.set(ctx, t, owner, "2024-07-04", false, nil)
	require.NoError(t, err)

	got, err := f.queries.Handle(ctx, availabilityapp.GetAvailabilityQuery{
		PropertyID: "p-1",
		From:       day(t, "2024-07-01"),
		To:         day(t, "2024-07-06"),
	})
	require.NoError(t, err)

	require.Len(t, got.Nights, 5)
	assert.Equal(t, []string{"2024-07-01", "2024-07-02", "2024-07-04"}, got.Blocked)
	assert.Equal(t, "booking", got.Nights[0].Reason)
	assert.Equal(t, "booking", got.Nights[1].Reason)
	assert.True(t, got.Nights[2].Available)
	assert.Equal(t, int64(5000), got.Nights[2].Price.Amount)
	assert.Equal(t, "override", got.Nights[3].Reason)
	assert.True(t, got.Nights[4].Available)
	assert.Equal(t, int64(10000), got.Nights[4].Price.Amount)
	assert.NotEmpty(t, b.ID)
}

func TestGetAvailability_Window(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	from := day(t, "2024-07-01")

	got, err := f.queries.Handle(ctx, availabilityapp.GetAvailabilityQuery{PropertyID: "p-1", From: from, To: from.AddDate(0, 0, availabilityapp.MaxWindowNights)})
	require.NoError(t, err)
	assert.Len(t, got.Nights, availabilityapp.MaxWindowNights)

	_, err = f.queries.Handle(ctx, availabilityapp.GetAvailabilityQuery{PropertyID: "p-1", From: from, To: from.AddDate(0, 0, availabilityapp.MaxWindowNights+1)})
	assert.ErrorIs(t, err, availabilityapp.ErrWindowTooLarge)
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)

	got, err = f.queries.Handle(ctx, availabilityapp.GetAvailabilityQuery{PropertyID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", got.From)
	assert.Len(t, got.Nights, 30)

	_, err = f.queries.Handle(ctx, availabilityapp.GetAvailabilityQuery{PropertyID: "missing", From: from})
	assert.ErrorIs(t, err, property.ErrNotFound)
}
