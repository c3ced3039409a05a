package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/access"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

const ownerID = "owner-1"

var (
	guest    = access.Principal{UserID: "guest-1", Role: access.RoleUser}
	owner    = access.Principal{UserID: ownerID, Role: access.RolePropertyOwner}
	admin    = access.Principal{UserID: "admin-1", Role: access.RoleAdmin}
	stranger = access.Principal{UserID: "someone", Role: access.RoleUser}
	system   = access.System()
)

func newTestBooking(t *testing.T, status Status) *Booking {
	t.Helper()
	in := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	dr, err := daterange.New(in, in.AddDate(0, 0, 3))
	require.NoError(t, err)
	b, err := NewBooking(CreateParams{
		ID:         "b-1",
		PropertyID: "p-1",
		UserID:     guest.UserID,
		Range:      dr,
		Guests:     2,
		Total:      money.Must(30000, "USD"),
		CreatedAt:  in.AddDate(0, 0, -10),
	})
	require.NoError(t, err)
	b.ClearEvents()
	b.Status = status
	return b
}

func TestNewBooking(t *testing.T) {
	b := newTestBooking(t, StatusPending)
	assert.Equal(t, StatusPending, b.Status)

	_, err := NewBooking(CreateParams{UserID: "u", Range: b.Range, Guests: 1, Total: money.Money{Currency: "USD"}})
	assert.ErrorIs(t, err, ErrInvalidTotal)

	long := make([]rune, MaxSpecialRequests+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = NewBooking(CreateParams{UserID: "u", Range: b.Range, Guests: 1, Total: money.Must(1, "USD"), SpecialRequests: string(long)})
	assert.ErrorIs(t, err, ErrSpecialRequestsTooBig)
}

func TestTransition_TableRows(t *testing.T) {
	after := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		from   Status
		to     Status
		actor  access.Principal
		effect Effect
	}{
		{"owner approves", StatusPending, StatusApproved, owner, EffectBlock},
		{"owner denies", StatusPending, StatusDenied, owner, EffectNone},
		{"guest withdraws", StatusPending, StatusCancelled, guest, EffectNone},
		{"guest cancels approved", StatusApproved, StatusCancelled, guest, EffectRelease},
		{"owner cancels approved", StatusApproved, StatusCancelled, owner, EffectRelease},
		{"owner completes", StatusApproved, StatusCompleted, owner, EffectNone},
		{"system completes", StatusApproved, StatusCompleted, system, EffectNone},
		{"admin approves", StatusPending, StatusApproved, admin, EffectBlock},
		{"admin withdraws", StatusPending, StatusCancelled, admin, EffectNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBooking(t, tt.from)
			rule, err := b.Transition(TransitionRequest{Actor: tt.actor, OwnerID: ownerID, To: tt.to, Now: after})
			require.NoError(t, err)
			assert.Equal(t, tt.effect, rule.Effect)
			assert.Equal(t, tt.to, b.Status)
			events := b.PendingEvents()
			require.Len(t, events, 1)
			assert.Equal(t, "booking."+string(tt.to), events[0].EventName())
		})
	}
}

func TestTransition_DeniedToApprovedIsAlwaysInvalid(t *testing.T) {
	for _, actor := range []access.Principal{owner, guest, admin, system} {
		b := newTestBooking(t, StatusDenied)
		_, err := b.Transition(TransitionRequest{Actor: actor, OwnerID: ownerID, To: StatusApproved, Now: time.Now()})
		require.ErrorIs(t, err, ErrInvalidTransition, actor.Role)

		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, StatusDenied, te.From)
		assert.Equal(t, StatusApproved, te.To)
		assert.Equal(t, StatusDenied, b.Status)
	}
}

func TestTransition_ClosedBookingsStayClosed(t *testing.T) {
	for _, from := range []Status{StatusDenied, StatusCancelled, StatusCompleted} {
		assert.True(t, from.Terminal())
		for _, to := range []Status{StatusPending, StatusApproved, StatusCancelled, StatusCompleted} {
			b := newTestBooking(t, from)
			_, err := b.Transition(TransitionRequest{Actor: admin, OwnerID: ownerID, To: to, Now: time.Now().AddDate(1, 0, 0)})

			var te *TransitionError
			require.True(t, errors.As(err, &te), "%s -> %s", from, to)
			assert.Equal(t, "booking is closed", te.Reason)
			assert.Equal(t, from, b.Status)
		}
	}
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusApproved.Terminal())
}

func TestTransition_StrangerIsUnauthorized(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusApproved, StatusDenied, StatusCancelled, StatusCompleted} {
		for _, to := range []Status{StatusPending, StatusApproved, StatusDenied, StatusCancelled, StatusCompleted} {
			b := newTestBooking(t, from)
			_, err := b.Transition(TransitionRequest{Actor: stranger, OwnerID: ownerID, To: to, Now: time.Now()})
			assert.ErrorIs(t, err, access.ErrUnauthorized, "%s -> %s", from, to)
		}
	}
}

func TestTransition_WrongCapability(t *testing.T) {
	b := newTestBooking(t, StatusPending)
	_, err := b.Transition(TransitionRequest{Actor: guest, OwnerID: ownerID, To: StatusApproved, Now: time.Now()})
	assert.ErrorIs(t, err, access.ErrUnauthorized)

	b = newTestBooking(t, StatusPending)
	_, err = b.Transition(TransitionRequest{Actor: owner, OwnerID: ownerID, To: StatusCancelled, Now: time.Now()})
	assert.ErrorIs(t, err, access.ErrUnauthorized)

	b = newTestBooking(t, StatusApproved)
	_, err = b.Transition(TransitionRequest{Actor: guest, OwnerID: ownerID, To: StatusCompleted, Now: time.Now().AddDate(5, 0, 0)})
	assert.ErrorIs(t, err, access.ErrUnauthorized)
}

func TestTransition_CompletionWaitsForCheckout(t *testing.T) {
	b := newTestBooking(t, StatusApproved)
	beforeCheckout := b.Range.CheckOut.Add(-time.Hour)

	_, err := b.Transition(TransitionRequest{Actor: system, To: StatusCompleted, Now: beforeCheckout})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusApproved, b.Status)

	_, err = b.Transition(TransitionRequest{Actor: system, To: StatusCompleted, Now: b.Range.CheckOut})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, b.Status)
}

func TestTransition_ApprovalRechecksApprovedNights(t *testing.T) {
	b := newTestBooking(t, StatusPending)
	approved := availability.NewNightSet(b.Range.CheckIn.AddDate(0, 0, 1))

	_, err := b.Transition(TransitionRequest{Actor: owner, OwnerID: ownerID, To: StatusApproved, Now: time.Now(), Approved: approved})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, availability.ErrDateConflict)
	assert.Equal(t, StatusPending, b.Status)
	assert.Empty(t, b.PendingEvents())

	adjacent := availability.NewNightSet(b.Range.CheckOut)
	_, err = b.Transition(TransitionRequest{Actor: owner, OwnerID: ownerID, To: StatusApproved, Now: time.Now(), Approved: adjacent})
	assert.NoError(t, err)
}

func TestPage(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var all []*Booking
	for i := 0; i < 25; i++ {
		b := newTestBooking(t, StatusPending)
		b.ID = BookingID(string(rune('a' + i)))
		b.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i%5 == 0 {
			b.Status = StatusDenied
		}
		all = append(all, b)
	}

	page, total := Page(all, Filter{Page: 2, PerPage: 10})
	assert.Equal(t, 25, total)
	require.Len(t, page, 10)
	assert.Equal(t, BookingID("o"), page[0].ID)

	page, total = Page(all, Filter{Statuses: []Status{StatusDenied}})
	assert.Equal(t, 5, total)
	assert.Len(t, page, 5)

	page, total = Page(all, Filter{Page: 9})
	assert.Equal(t, 25, total)
	assert.Empty(t, page)
	assert.Equal(t, 3, TotalPages(25, 10))

	page, total = Page(all[:1], Filter{Page: 922337203685477582, PerPage: 10})
	assert.Equal(t, 1, total)
	assert.Empty(t, page)
	f := Filter{Page: 922337203685477582, PerPage: MaxPerPage}.Normalize()
	assert.Equal(t, MaxPage, f.Page)
	assert.Positive(t, f.Offset())
	assert.Equal(t, 0, TotalPages(0, 10))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Approved ")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, s)
	assert.True(t, s.Blocking())

	_, err = ParseStatus("accepted")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}
