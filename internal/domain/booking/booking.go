package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/access"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

const MaxSpecialRequests = 1000

var (
	ErrBookingNotFound       = errors.New("booking: not found")
	ErrGuestRequired         = errors.New("booking: user id required")
	ErrInvalidTotal          = errors.New("booking: total must be positive")
	ErrSpecialRequestsTooBig = fmt.Errorf("booking: special requests exceed %d characters", MaxSpecialRequests)
	ErrVersionConflict       = errors.New("booking: concurrent modification")
)

type BookingID string

// Booking is a reservation of a property's nights by one user. Version is
// bumped by every successful save and guards against lost updates.
type Booking struct {
	ID              BookingID
	PropertyID      property.ID
	UserID          string
	Range           daterange.DateRange
	Guests          int
	Total           money.Money
	Status          Status
	SpecialRequests string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

// Repository is implemented by every storage driver.
type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, b *Booking) error
	ListByProperty(ctx context.Context, id property.ID, filter Filter) ([]*Booking, int, error)
	ListByUser(ctx context.Context, userID string, filter Filter) ([]*Booking, int, error)
	// ListBlocking returns pending and approved bookings of the property that
	// overlap window. A zero window returns all of them.
	ListBlocking(ctx context.Context, id property.ID, window daterange.DateRange) ([]*Booking, error)
	// ListApprovedEndingBefore returns approved bookings whose checkout is on or before cutoff.
	ListApprovedEndingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)
}

type CreateParams struct {
	ID              BookingID
	PropertyID      property.ID
	UserID          string
	Range           daterange.DateRange
	Guests          int
	Total           money.Money
	SpecialRequests string
	CreatedAt       time.Time
}

// NewBooking builds a pending booking. Totals come from the pricing calculator only.
func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(params.UserID) == "" {
		return nil, ErrGuestRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if params.Guests < 1 {
		return nil, errors.New("booking: guests count must be positive")
	}
	if params.Total.Amount <= 0 || params.Total.Currency == "" {
		return nil, ErrInvalidTotal
	}
	if len([]rune(params.SpecialRequests)) > MaxSpecialRequests {
		return nil, ErrSpecialRequestsTooBig
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:              params.ID,
		PropertyID:      params.PropertyID,
		UserID:          params.UserID,
		Range:           params.Range,
		Guests:          params.Guests,
		Total:           params.Total,
		Status:          StatusPending,
		SpecialRequests: strings.TrimSpace(params.SpecialRequests),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	b.Record(BookingRequested{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		UserID:     b.UserID,
		CheckIn:    daterange.Format(b.Range.CheckIn),
		CheckOut:   daterange.Format(b.Range.CheckOut),
		Guests:     b.Guests,
		Total:      b.Total,
		At:         now,
	})
	return b, nil
}

// CapabilitiesOf lists what the actor may do to this booking. An empty result
// means the actor is unrelated to it.
func (b *Booking) CapabilitiesOf(actor access.Principal, ownerID string) []Capability {
	if actor.IsSystem() {
		return []Capability{CapabilitySystem}
	}
	if actor.IsZero() {
		return nil
	}
	if actor.IsAdmin() {
		return []Capability{CapabilityOwner, CapabilityGuest}
	}
	var caps []Capability
	if actor.UserID == ownerID {
		caps = append(caps, CapabilityOwner)
	}
	if actor.UserID == b.UserID {
		caps = append(caps, CapabilityGuest)
	}
	return caps
}

// CanView reports whether the actor may read the booking.
func (b *Booking) CanView(actor access.Principal, ownerID string) bool {
	return len(b.CapabilitiesOf(actor, ownerID)) > 0
}

// TransitionRequest carries everything Transition needs besides the booking.
type TransitionRequest struct {
	Actor   access.Principal
	OwnerID string
	To      Status
	Reason  string
	Now     time.Time
	// Approved holds the nights of the property's other approved bookings.
	// Only consulted when the rule blocks dates.
	Approved availability.NightSet
}

// Authorize resolves the table row for the requested change and checks the
// actor against it. It does not mutate the booking.
func (b *Booking) Authorize(actor access.Principal, ownerID string, to Status) (Rule, error) {
	caps := b.CapabilitiesOf(actor, ownerID)
	if len(caps) == 0 {
		return Rule{}, access.ErrUnauthorized
	}
	if b.Status.Terminal() {
		return Rule{}, &TransitionError{From: b.Status, To: to, Reason: "booking is closed"}
	}
	rule, ok := LookupRule(b.Status, to)
	if !ok {
		return Rule{}, &TransitionError{From: b.Status, To: to}
	}
	if !rule.Allows(caps) {
		return Rule{}, fmt.Errorf("%w: %s -> %s", access.ErrUnauthorized, b.Status, to)
	}
	return rule, nil
}

// Transition applies a status change after authorization and preconditions.
func (b *Booking) Transition(req TransitionRequest) (Rule, error) {
	rule, err := b.Authorize(req.Actor, req.OwnerID, req.To)
	if err != nil {
		return Rule{}, err
	}
	now := req.Now.UTC()
	switch rule.To {
	case StatusApproved:
		if err := availability.CheckConflict(req.Approved, b.Range); err != nil {
			return Rule{}, &TransitionError{From: b.Status, To: rule.To, Reason: "dates overlap an approved booking", Err: err}
		}
	case StatusCompleted:
		if daterange.Day(now).Before(b.Range.CheckOut) {
			return Rule{}, &TransitionError{From: b.Status, To: rule.To, Reason: "stay has not ended"}
		}
	}
	from := b.Status
	b.Status = rule.To
	b.UpdatedAt = now
	b.Record(BookingTransitioned{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		UserID:     b.UserID,
		From:       from,
		To:         rule.To,
		Effect:     rule.Effect.String(),
		ActorID:    req.Actor.UserID,
		Reason:     strings.TrimSpace(req.Reason),
		CheckIn:    daterange.Format(b.Range.CheckIn),
		CheckOut:   daterange.Format(b.Range.CheckOut),
		At:         now,
	})
	return rule, nil
}

// Stay returns the booking as an availability stay.
func (b *Booking) Stay() availability.Stay {
	return availability.Stay{Reference: string(b.ID), Range: b.Range}
}

// Clone copies the booking without its pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	return &Booking{
		ID:              b.ID,
		PropertyID:      b.PropertyID,
		UserID:          b.UserID,
		Range:           b.Range,
		Guests:          b.Guests,
		Total:           b.Total,
		Status:          b.Status,
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
		Version:         b.Version,
	}
}
