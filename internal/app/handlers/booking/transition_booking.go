package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/domain/access"
	domainbooking "staybook/internal/domain/booking"
)

const transitionBookingKey = "booking.transition"

type TransitionBookingCommand struct {
	Actor     access.Principal
	BookingID string `validate:"required"`
	Status    string `validate:"required"`
	Reason    string `validate:"max=500"`
	// At is the decision time for system sweeps; other actors use the handler clock.
	At time.Time
}

func (c TransitionBookingCommand) Key() string { return transitionBookingKey }

func (c TransitionBookingCommand) ActorPrincipal() access.Principal { return c.Actor }

type TransitionBookingHandler struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Now     func() time.Time
}

func (h *TransitionBookingHandler) Handle(ctx context.Context, cmd TransitionBookingCommand) (*dto.Booking, error) {
	to, err := domainbooking.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	unit, err := support.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id := domainbooking.BookingID(strings.TrimSpace(cmd.BookingID))

	current, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := unit.LockProperty(ctx, current.PropertyID); err != nil {
		return nil, err
	}
	// Re-read under the lock; another writer may have moved it meanwhile.
	b, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prop, err := unit.Properties().ByID(ctx, b.PropertyID)
	if err != nil {
		return nil, err
	}

	req := domainbooking.TransitionRequest{
		Actor:   cmd.Actor,
		OwnerID: prop.OwnerID,
		To:      to,
		Reason:  cmd.Reason,
		Now:     h.now(),
	}
	if cmd.Actor.IsSystem() && !cmd.At.IsZero() {
		req.Now = cmd.At.UTC()
	}
	rule, err := b.Authorize(cmd.Actor, prop.OwnerID, to)
	if err != nil {
		return nil, err
	}
	if rule.Effect == domainbooking.EffectBlock {
		req.Approved, err = support.ApprovedNights(ctx, unit, prop.ID, b.Range, b.ID)
		if err != nil {
			return nil, err
		}
	}
	from := b.Status
	if _, err := b.Transition(req); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, unit.Outbox(), h.Encoder, b); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking transitioned",
			"booking_id", b.ID,
			"property_id", b.PropertyID,
			"from", from,
			"to", b.Status,
			"effect", rule.Effect.String(),
			"actor", cmd.Actor.UserID)
	}
	return dto.MapBooking(b), nil
}

func (h *TransitionBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[TransitionBookingCommand, *dto.Booking] = (*TransitionBookingHandler)(nil)
