package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/domain/access"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

const createBookingKey = "booking.create"

// CreateBookingCommand carries no price: totals are always computed here.
type CreateBookingCommand struct {
	Actor           access.Principal
	PropertyID      string `validate:"required"`
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	SpecialRequests string `validate:"max=1000"`
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) ActorPrincipal() access.Principal { return c.Actor }

// IdempotencyKey is scoped to the actor so two users cannot collide on a key.
func (c CreateBookingCommand) IdempotencyKey() string {
	key := strings.TrimSpace(c.IdempotencyKeyV)
	if key == "" {
		return ""
	}
	return createBookingKey + ":" + c.Actor.UserID + ":" + key
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

type CreateBookingHandler struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Now     func() time.Time
	NewID   func() string
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	if !cmd.Actor.CanBook() {
		return nil, fmt.Errorf("%w: role %q cannot request bookings", access.ErrUnauthorized, cmd.Actor.Role)
	}
	unit, err := support.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}

	prop, err := unit.Properties().ByID(ctx, property.ID(strings.TrimSpace(cmd.PropertyID)))
	if err != nil {
		return nil, err
	}
	if err := prop.EnsureBookable(); err != nil {
		return nil, err
	}

	now := h.now()
	dr := daterange.DateRange{CheckIn: daterange.Day(cmd.CheckIn), CheckOut: daterange.Day(cmd.CheckOut)}
	if err := pricing.ValidateRequest(prop, dr, cmd.Guests, now); err != nil {
		return nil, err
	}

	if err := unit.LockProperty(ctx, prop.ID); err != nil {
		return nil, err
	}
	index, err := support.LoadIndex(ctx, unit, prop, dr)
	if err != nil {
		return nil, err
	}
	if err := index.Check(dr); err != nil {
		return nil, err
	}
	quote, err := pricing.ComputeTotal(prop, dr, index)
	if err != nil {
		return nil, err
	}

	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:              domainbooking.BookingID(h.newID()),
		PropertyID:      prop.ID,
		UserID:          cmd.Actor.UserID,
		Range:           dr,
		Guests:          cmd.Guests,
		Total:           quote.Total,
		SpecialRequests: cmd.SpecialRequests,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, unit.Outbox(), h.Encoder, b); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking requested",
			"booking_id", b.ID,
			"property_id", prop.ID,
			"user_id", b.UserID,
			"range", dr.String(),
			"total", b.Total.String())
	}
	return dto.MapBooking(b), nil
}

func (h *CreateBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *CreateBookingHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
