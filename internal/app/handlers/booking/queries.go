package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/domain/access"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

const (
	listBookingsKey = "booking.list"
	getBookingKey   = "booking.get"
)

var ErrListScope = errors.New("booking: exactly one of property id or user id is required")

// ListBookingsQuery lists either a property's bookings or a user's bookings.
type ListBookingsQuery struct {
	Actor      access.Principal
	PropertyID string
	UserID     string
	Statuses   []string
	From       time.Time
	To         time.Time
	Page       int `validate:"gte=0,lte=100000"`
	PerPage    int `validate:"gte=0,lte=100"`
}

func (q ListBookingsQuery) Key() string { return listBookingsKey }

func (q ListBookingsQuery) ActorPrincipal() access.Principal { return q.Actor }

type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (dto.BookingPage, error) {
	propertyID := strings.TrimSpace(q.PropertyID)
	userID := strings.TrimSpace(q.UserID)
	if (propertyID == "") == (userID == "") {
		return dto.BookingPage{}, ErrListScope
	}
	filter := domainbooking.Filter{From: q.From, To: q.To, Page: q.Page, PerPage: q.PerPage}
	for _, raw := range q.Statuses {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		s, err := domainbooking.ParseStatus(raw)
		if err != nil {
			return dto.BookingPage{}, err
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	filter = filter.Normalize()

	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingPage{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	var (
		items []*domainbooking.Booking
		total int
	)
	if propertyID != "" {
		prop, err := unit.Properties().ByID(execCtx, property.ID(propertyID))
		if err != nil {
			return dto.BookingPage{}, err
		}
		if err := support.OwnerOrAdmin(prop, q.Actor); err != nil {
			return dto.BookingPage{}, err
		}
		items, total, err = unit.Bookings().ListByProperty(execCtx, prop.ID, filter)
		if err != nil {
			return dto.BookingPage{}, err
		}
	} else {
		if !q.Actor.IsAdmin() && q.Actor.UserID != userID {
			return dto.BookingPage{}, fmt.Errorf("%w: bookings of another user", access.ErrUnauthorized)
		}
		items, total, err = unit.Bookings().ListByUser(execCtx, userID, filter)
		if err != nil {
			return dto.BookingPage{}, err
		}
	}

	if h.Logger != nil {
		h.Logger.Debug("bookings listed", "property_id", propertyID, "user_id", userID, "total", total, "page", filter.Page)
	}
	return dto.MapBookingPage(items, total, filter), nil
}

type GetBookingQuery struct {
	Actor     access.Principal
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) ActorPrincipal() access.Principal { return q.Actor }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(strings.TrimSpace(q.BookingID)))
	if err != nil {
		return nil, err
	}
	prop, err := unit.Properties().ByID(execCtx, b.PropertyID)
	if err != nil {
		return nil, err
	}
	if !b.CanView(q.Actor, prop.OwnerID) {
		return nil, access.ErrUnauthorized
	}
	return dto.MapBooking(b), nil
}

var (
	_ queries.Handler[ListBookingsQuery, dto.BookingPage] = (*ListBookingsHandler)(nil)
	_ queries.Handler[GetBookingQuery, *dto.Booking]      = (*GetBookingHandler)(nil)
)
