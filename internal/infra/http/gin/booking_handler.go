package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
)

const idempotencyHeader = "Idempotency-Key"

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	PropertyID      string `json:"property_id"`
	CheckIn         string `json:"check_in"`
	CheckOut        string `json:"check_out"`
	Guests          int    `json:"guests"`
	SpecialRequests string `json:"special_requests"`
}

type transitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	checkIn, err := daterange.ParseDate(req.CheckIn)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	checkOut, err := daterange.ParseDate(req.CheckOut)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		Actor:           user,
		PropertyID:      strings.TrimSpace(req.PropertyID),
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          req.Guests,
		SpecialRequests: req.SpecialRequests,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := bookingapp.GetBookingQuery{Actor: user, BookingID: strings.TrimSpace(c.Param("id"))}
	result, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Transition applies the status named in the body.
func (h BookingHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	h.transition(c, req.Status, req.Reason)
}

// TransitionTo serves the shortcut routes such as /bookings/:id/approve.
func (h BookingHandler) TransitionTo(status domainbooking.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transitionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, h.Logger, fmt.Errorf("%w: %w", errBadRequest, err))
				return
			}
		}
		h.transition(c, string(status), req.Reason)
	}
}

func (h BookingHandler) transition(c *gin.Context, status, reason string) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	cmd := bookingapp.TransitionBookingCommand{
		Actor:     user,
		BookingID: strings.TrimSpace(c.Param("id")),
		Status:    strings.TrimSpace(status),
		Reason:    strings.TrimSpace(reason),
	}
	result, err := commands.Dispatch[bookingapp.TransitionBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListForProperty is the owner view of a property's bookings.
func (h BookingHandler) ListForProperty(c *gin.Context) {
	h.list(c, strings.TrimSpace(c.Param("id")), "")
}

func (h BookingHandler) ListMine(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.list(c, "", user.UserID)
}

// List serves GET /bookings?property_id=... or ?user_id=...; without either
// it lists the caller's own bookings.
func (h BookingHandler) List(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	propertyID := strings.TrimSpace(c.Query("property_id"))
	userID := strings.TrimSpace(c.Query("user_id"))
	if propertyID == "" && userID == "" {
		userID = user.UserID
	}
	h.list(c, propertyID, userID)
}

func (h BookingHandler) list(c *gin.Context, propertyID, userID string) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := bookingapp.ListBookingsQuery{
		Actor:      user,
		PropertyID: propertyID,
		UserID:     userID,
	}
	if raw := c.Query("status"); raw != "" {
		q.Statuses = strings.Split(raw, ",")
	}
	var err error
	if q.From, err = optionalDate(c.Query("from")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if q.To, err = optionalDate(c.Query("to")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if q.Page, err = optionalInt(c.Query("page")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if q.PerPage, err = optionalInt(c.Query("per_page")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	result, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingPage](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func optionalDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return daterange.ParseDate(raw)
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errBadRequest, raw)
	}
	return v, nil
}

var _ BookingHTTP = BookingHandler{}
