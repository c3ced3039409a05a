package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	bookingapp "staybook/internal/app/handlers/booking"
	feedapp "staybook/internal/app/handlers/feed"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/domain/access"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/infra/validation"
)

const retryAfterSeconds = "1"

type errorMapping struct {
	status int
	code   string
}

// classify maps an application error to a status and a stable code. Order
// matters: a rejected approval both conflicts on dates and is an invalid transition.
func classify(err error) errorMapping {
	switch {
	case errors.Is(err, validation.ErrValidation),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, daterange.ErrInvalidDate),
		errors.Is(err, pricing.ErrInvalidGuests),
		errors.Is(err, booking.ErrUnknownStatus),
		errors.Is(err, booking.ErrSpecialRequestsTooBig),
		errors.Is(err, bookingapp.ErrListScope),
		errors.Is(err, availability.ErrOverrideDate),
		errors.Is(err, availability.ErrOverridePrice),
		errors.Is(err, errBadRequest):
		return errorMapping{http.StatusBadRequest, "invalid_request"}
	case errors.Is(err, property.ErrNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, availability.ErrOverrideNotFound):
		return errorMapping{http.StatusNotFound, "not_found"}
	case errors.Is(err, property.ErrInactive):
		return errorMapping{http.StatusConflict, "property_inactive"}
	case errors.Is(err, availability.ErrDateConflict):
		return errorMapping{http.StatusConflict, "date_conflict"}
	case errors.Is(err, booking.ErrInvalidTransition):
		return errorMapping{http.StatusConflict, "invalid_transition"}
	case errors.Is(err, middleware.ErrIdempotencyKeyReused):
		return errorMapping{http.StatusUnprocessableEntity, "idempotency_key_reused"}
	case errors.Is(err, pricing.ErrCapacityExceeded):
		return errorMapping{http.StatusUnprocessableEntity, "capacity_exceeded"}
	case errors.Is(err, access.ErrAnonymousActor):
		return errorMapping{http.StatusUnauthorized, "unauthenticated"}
	case errors.Is(err, access.ErrUnauthorized):
		return errorMapping{http.StatusForbidden, "forbidden"}
	case errors.Is(err, uow.ErrRetryable):
		return errorMapping{http.StatusServiceUnavailable, "retry"}
	case errors.Is(err, feedapp.ErrUploaderMissing),
		errors.Is(err, commands.ErrNilBus),
		errors.Is(err, queries.ErrNilBus):
		return errorMapping{http.StatusServiceUnavailable, "unavailable"}
	default:
		return errorMapping{http.StatusInternalServerError, "internal"}
	}
}

var errBadRequest = errors.New("http: malformed request")

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	m := classify(err)
	body := gin.H{"error": m.code, "message": err.Error()}
	if m.status == http.StatusInternalServerError {
		body["message"] = "internal error"
	}
	var verr *validation.Error
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	if m.status == http.StatusServiceUnavailable {
		c.Header("Retry-After", retryAfterSeconds)
	}
	if logger != nil {
		fields := []any{"status", m.status, "error", err, "path", c.FullPath(), "request_id", c.GetString("request_id")}
		if p, ok := currentPrincipal(c); ok {
			fields = append(fields, "user_id", p.UserID)
		}
		level := slog.LevelInfo
		if m.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed", fields...)
	}
	c.JSON(m.status, body)
}
