package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/daterange"
)

type AvailabilityHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type overrideRequest struct {
	Available     *bool  `json:"available"`
	PriceOverride *int64 `json:"price_override"`
}

func (h AvailabilityHandler) Get(c *gin.Context) {
	from, err := optionalDate(c.Query("from"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	to, err := optionalDate(c.Query("to"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	q := availabilityapp.GetAvailabilityQuery{PropertyID: strings.TrimSpace(c.Param("id")), From: from, To: to}
	result, err := queries.Ask[availabilityapp.GetAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SetOverride handles PUT /properties/:id/availability/:date. A missing
// "available" field means the night stays open.
func (h AvailabilityHandler) SetOverride(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	date, err := daterange.ParseDate(c.Param("date"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	cmd := availabilityapp.SetOverrideCommand{
		Actor:         user,
		PropertyID:    strings.TrimSpace(c.Param("id")),
		Date:          date,
		Available:     available,
		PriceOverride: req.PriceOverride,
	}
	result, err := commands.Dispatch[availabilityapp.SetOverrideCommand, *dto.Override](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) RemoveOverride(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	date, err := daterange.ParseDate(c.Param("date"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := availabilityapp.RemoveOverrideCommand{
		Actor:      user,
		PropertyID: strings.TrimSpace(c.Param("id")),
		Date:       date,
	}
	if _, err := commands.Dispatch[availabilityapp.RemoveOverrideCommand, *dto.Override](c.Request.Context(), h.Commands, cmd); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
