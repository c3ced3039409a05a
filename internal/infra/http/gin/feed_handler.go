package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/feed"
	feedapp "staybook/internal/app/handlers/feed"
	"staybook/internal/app/queries"
)

type FeedHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

// Calendar serves the property's blocked nights as text/calendar.
func (h FeedHandler) Calendar(c *gin.Context) {
	q := feedapp.GetCalendarFeedQuery{PropertyID: strings.TrimSpace(c.Param("id"))}
	body, err := queries.Ask[feedapp.GetCalendarFeedQuery, []byte](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, feed.ContentType, body)
}

var _ FeedHTTP = FeedHandler{}
