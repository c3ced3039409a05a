package feed

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	appfeed "staybook/internal/app/feed"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

const (
	getCalendarFeedKey     = "feed.calendar.get"
	publishCalendarFeedKey = "feed.calendar.publish"
	horizonDays            = 365
)

var ErrUploaderMissing = errors.New("feed: uploader not configured")

// Uploader stores a rendered feed and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

type GetCalendarFeedQuery struct {
	PropertyID string `validate:"required"`
}

func (q GetCalendarFeedQuery) Key() string { return getCalendarFeedKey }

type PublishCalendarFeedCommand struct {
	PropertyID string `validate:"required"`
}

func (c PublishCalendarFeedCommand) Key() string { return publishCalendarFeedKey }

// Handler renders feeds for the coming year. Publishing reads through its own
// read-only unit and needs no transaction.
type Handler struct {
	UoWFactory uow.UoWFactory
	Uploader   Uploader
	KeyPrefix  string
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *Handler) Get(ctx context.Context, q GetCalendarFeedQuery) ([]byte, error) {
	body, _, err := h.render(ctx, q.PropertyID)
	return body, err
}

func (h *Handler) Publish(ctx context.Context, cmd PublishCalendarFeedCommand) (*dto.CalendarFeed, error) {
	if h.Uploader == nil {
		return nil, ErrUploaderMissing
	}
	body, events, err := h.render(ctx, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(cmd.PropertyID)
	key := strings.Trim(h.KeyPrefix, "/") + "/" + id + ".ics"
	location, err := h.Uploader.Upload(ctx, strings.TrimLeft(key, "/"), bytes.NewReader(body), appfeed.ContentType)
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("calendar feed published", "property_id", id, "events", events, "location", location)
	}
	return &dto.CalendarFeed{PropertyID: id, Location: location, Events: events}, nil
}

func (h *Handler) render(ctx context.Context, rawID string) ([]byte, int, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, 0, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	prop, err := unit.Properties().ByID(execCtx, property.ID(strings.TrimSpace(rawID)))
	if err != nil {
		return nil, 0, err
	}
	now := h.now()
	window, err := daterange.New(now, now.AddDate(0, 0, horizonDays))
	if err != nil {
		return nil, 0, err
	}
	bookings, err := unit.Bookings().ListBlocking(execCtx, prop.ID, window)
	if err != nil {
		return nil, 0, err
	}
	overrides, err := unit.Overrides().ListByProperty(execCtx, prop.ID, window)
	if err != nil {
		return nil, 0, err
	}
	stays := make([]availability.Stay, 0, len(bookings))
	for _, b := range bookings {
		stays = append(stays, b.Stay())
	}
	events := appfeed.BuildEvents(prop.ID, stays, overrides)
	var buf bytes.Buffer
	if err := appfeed.Render(&buf, prop, events, now); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), len(events), nil
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *Handler) GetHandler() queries.Handler[GetCalendarFeedQuery, []byte] {
	return queries.HandlerFunc[GetCalendarFeedQuery, []byte](h.Get)
}

func (h *Handler) PublishHandler() commands.Handler[PublishCalendarFeedCommand, *dto.CalendarFeed] {
	return commands.HandlerFunc[PublishCalendarFeedCommand, *dto.CalendarFeed](h.Publish)
}
