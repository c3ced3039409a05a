package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/feed"
	infraoutbox "staybook/internal/infra/outbox"
)

// ErrPermanent marks messages that no retry can fix.
var ErrPermanent = errors.New("kafka: permanent message error")

// Inbox remembers processed event ids per consumer.
type Inbox interface {
	// Seen records id and reports whether it had been recorded before.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Forget drops id so a failed event can be processed again.
	Forget(ctx context.Context, eventID string) error
}

// FeedRefresher republishes a property's calendar feed whenever a booking or
// availability event for it arrives.
type FeedRefresher struct {
	Commands commands.Bus
	Inbox    Inbox
	Logger   *slog.Logger
}

// FeedTopics lists the topics carrying events that change a calendar.
func FeedTopics(prefix string) []string {
	return []string{
		infraoutbox.TopicFor(prefix, "booking"),
		infraoutbox.TopicFor(prefix, "availability"),
	}
}

type cloudEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PropertyID string `json:"property_id"`
	} `json:"data"`
}

func (r *FeedRefresher) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("%w: decode cloudevent: %v", ErrPermanent, err)
	}
	propertyID := strings.TrimSpace(evt.Data.PropertyID)
	if propertyID == "" {
		return nil
	}
	if r.Inbox != nil && evt.ID != "" {
		seen, err := r.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	res, err := commands.Dispatch[feed.PublishCalendarFeedCommand, *dto.CalendarFeed](ctx, r.Commands, feed.PublishCalendarFeedCommand{PropertyID: propertyID})
	if err != nil {
		if r.Inbox != nil && evt.ID != "" {
			if ferr := r.Inbox.Forget(ctx, evt.ID); ferr != nil {
				r.logger().Warn("inbox forget failed", "event_id", evt.ID, "error", ferr)
			}
		}
		if errors.Is(err, feed.ErrUploaderMissing) {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return err
	}
	if res != nil {
		r.logger().Info("calendar feed refreshed", "property_id", propertyID, "event", evt.Type, "location", res.Location)
	}
	return nil
}

func (r *FeedRefresher) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

var _ MessageHandler = (*FeedRefresher)(nil)
