package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Inbox remembers consumed event ids with SETNX; entries expire after TTL.
type Inbox struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewInbox(client *redis.Client, consumer string, ttl time.Duration) *Inbox {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Inbox{client: client, prefix: "staybook:inbox:" + consumer + ":", ttl: ttl}
}

func (i *Inbox) Seen(ctx context.Context, eventID string) (bool, error) {
	created, err := i.client.SetNX(ctx, i.prefix+eventID, time.Now().UTC().Format(time.RFC3339), i.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !created, nil
}

func (i *Inbox) Forget(ctx context.Context, eventID string) error {
	if err := i.client.Del(ctx, i.prefix+eventID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
