package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"staybook/internal/app/middleware"
	"staybook/internal/app/uow"
)

const DefaultKeyPrefix = "staybook:idem:"

// IdempotencyStore keeps command results as JSON values that expire after TTL.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, prefix string, ttl time.Duration) *IdempotencyStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

type storedResult struct {
	Fingerprint string    `json:"fingerprint,omitempty"`
	Payload     []byte    `json:"payload"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, uow.StorageFailure(fmt.Errorf("redis get: %w", err))
	}
	rec, err := decodeRecord(key, raw)
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+rec.Key, raw, s.ttl).Err(); err != nil {
		return uow.StorageFailure(fmt.Errorf("redis set: %w", err))
	}
	return nil
}

func encodeRecord(rec middleware.IdempotencyRecord) ([]byte, error) {
	raw, err := json.Marshal(storedResult{
		Fingerprint: rec.Fingerprint,
		Payload:     rec.Payload,
		OccurredAt:  rec.OccurredAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode idempotency record: %w", err)
	}
	return raw, nil
}

func decodeRecord(key string, raw []byte) (middleware.IdempotencyRecord, error) {
	var stored storedResult
	if err := json.Unmarshal(raw, &stored); err != nil {
		return middleware.IdempotencyRecord{}, fmt.Errorf("decode idempotency record: %w", err)
	}
	return middleware.IdempotencyRecord{
		Key:         key,
		Fingerprint: stored.Fingerprint,
		Payload:     stored.Payload,
		OccurredAt:  stored.OccurredAt,
	}, nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
