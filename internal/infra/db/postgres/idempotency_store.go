package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"staybook/internal/app/middleware"
)

// IdempotencyStore keeps command results in the idempotency table. Expired
// rows are ignored on read and overwritten on save.
type IdempotencyStore struct {
	DB  *sql.DB
	TTL time.Duration
	Now func() time.Time
}

func NewIdempotencyStore(db *sql.DB, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{DB: db, TTL: ttl, Now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	rec := middleware.IdempotencyRecord{Key: key}
	err := s.DB.QueryRowContext(ctx,
		`SELECT fingerprint, payload, occurred_at FROM idempotency WHERE key = $1 AND expires_at > $2`,
		key, s.now()).Scan(&rec.Fingerprint, &rec.Payload, &rec.OccurredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, classify(err)
	}
	rec.OccurredAt = rec.OccurredAt.UTC()
	return rec, true, nil
}

const upsertIdempotencySQL = `
INSERT INTO idempotency (key, fingerprint, payload, occurred_at, expires_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key) DO UPDATE SET
    fingerprint = EXCLUDED.fingerprint,
    payload     = EXCLUDED.payload,
    occurred_at = EXCLUDED.occurred_at,
    expires_at  = EXCLUDED.expires_at`

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := s.DB.ExecContext(ctx, upsertIdempotencySQL, rec.Key, rec.Fingerprint, rec.Payload, rec.OccurredAt.UTC(), s.now().Add(ttl))
	return classify(err)
}

func (s *IdempotencyStore) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
