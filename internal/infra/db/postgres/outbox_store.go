package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appoutbox "staybook/internal/app/outbox"
	infraoutbox "staybook/internal/infra/outbox"
)

type unitOutbox struct {
	unit *Unit
}

const insertOutboxSQL = `
INSERT INTO outbox (id, name, payload, occurred_at, aggregate, headers, state, next_attempt_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

func (o unitOutbox) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	if err := o.unit.ensureWritable(); err != nil {
		return err
	}
	headers, err := encodeHeaders(rec.Headers)
	if err != nil {
		return err
	}
	_, err = o.unit.tx.ExecContext(ctx, insertOutboxSQL,
		rec.ID, rec.Name, rec.Payload, rec.OccurredAt.UTC(), rec.Aggregate, headers,
		infraoutbox.StateNew, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox: %w", classify(err))
	}
	return nil
}

func encodeHeaders(h map[string]string) ([]byte, error) {
	if h == nil {
		h = map[string]string{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode outbox headers: %w", err)
	}
	return b, nil
}

// OutboxStore is the relay side of the outbox table. Claims use SKIP LOCKED so
// several workers can drain concurrently.
type OutboxStore struct {
	DB *sql.DB
}

func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{DB: db}
}

const claimOutboxSQL = `
UPDATE outbox SET state = $1, claimed_by = $2, claimed_at = NOW()
WHERE id = (
    SELECT id FROM outbox
    WHERE state IN ($3, $4) AND next_attempt_at <= NOW()
    ORDER BY next_attempt_at, created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Record, error) {
	var (
		rec     infraoutbox.Record
		headers []byte
	)
	err := s.DB.QueryRowContext(ctx, claimOutboxSQL,
		infraoutbox.StateClaimed, workerID, infraoutbox.StateNew, infraoutbox.StateFailed,
	).Scan(&rec.ID, &rec.Name, &rec.Payload, &rec.OccurredAt, &rec.Aggregate, &headers, &rec.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &rec.Headers); err != nil {
			return nil, fmt.Errorf("decode outbox headers: %w", err)
		}
	}
	rec.OccurredAt = rec.OccurredAt.UTC()
	return &rec, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE outbox SET state = $2, sent_at = NOW() WHERE id = $1`, id, infraoutbox.StateSent)
	return classify(err)
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE outbox SET state = $2, next_attempt_at = $3, last_error = $4, attempts = attempts + 1 WHERE id = $1`,
		id, infraoutbox.StateFailed, next.UTC(), errMsg)
	return classify(err)
}

// ReleaseStale returns records claimed before cutoff to FAILED.
func (s *OutboxStore) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE outbox SET state = $1, next_attempt_at = NOW() WHERE state = $2 AND claimed_at < $3`,
		infraoutbox.StateFailed, infraoutbox.StateClaimed, cutoff.UTC())
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

var _ infraoutbox.Store = (*OutboxStore)(nil)
