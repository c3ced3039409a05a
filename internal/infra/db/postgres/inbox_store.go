package postgres

import (
	"context"
	"database/sql"
)

// InboxStore records consumed event ids per consumer.
type InboxStore struct {
	DB       *sql.DB
	Consumer string
}

func NewInboxStore(db *sql.DB, consumer string) *InboxStore {
	return &InboxStore{DB: db, Consumer: consumer}
}

func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO inbox (event_id, consumer) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		eventID, s.Consumer)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err)
	}
	return n == 0, nil
}

func (s *InboxStore) Forget(ctx context.Context, eventID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM inbox WHERE event_id = $1 AND consumer = $2`, eventID, s.Consumer)
	return classify(err)
}
