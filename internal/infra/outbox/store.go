package outbox

import (
	"context"
	"time"

	appoutbox "staybook/internal/app/outbox"
)

const (
	StateNew     = "NEW"
	StateClaimed = "CLAIMED"
	StateSent    = "SENT"
	StateFailed  = "FAILED"
)

// Record is a committed event waiting for the relay.
type Record struct {
	appoutbox.EventRecord
	Attempts int
}

// Store is the relay side of an outbox table or collection.
type Store interface {
	// Claim returns the next due record or nil when none is due.
	Claim(ctx context.Context, workerID string) (*Record, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}
