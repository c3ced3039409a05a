package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "staybook/internal/app/outbox"
	infraoutbox "staybook/internal/infra/outbox"
)

type outboxEntry struct {
	record    appoutbox.EventRecord
	state     string
	attempts  int
	nextAt    time.Time
	claimedBy string
	lastError string
}

// Outbox holds committed event records until the relay worker publishes them.
type Outbox struct {
	mu      sync.Mutex
	entries []*outboxEntry
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) append(records ...appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, rec := range records {
		o.entries = append(o.entries, &outboxEntry{record: rec, state: infraoutbox.StateNew, nextAt: now})
	}
}

func (o *Outbox) Claim(_ context.Context, workerID string) (*infraoutbox.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range o.entries {
		if e.state != infraoutbox.StateNew && e.state != infraoutbox.StateFailed {
			continue
		}
		if e.nextAt.After(now) {
			continue
		}
		e.state = infraoutbox.StateClaimed
		e.claimedBy = workerID
		return &infraoutbox.Record{EventRecord: e.record, Attempts: e.attempts}, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.entries {
		if e.record.ID == id {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.record.ID == id {
			e.state = infraoutbox.StateFailed
			e.attempts++
			e.nextAt = next
			e.lastError = errMsg
		}
	}
	return nil
}

// Pending returns records not yet published, oldest first.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.record)
	}
	return out
}

var _ infraoutbox.Store = (*Outbox)(nil)
