package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays committed records to the broker as CloudEvents. Records of
// one aggregate are keyed by aggregate id so they keep their order per partition.
type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	BatchSize   int

	// ClaimTimeout returns records stuck in CLAIMED to the queue when the
	// store supports it. Zero disables the release.
	ClaimTimeout time.Duration
	Logger       *slog.Logger

	once sync.Once
	wake chan struct{}
}

func (w *Worker) init() {
	w.once.Do(func() {
		w.wake = make(chan struct{}, 1)
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
	})
}

// Flush asks the worker to poll now instead of waiting for the next tick.
func (w *Worker) Flush(context.Context) error {
	w.init()
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	w.init()
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.releaseStale(ctx)
		case <-w.wake:
		}
		if _, err := w.Drain(ctx); err != nil && w.Logger != nil && ctx.Err() == nil {
			w.Logger.Error("outbox relay failed", "worker", w.ID, "error", err)
		}
	}
}

// Drain publishes due records until none is left or the batch is exhausted.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	w.init()
	sent := 0
	for i := 0; i < w.batchSize(); i++ {
		ok, err := w.processOnce(ctx)
		if err != nil {
			return sent, err
		}
		if !ok {
			return sent, nil
		}
		sent++
	}
	return sent, nil
}

// processOnce reports whether a record was claimed.
func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	rec, err := w.Store.Claim(ctx, w.ID)
	if err != nil || rec == nil {
		return false, err
	}
	topic := w.topicFor(rec.Name)
	payload, headers, err := w.formatPayload(rec)
	if err == nil {
		err = w.Producer.Publish(ctx, topic, rec.Aggregate, payload, headers)
	}
	if err != nil {
		if w.Logger != nil {
			w.Logger.Warn("outbox publish failed", "event_id", rec.ID, "event", rec.Name, "attempts", rec.Attempts+1, "error", err)
		}
		return true, w.Store.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), err.Error())
	}
	return true, w.Store.MarkSent(ctx, rec.ID)
}

func (w *Worker) formatPayload(rec *Record) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.Name + ".v1",
		"source":          w.source(),
		"subject":         rec.Aggregate,
		"time":            rec.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := rec.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      rec.Name,
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps booking.approved to <prefix>booking.events.v1.
func (w *Worker) topicFor(name string) string {
	return TopicFor(w.TopicPrefix, name)
}

// StaleReleaser is implemented by stores that can requeue abandoned claims.
type StaleReleaser interface {
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
}

func (w *Worker) releaseStale(ctx context.Context) {
	releaser, ok := w.Store.(StaleReleaser)
	if !ok || w.ClaimTimeout <= 0 {
		return
	}
	n, err := releaser.ReleaseStale(ctx, time.Now().UTC().Add(-w.ClaimTimeout))
	if w.Logger == nil {
		return
	}
	if err != nil {
		w.Logger.Warn("outbox release failed", "worker", w.ID, "error", err)
	} else if n > 0 {
		w.Logger.Info("outbox claims released", "worker", w.ID, "count", n)
	}
}

func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 100
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://staybook"
}
