package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "staybook/internal/app/outbox"
	infraoutbox "staybook/internal/infra/outbox"
)

type eventDocument struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Payload     []byte            `bson:"payload"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	Aggregate   string            `bson:"aggregate"`
	Headers     map[string]string `bson:"headers"`
	State       string            `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	ClaimedBy   string            `bson:"claimed_by,omitempty"`
	ClaimedAt   time.Time         `bson:"claimed_at,omitempty"`
	SentAt      time.Time         `bson:"sent_at,omitempty"`
	LastError   string            `bson:"last_error,omitempty"`
	CreatedAt   time.Time         `bson:"created_at"`
}

func newEventDocument(rec appoutbox.EventRecord, now time.Time) eventDocument {
	return eventDocument{
		ID:          rec.ID,
		Name:        rec.Name,
		Payload:     rec.Payload,
		OccurredAt:  rec.OccurredAt,
		Aggregate:   rec.Aggregate,
		Headers:     rec.Headers,
		State:       infraoutbox.StateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
}

func (d eventDocument) toRecord() *infraoutbox.Record {
	return &infraoutbox.Record{
		EventRecord: appoutbox.EventRecord{
			ID:         d.ID,
			Name:       d.Name,
			Payload:    d.Payload,
			OccurredAt: d.OccurredAt,
			Aggregate:  d.Aggregate,
			Headers:    d.Headers,
		},
		Attempts: d.Attempts,
	}
}

// unitOutbox inserts records in the unit's transaction.
type unitOutbox struct {
	col  *mongo.Collection
	unit *Unit
}

func (o unitOutbox) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	if err := o.unit.ensureWritable(); err != nil {
		return err
	}
	_, err := o.col.InsertOne(o.unit.sc(ctx), newEventDocument(rec, time.Now().UTC()))
	return classify(err)
}

// OutboxStore is the relay side of app_outbox. Sent records are kept for
// inspection and flagged SENT.
type OutboxStore struct {
	col *mongo.Collection
}

func NewOutboxStore(db *mongo.Database) *OutboxStore {
	return &OutboxStore{col: db.Collection(colOutbox)}
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Record, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"state":           bson.M{"$in": []string{infraoutbox.StateNew, infraoutbox.StateFailed}},
		"next_attempt_at": bson.M{"$lte": now},
	}
	update := bson.M{"$set": bson.M{"state": infraoutbox.StateClaimed, "claimed_by": workerID, "claimed_at": now}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "next_attempt_at", Value: 1}, {Key: "created_at", Value: 1}})
	var doc eventDocument
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return doc.toRecord(), nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"state": infraoutbox.StateSent, "sent_at": time.Now().UTC()}})
	return classify(err)
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	update := bson.M{
		"$set": bson.M{
			"state":           infraoutbox.StateFailed,
			"next_attempt_at": next,
			"last_error":      errMsg,
		},
		"$inc": bson.M{"attempts": 1},
	}
	_, err := s.col.UpdateByID(ctx, id, update)
	return classify(err)
}

// ReleaseStale returns records claimed before cutoff to FAILED so another
// worker can pick them up after a crash.
func (s *OutboxStore) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.col.UpdateMany(ctx,
		bson.M{"state": infraoutbox.StateClaimed, "claimed_at": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{"state": infraoutbox.StateFailed, "next_attempt_at": time.Now().UTC()}})
	if err != nil {
		return 0, classify(err)
	}
	return res.ModifiedCount, nil
}

var _ infraoutbox.Store = (*OutboxStore)(nil)
