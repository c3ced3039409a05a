package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// InboxStore records consumed event ids per consumer in app_inbox. The unique
// (event_id, consumer) index turns a redelivery into a duplicate key error.
type InboxStore struct {
	col      *mongo.Collection
	consumer string
}

func NewInboxStore(db *mongo.Database, consumer string) *InboxStore {
	return &InboxStore{col: db.Collection(colInbox), consumer: consumer}
}

func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": time.Now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return false, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, classify(err)
}

func (s *InboxStore) Forget(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"event_id": eventID, "consumer": s.consumer})
	return classify(err)
}
