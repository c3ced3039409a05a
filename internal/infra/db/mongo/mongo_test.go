package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(mongo.CommandError{Code: codeWriteConflict, Message: "WriteConflict"}), uow.ErrRetryable)
	assert.ErrorIs(t, classify(mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}), uow.ErrRetryable)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), uow.ErrRetryable)
	assert.ErrorIs(t, classify(errors.New("bad bson")), uow.ErrStorageFailure)
}

func TestListFilter_MirrorsDomainFilter(t *testing.T) {
	from := time.Date(2024, 7, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	got := listFilter(bson.M{"property_id": "p-1"}, booking.Filter{
		Statuses: []booking.Status{booking.StatusPending},
		From:     from,
		To:       to,
	})
	assert.Equal(t, bson.M{
		"property_id": "p-1",
		"status":      bson.M{"$in": []string{"pending"}},
		"check_out":   bson.M{"$gt": daterange.Day(from)},
		"check_in":    bson.M{"$lt": to},
	}, got)
}

func TestBookingDocument_KeepsDomainState(t *testing.T) {
	b := &booking.Booking{
		ID:         "b-1",
		PropertyID: "p-1",
		UserID:     "guest-1",
		Range: daterange.DateRange{
			CheckIn:  time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			CheckOut: time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC),
		},
		Guests:  2,
		Total:   money.Must(30000, "USD"),
		Status:  booking.StatusApproved,
		Version: 3,
	}
	got := newBookingDocument(b).toAggregate()
	assert.Equal(t, b.Range, got.Range)
	assert.Equal(t, b.Total, got.Total)
	assert.Equal(t, b.Status, got.Status)
	assert.Equal(t, int64(3), got.Version)
}

func TestOverrideDocument_ID(t *testing.T) {
	price := money.Must(5000, "USD")
	o := &availability.Override{PropertyID: "p-1", Date: time.Date(2024, 7, 2, 13, 0, 0, 0, time.UTC), PriceOverride: &price}
	doc := newOverrideDocument(o)
	assert.Equal(t, "p-1|2024-07-02", doc.ID)
	assert.Equal(t, price, *doc.toOverride().PriceOverride)
}
