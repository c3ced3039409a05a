package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type propertyRepository struct {
	col  *mongo.Collection
	unit *Unit
}

func (r propertyRepository) ByID(ctx context.Context, id property.ID) (*property.Property, error) {
	var doc propertyDocument
	if err := r.col.FindOne(r.unit.sc(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, property.ErrNotFound
		}
		return nil, classify(err)
	}
	return doc.toProperty(), nil
}

// PropertyWriter upserts property records outside any transaction. Fixture
// loaders use it; the listing service owns the records in production.
type PropertyWriter struct {
	DB *mongo.Database
}

func (w PropertyWriter) Save(ctx context.Context, p *property.Property) error {
	if err := p.Validate(); err != nil {
		return err
	}
	doc := newPropertyDocument(p)
	_, err := w.DB.Collection(colProperties).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return classify(err)
}

type bookingRepository struct {
	col  *mongo.Collection
	unit *Unit
}

func (r bookingRepository) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(r.unit.sc(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, classify(err)
	}
	return doc.toAggregate(), nil
}

// Save upserts on (_id, version); a stale version misses the filter and the
// upsert collides on _id.
func (r bookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	if err := r.unit.ensureWritable(); err != nil {
		return err
	}
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	res, err := r.col.UpdateOne(r.unit.sc(ctx), filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return uow.Retryable(booking.ErrVersionConflict)
		}
		return classify(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return uow.Retryable(booking.ErrVersionConflict)
	}
	b.Version = doc.Version
	return nil
}

func (r bookingRepository) ListByProperty(ctx context.Context, id property.ID, f booking.Filter) ([]*booking.Booking, int, error) {
	return r.page(ctx, listFilter(bson.M{"property_id": string(id)}, f), f)
}

func (r bookingRepository) ListByUser(ctx context.Context, userID string, f booking.Filter) ([]*booking.Booking, int, error) {
	return r.page(ctx, listFilter(bson.M{"user_id": userID}, f), f)
}

func (r bookingRepository) page(ctx context.Context, filter bson.M, f booking.Filter) ([]*booking.Booking, int, error) {
	f = f.Normalize()
	sctx := r.unit.sc(ctx)
	total, err := r.col.CountDocuments(sctx, filter)
	if err != nil {
		return nil, 0, classify(err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(f.Offset())).
		SetLimit(int64(f.PerPage))
	items, err := r.find(sctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func (r bookingRepository) ListBlocking(ctx context.Context, id property.ID, window daterange.DateRange) ([]*booking.Booking, error) {
	filter := bson.M{
		"property_id": string(id),
		"status":      bson.M{"$in": statusStrings(booking.BlockingStatuses)},
	}
	if window != (daterange.DateRange{}) {
		filter["check_in"] = bson.M{"$lt": window.CheckOut}
		filter["check_out"] = bson.M{"$gt": window.CheckIn}
	}
	return r.find(r.unit.sc(ctx), filter, options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}}))
}

func (r bookingRepository) ListApprovedEndingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*booking.Booking, error) {
	filter := bson.M{
		"status":    string(booking.StatusApproved),
		"check_out": bson.M{"$lte": daterange.Day(cutoff)},
	}
	opts := options.Find().SetSort(bson.D{{Key: "check_out", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(r.unit.sc(ctx), filter, opts)
}

func (r bookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*booking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(err)
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}
	out := make([]*booking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

// listFilter mirrors booking.Filter.Matches.
func listFilter(base bson.M, f booking.Filter) bson.M {
	f = f.Normalize()
	if len(f.Statuses) > 0 {
		base["status"] = bson.M{"$in": statusStrings(f.Statuses)}
	}
	if !f.From.IsZero() {
		base["check_out"] = bson.M{"$gt": f.From}
	}
	if !f.To.IsZero() {
		base["check_in"] = bson.M{"$lt": f.To}
	}
	return base
}

func statusStrings(in []booking.Status) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

type overrideRepository struct {
	col  *mongo.Collection
	unit *Unit
}

func (r overrideRepository) ListByProperty(ctx context.Context, id property.ID, window daterange.DateRange) ([]*availability.Override, error) {
	filter := bson.M{"property_id": string(id)}
	if window != (daterange.DateRange{}) {
		filter["date"] = bson.M{"$gte": window.CheckIn, "$lt": window.CheckOut}
	}
	sctx := r.unit.sc(ctx)
	cur, err := r.col.Find(sctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, classify(err)
	}
	var docs []overrideDocument
	if err := cur.All(sctx, &docs); err != nil {
		return nil, classify(err)
	}
	out := make([]*availability.Override, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toOverride())
	}
	return out, nil
}

func (r overrideRepository) Get(ctx context.Context, id property.ID, date time.Time) (*availability.Override, error) {
	var doc overrideDocument
	if err := r.col.FindOne(r.unit.sc(ctx), bson.M{"_id": overrideID(id, date)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availability.ErrOverrideNotFound
		}
		return nil, classify(err)
	}
	return doc.toOverride(), nil
}

func (r overrideRepository) Save(ctx context.Context, o *availability.Override) error {
	if err := r.unit.ensureWritable(); err != nil {
		return err
	}
	doc := newOverrideDocument(o)
	_, err := r.col.ReplaceOne(r.unit.sc(ctx), bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return classify(err)
}

func (r overrideRepository) Delete(ctx context.Context, id property.ID, date time.Time) error {
	if err := r.unit.ensureWritable(); err != nil {
		return err
	}
	res, err := r.col.DeleteOne(r.unit.sc(ctx), bson.M{"_id": overrideID(id, date)})
	if err != nil {
		return classify(err)
	}
	if res.DeletedCount == 0 {
		return availability.ErrOverrideNotFound
	}
	return nil
}

func overrideID(id property.ID, date time.Time) string {
	return string(id) + "|" + daterange.Format(date)
}

type propertyDocument struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Title     string    `bson:"title"`
	Rate      int64     `bson:"nightly_rate"`
	Currency  string    `bson:"currency"`
	MaxGuests int       `bson:"max_guests"`
	Active    bool      `bson:"active"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func newPropertyDocument(p *property.Property) propertyDocument {
	return propertyDocument{
		ID:        string(p.ID),
		OwnerID:   p.OwnerID,
		Title:     p.Title,
		Rate:      p.NightlyRate.Amount,
		Currency:  p.NightlyRate.Currency,
		MaxGuests: p.MaxGuests,
		Active:    p.Active,
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func (d propertyDocument) toProperty() *property.Property {
	return &property.Property{
		ID:          property.ID(d.ID),
		OwnerID:     d.OwnerID,
		Title:       d.Title,
		NightlyRate: money.Money{Amount: d.Rate, Currency: d.Currency},
		MaxGuests:   d.MaxGuests,
		Active:      d.Active,
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type bookingDocument struct {
	ID              string    `bson:"_id"`
	PropertyID      string    `bson:"property_id"`
	UserID          string    `bson:"user_id"`
	CheckIn         time.Time `bson:"check_in"`
	CheckOut        time.Time `bson:"check_out"`
	Guests          int       `bson:"guests"`
	TotalAmount     int64     `bson:"total_amount"`
	Currency        string    `bson:"currency"`
	Status          string    `bson:"status"`
	SpecialRequests string    `bson:"special_requests,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
	Version         int64     `bson:"version"`
}

func newBookingDocument(b *booking.Booking) bookingDocument {
	return bookingDocument{
		ID:              string(b.ID),
		PropertyID:      string(b.PropertyID),
		UserID:          b.UserID,
		CheckIn:         b.Range.CheckIn,
		CheckOut:        b.Range.CheckOut,
		Guests:          b.Guests,
		TotalAmount:     b.Total.Amount,
		Currency:        b.Total.Currency,
		Status:          string(b.Status),
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
		Version:         b.Version,
	}
}

func (d bookingDocument) toAggregate() *booking.Booking {
	return &booking.Booking{
		ID:              booking.BookingID(d.ID),
		PropertyID:      property.ID(d.PropertyID),
		UserID:          d.UserID,
		Range:           daterange.DateRange{CheckIn: daterange.Day(d.CheckIn), CheckOut: daterange.Day(d.CheckOut)},
		Guests:          d.Guests,
		Total:           money.Money{Amount: d.TotalAmount, Currency: d.Currency},
		Status:          booking.Status(d.Status),
		SpecialRequests: d.SpecialRequests,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
		Version:         d.Version,
	}
}

type overrideDocument struct {
	ID            string    `bson:"_id"`
	PropertyID    string    `bson:"property_id"`
	Date          time.Time `bson:"date"`
	Available     bool      `bson:"available"`
	PriceAmount   *int64    `bson:"price_amount,omitempty"`
	PriceCurrency string    `bson:"price_currency,omitempty"`
	UpdatedBy     string    `bson:"updated_by"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func newOverrideDocument(o *availability.Override) overrideDocument {
	doc := overrideDocument{
		ID:         overrideID(o.PropertyID, o.Date),
		PropertyID: string(o.PropertyID),
		Date:       daterange.Day(o.Date),
		Available:  o.Available,
		UpdatedBy:  o.UpdatedBy,
		UpdatedAt:  o.UpdatedAt.UTC(),
	}
	if o.PriceOverride != nil {
		amount := o.PriceOverride.Amount
		doc.PriceAmount = &amount
		doc.PriceCurrency = o.PriceOverride.Currency
	}
	return doc
}

func (d overrideDocument) toOverride() *availability.Override {
	o := &availability.Override{
		PropertyID: property.ID(d.PropertyID),
		Date:       daterange.Day(d.Date),
		Available:  d.Available,
		UpdatedBy:  d.UpdatedBy,
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	if d.PriceAmount != nil {
		o.PriceOverride = &money.Money{Amount: *d.PriceAmount, Currency: d.PriceCurrency}
	}
	return o
}
