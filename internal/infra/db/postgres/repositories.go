package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type propertyRepository struct {
	unit *Unit
}

const selectPropertySQL = `
SELECT id, owner_id, title, nightly_rate, currency, max_guests, active, updated_at
FROM properties WHERE id = $1`

func (r propertyRepository) ByID(ctx context.Context, id property.ID) (*property.Property, error) {
	p, err := scanProperty(r.unit.tx.QueryRowContext(ctx, selectPropertySQL, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, property.ErrNotFound
		}
		return nil, classify(err)
	}
	return p, nil
}

func scanProperty(row *sql.Row) (*property.Property, error) {
	var (
		p        property.Property
		id       string
		rate     int64
		currency string
	)
	if err := row.Scan(&id, &p.OwnerID, &p.Title, &rate, &currency, &p.MaxGuests, &p.Active, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = property.ID(id)
	p.NightlyRate = money.Money{Amount: rate, Currency: strings.TrimSpace(currency)}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// PropertyWriter upserts property records outside any transaction.
type PropertyWriter struct {
	DB *sql.DB
}

const upsertPropertySQL = `
INSERT INTO properties (id, owner_id, title, nightly_rate, currency, max_guests, active, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    owner_id = EXCLUDED.owner_id,
    title = EXCLUDED.title,
    nightly_rate = EXCLUDED.nightly_rate,
    currency = EXCLUDED.currency,
    max_guests = EXCLUDED.max_guests,
    active = EXCLUDED.active,
    updated_at = EXCLUDED.updated_at`

func (w PropertyWriter) Save(ctx context.Context, p *property.Property) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := w.DB.ExecContext(ctx, upsertPropertySQL,
		string(p.ID), p.OwnerID, p.Title, p.NightlyRate.Amount, p.NightlyRate.Currency,
		p.MaxGuests, p.Active, p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert property: %w", classify(err))
	}
	return nil
}

type bookingRepository struct {
	unit *Unit
}

const bookingColumns = `id, property_id, user_id, check_in, check_out, guests, total_amount, currency,
    status, special_requests, created_at, updated_at, version`

func (r bookingRepository) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	rows, err := r.unit.tx.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	if err != nil {
		return nil, classify(err)
	}
	items, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, booking.ErrBookingNotFound
	}
	return items[0], nil
}

const (
	insertBookingSQL = `
INSERT INTO bookings (id, property_id, user_id, check_in, check_out, guests, total_amount, currency,
    status, special_requests, created_at, updated_at, version)
VALUES ($1, $2, $3, $4::date, $5::date, $6, $7, $8, $9, $10, $11, $12, $13)`

	updateBookingSQL = `
UPDATE bookings SET status = $2, special_requests = $3, updated_at = $4, version = $5
WHERE id = $1 AND version = $6`
)

// Save inserts version-0 bookings and updates the rest only when the stored
// version still matches.
func (r bookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	if err := r.unit.ensureWritable(); err != nil {
		return err
	}
	next := b.Version + 1
	if b.Version == 0 {
		_, err := r.unit.tx.ExecContext(ctx, insertBookingSQL,
			string(b.ID), string(b.PropertyID), b.UserID,
			daterange.Format(b.Range.CheckIn), daterange.Format(b.Range.CheckOut),
			b.Guests, b.Total.Amount, b.Total.Currency, string(b.Status), b.SpecialRequests,
			b.CreatedAt.UTC(), b.UpdatedAt.UTC(), next)
		if err != nil {
			if isUniqueViolation(err) {
				return uow.Retryable(booking.ErrVersionConflict)
			}
			return fmt.Errorf("insert booking: %w", classify(err))
		}
		b.Version = next
		return nil
	}
	res, err := r.unit.tx.ExecContext(ctx, updateBookingSQL,
		string(b.ID), string(b.Status), b.SpecialRequests, b.UpdatedAt.UTC(), next, b.Version)
	if err != nil {
		return fmt.Errorf("update booking: %w", classify(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if affected == 0 {
		return uow.Retryable(booking.ErrVersionConflict)
	}
	b.Version = next
	return nil
}

func (r bookingRepository) ListByProperty(ctx context.Context, id property.ID, f booking.Filter) ([]*booking.Booking, int, error) {
	return r.page(ctx, "property_id", string(id), f)
}

func (r bookingRepository) ListByUser(ctx context.Context, userID string, f booking.Filter) ([]*booking.Booking, int, error) {
	return r.page(ctx, "user_id", userID, f)
}

func (r bookingRepository) page(ctx context.Context, column, value string, f booking.Filter) ([]*booking.Booking, int, error) {
	f = f.Normalize()
	where, args := listWhere(column, value, f)

	var total int
	if err := r.unit.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		bookingColumns, where, len(args)+1, len(args)+2)
	rows, err := r.unit.tx.QueryContext(ctx, query, append(args, f.PerPage, f.Offset())...)
	if err != nil {
		return nil, 0, classify(err)
	}
	items, err := scanBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// listWhere mirrors booking.Filter.Matches.
func listWhere(column, value string, f booking.Filter) (string, []any) {
	clauses := []string{column + " = $1"}
	args := []any{value}
	if len(f.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(f.Statuses)))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, daterange.Format(f.From))
		clauses = append(clauses, fmt.Sprintf("check_out > $%d::date", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, daterange.Format(f.To))
		clauses = append(clauses, fmt.Sprintf("check_in < $%d::date", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func (r bookingRepository) ListBlocking(ctx context.Context, id property.ID, window daterange.DateRange) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE property_id = $1 AND status = ANY($2)`
	args := []any{string(id), pq.Array(statusStrings(booking.BlockingStatuses))}
	if window != (daterange.DateRange{}) {
		query += ` AND check_in < $3::date AND check_out > $4::date`
		args = append(args, daterange.Format(window.CheckOut), daterange.Format(window.CheckIn))
	}
	rows, err := r.unit.tx.QueryContext(ctx, query+` ORDER BY check_in`, args...)
	if err != nil {
		return nil, classify(err)
	}
	return scanBookings(rows)
}

func (r bookingRepository) ListApprovedEndingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = $1 AND check_out <= $2::date ORDER BY check_out`
	args := []any{string(booking.StatusApproved), daterange.Format(cutoff)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := r.unit.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	return scanBookings(rows)
}

func scanBookings(rows *sql.Rows) ([]*booking.Booking, error) {
	defer rows.Close()
	var out []*booking.Booking
	for rows.Next() {
		var (
			b                      booking.Booking
			id, propertyID, status string
			currency               string
			checkIn, checkOut      time.Time
		)
		if err := rows.Scan(&id, &propertyID, &b.UserID, &checkIn, &checkOut, &b.Guests, &b.Total.Amount,
			&currency, &status, &b.SpecialRequests, &b.CreatedAt, &b.UpdatedAt, &b.Version); err != nil {
			return nil, fmt.Errorf("scan booking: %w", classify(err))
		}
		b.ID = booking.BookingID(id)
		b.PropertyID = property.ID(propertyID)
		b.Status = booking.Status(status)
		b.Total.Currency = strings.TrimSpace(currency)
		b.Range = daterange.DateRange{CheckIn: daterange.Day(checkIn), CheckOut: daterange.Day(checkOut)}
		b.CreatedAt = b.CreatedAt.UTC()
		b.UpdatedAt = b.UpdatedAt.UTC()
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func statusStrings(in []booking.Status) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

type overrideRepository struct {
	unit *Unit
}

const overrideColumns = `property_id, date, available, price_amount, price_currency, updated_by, updated_at`

func (r overrideRepository) ListByProperty(ctx context.Context, id property.ID, window daterange.DateRange) ([]*availability.Override, error) {
	query := `SELECT ` + overrideColumns + ` FROM availability_overrides WHERE property_id = $1`
	args := []any{string(id)}
	if window != (daterange.DateRange{}) {
		query += ` AND date >= $2::date AND date < $3::date`
		args = append(args, daterange.Format(window.CheckIn), daterange.Format(window.CheckOut))
	}
	rows, err := r.unit.tx.QueryContext(ctx, query+` ORDER BY date`, args...)
	if err != nil {
		return nil, classify(err)
	}
	return scanOverrides(rows)
}

func (r overrideRepository) Get(ctx context.Context, id property.ID, date time.Time) (*availability.Override, error) {
	rows, err := r.unit.tx.QueryContext(ctx,
		`SELECT `+overrideColumns+` FROM availability_overrides WHERE property_id = $1 AND date = $2::date`,
		string(id), daterange.Format(date))
	if err != nil {
		return nil, classify(err)
	}
	items, err := scanOverrides(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, availability.ErrOverrideNotFound
	}
	return items[0], nil
}

const upsertOverrideSQL = `
INSERT INTO availability_overrides (property_id, date, available, price_amount, price_currency, updated_by, updated_at)
VALUES ($1, $2::date, $3, $4, $5, $6, $7)
ON CONFLICT (property_id, date) DO UPDATE SET
    available = EXCLUDED.available,
    price_amount = EXCLUDED.price_amount,
    price_currency = EXCLUDED.price_currency,
    updated_by = EXCLUDED.updated_by,
    updated_at = EXCLUDED.updated_at`

func (r overrideRepository) Save(ctx context.Context, o *availability.Override) error {
	if err := r.unit.ensureWritable(); err != nil {
		return err
	}
	var (
		amount   sql.NullInt64
		currency sql.NullString
	)
	if o.PriceOverride != nil {
		amount = sql.NullInt64{Int64: o.PriceOverride.Amount, Valid: true}
		currency = sql.NullString{String: o.PriceOverride.Currency, Valid: true}
	}
	_, err := r.unit.tx.ExecContext(ctx, upsertOverrideSQL,
		string(o.PropertyID), daterange.Format(o.Date), o.Available, amount, currency, o.UpdatedBy, o.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert override: %w", classify(err))
	}
	return nil
}

func (r overrideRepository) Delete(ctx context.Context, id property.ID, date time.Time) error {
	if err := r.unit.ensureWritable(); err != nil {
		return err
	}
	res, err := r.unit.tx.ExecContext(ctx,
		`DELETE FROM availability_overrides WHERE property_id = $1 AND date = $2::date`,
		string(id), daterange.Format(date))
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if affected == 0 {
		return availability.ErrOverrideNotFound
	}
	return nil
}

func scanOverrides(rows *sql.Rows) ([]*availability.Override, error) {
	defer rows.Close()
	var out []*availability.Override
	for rows.Next() {
		var (
			o          availability.Override
			propertyID string
			date       time.Time
			amount     sql.NullInt64
			currency   sql.NullString
		)
		if err := rows.Scan(&propertyID, &date, &o.Available, &amount, &currency, &o.UpdatedBy, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan override: %w", classify(err))
		}
		o.PropertyID = property.ID(propertyID)
		o.Date = daterange.Day(date)
		o.UpdatedAt = o.UpdatedAt.UTC()
		if amount.Valid {
			o.PriceOverride = &money.Money{Amount: amount.Int64, Currency: strings.TrimSpace(currency.String)}
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}
