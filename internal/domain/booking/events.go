package booking

import (
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

type BookingRequested struct {
	BookingID  BookingID   `json:"booking_id"`
	PropertyID property.ID `json:"property_id"`
	UserID     string      `json:"user_id"`
	CheckIn    string      `json:"check_in"`
	CheckOut   string      `json:"check_out"`
	Guests     int         `json:"guests"`
	Total      money.Money `json:"total"`
	At         time.Time   `json:"at"`
}

func (e BookingRequested) EventName() string     { return "booking.requested" }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

// BookingTransitioned is named after the target status: booking.approved,
// booking.denied, booking.cancelled, booking.completed.
type BookingTransitioned struct {
	BookingID  BookingID   `json:"booking_id"`
	PropertyID property.ID `json:"property_id"`
	UserID     string      `json:"user_id"`
	From       Status      `json:"from"`
	To         Status      `json:"to"`
	Effect     string      `json:"effect"`
	ActorID    string      `json:"actor_id"`
	Reason     string      `json:"reason,omitempty"`
	CheckIn    string      `json:"check_in"`
	CheckOut   string      `json:"check_out"`
	At         time.Time   `json:"at"`
}

func (e BookingTransitioned) EventName() string     { return "booking." + string(e.To) }
func (e BookingTransitioned) AggregateID() string   { return string(e.BookingID) }
func (e BookingTransitioned) OccurredAt() time.Time { return e.At }
