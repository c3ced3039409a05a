package dto

import (
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency}
}

type Booking struct {
	ID              string    `json:"id"`
	PropertyID      string    `json:"property_id"`
	UserID          string    `json:"user_id"`
	CheckIn         string    `json:"check_in"`
	CheckOut        string    `json:"check_out"`
	Nights          int       `json:"nights"`
	Guests          int       `json:"guests"`
	Total           MoneyDTO  `json:"total"`
	Status          string    `json:"status"`
	SpecialRequests string    `json:"special_requests,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func MapBooking(b *booking.Booking) *Booking {
	if b == nil {
		return nil
	}
	return &Booking{
		ID:              string(b.ID),
		PropertyID:      string(b.PropertyID),
		UserID:          b.UserID,
		CheckIn:         daterange.Format(b.Range.CheckIn),
		CheckOut:        daterange.Format(b.Range.CheckOut),
		Nights:          b.Range.Nights(),
		Guests:          b.Guests,
		Total:           MapMoney(b.Total),
		Status:          string(b.Status),
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// BookingPage mirrors the paginated listing shape clients already consume.
type BookingPage struct {
	Items      []Booking `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PerPage    int       `json:"per_page"`
	TotalPages int       `json:"total_pages"`
}

func MapBookingPage(items []*booking.Booking, total int, filter booking.Filter) BookingPage {
	page := BookingPage{
		Items:      make([]Booking, 0, len(items)),
		Total:      total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: booking.TotalPages(total, filter.PerPage),
	}
	for _, b := range items {
		page.Items = append(page.Items, *MapBooking(b))
	}
	return page
}

// CompletionReport summarizes one completion sweep.
type CompletionReport struct {
	Completed []string `json:"completed"`
	Failed    []string `json:"failed,omitempty"`
}
