package dto

import (
	"staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

type Night struct {
	Date      string   `json:"date"`
	Available bool     `json:"available"`
	Reason    string   `json:"reason,omitempty"`
	Price     MoneyDTO `json:"price"`
}

type Availability struct {
	PropertyID string   `json:"property_id"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Nights     []Night  `json:"nights"`
	Blocked    []string `json:"blocked"`
}

func MapAvailability(id property.ID, window daterange.DateRange, nights []availability.NightStatus) Availability {
	out := Availability{
		PropertyID: string(id),
		From:       daterange.Format(window.CheckIn),
		To:         daterange.Format(window.CheckOut),
		Nights:     make([]Night, 0, len(nights)),
		Blocked:    []string{},
	}
	for _, n := range nights {
		date := daterange.Format(n.Date)
		out.Nights = append(out.Nights, Night{
			Date:      date,
			Available: n.Available,
			Reason:    string(n.Reason),
			Price:     MapMoney(n.Price),
		})
		if !n.Available {
			out.Blocked = append(out.Blocked, date)
		}
	}
	return out
}

type Override struct {
	PropertyID    string    `json:"property_id"`
	Date          string    `json:"date"`
	Available     bool      `json:"available"`
	PriceOverride *MoneyDTO `json:"price_override,omitempty"`
}

func MapOverride(o *availability.Override) *Override {
	if o == nil {
		return nil
	}
	out := &Override{
		PropertyID: string(o.PropertyID),
		Date:       daterange.Format(o.Date),
		Available:  o.Available,
	}
	if o.PriceOverride != nil {
		m := MapMoney(*o.PriceOverride)
		out.PriceOverride = &m
	}
	return out
}

// CalendarFeed is the published location of a property's iCal export.
type CalendarFeed struct {
	PropertyID string `json:"property_id"`
	Location   string `json:"location"`
	Events     int    `json:"events"`
}
