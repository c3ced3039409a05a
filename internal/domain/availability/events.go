package availability

import (
	"time"

	"staybook/internal/domain/shared/money"
)

type OverrideSet struct {
	PropertyID    string       `json:"property_id"`
	Date          string       `json:"date"`
	Available     bool         `json:"available"`
	PriceOverride *money.Money `json:"price_override,omitempty"`
	At            time.Time    `json:"at"`
}

func (e OverrideSet) EventName() string     { return "availability.override_set" }
func (e OverrideSet) AggregateID() string   { return e.PropertyID }
func (e OverrideSet) OccurredAt() time.Time { return e.At }

type OverrideRemoved struct {
	PropertyID string    `json:"property_id"`
	Date       string    `json:"date"`
	RemovedBy  string    `json:"removed_by"`
	At         time.Time `json:"at"`
}

func (e OverrideRemoved) EventName() string     { return "availability.override_removed" }
func (e OverrideRemoved) AggregateID() string   { return e.PropertyID }
func (e OverrideRemoved) OccurredAt() time.Time { return e.At }
