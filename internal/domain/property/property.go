package property

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/shared/money"
)

var (
	ErrNotFound     = errors.New("property: not found")
	ErrInactive     = errors.New("property: not accepting bookings")
	ErrInvalidRate  = errors.New("property: nightly rate must be positive")
	ErrInvalidLimit = errors.New("property: max guests must be at least 1")
	ErrOwnerMissing = errors.New("property: owner id is required")
)

type ID string

// Property is the slice of a listing this service needs. Records are owned by
// the listing service; the booking core only reads them.
type Property struct {
	ID          ID
	OwnerID     string
	Title       string
	NightlyRate money.Money
	MaxGuests   int
	Active      bool
	UpdatedAt   time.Time
}

// Repository reads properties; ByID fails with ErrNotFound.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Property, error)
}

// Writer is used by fixture loaders and tests to seed property records.
type Writer interface {
	Save(ctx context.Context, p *Property) error
}

func (p *Property) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return errors.New("property: id is required")
	}
	if strings.TrimSpace(p.OwnerID) == "" {
		return ErrOwnerMissing
	}
	if p.NightlyRate.Amount <= 0 || p.NightlyRate.Currency == "" {
		return ErrInvalidRate
	}
	if p.MaxGuests < 1 {
		return ErrInvalidLimit
	}
	return nil
}

// EnsureBookable fails with ErrInactive for properties that are switched off.
func (p *Property) EnsureBookable() error {
	if !p.Active {
		return ErrInactive
	}
	return nil
}

func (p *Property) IsOwnedBy(userID string) bool {
	return userID != "" && p.OwnerID == userID
}
