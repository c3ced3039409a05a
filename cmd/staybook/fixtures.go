package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

type propertyFixture struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	NightlyRate int64  `json:"nightly_rate"`
	Currency    string `json:"currency"`
	MaxGuests   int    `json:"max_guests"`
	Active      *bool  `json:"active"`
}

// loadPropertyFixtures seeds property records from a JSON array. A missing
// file is not an error; invalid entries are logged and skipped.
func loadPropertyFixtures(ctx context.Context, path, defaultCurrency string, w property.Writer, logger *slog.Logger) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("property fixtures file not found, skipping", "path", path)
			return 0, nil
		}
		return 0, fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}
	now := time.Now().UTC()
	loaded := 0
	for _, fx := range fixtures {
		p := fx.toProperty(defaultCurrency, now)
		if err := w.Save(ctx, p); err != nil {
			logger.Error("property fixture rejected", "property_id", fx.ID, "error", err)
			continue
		}
		loaded++
	}
	logger.Info("property fixtures imported", "path", path, "count", loaded)
	return loaded, nil
}

func (fx propertyFixture) toProperty(defaultCurrency string, now time.Time) *property.Property {
	currency := strings.ToUpper(strings.TrimSpace(fx.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	active := true
	if fx.Active != nil {
		active = *fx.Active
	}
	return &property.Property{
		ID:          property.ID(strings.TrimSpace(fx.ID)),
		OwnerID:     strings.TrimSpace(fx.OwnerID),
		Title:       fx.Title,
		NightlyRate: money.Money{Amount: fx.NightlyRate, Currency: currency},
		MaxGuests:   fx.MaxGuests,
		Active:      active,
		UpdatedAt:   now,
	}
}
