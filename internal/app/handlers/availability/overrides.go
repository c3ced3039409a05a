package availability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/domain/access"
	domainavailability "staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

const (
	setOverrideKey    = "availability.override.set"
	removeOverrideKey = "availability.override.remove"
)

// SetOverrideCommand blocks, reopens or re-prices one night of a property.
// Existing bookings are not touched by an override.
type SetOverrideCommand struct {
	Actor         access.Principal
	PropertyID    string `validate:"required"`
	Date          time.Time
	Available     bool
	PriceOverride *int64 `validate:"omitempty,gt=0"`
}

func (c SetOverrideCommand) Key() string { return setOverrideKey }

func (c SetOverrideCommand) ActorPrincipal() access.Principal { return c.Actor }

type RemoveOverrideCommand struct {
	Actor      access.Principal
	PropertyID string `validate:"required"`
	Date       time.Time
}

func (c RemoveOverrideCommand) Key() string { return removeOverrideKey }

func (c RemoveOverrideCommand) ActorPrincipal() access.Principal { return c.Actor }

type OverrideHandler struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Now     func() time.Time
}

func (h *OverrideHandler) Set(ctx context.Context, cmd SetOverrideCommand) (*dto.Override, error) {
	unit, err := support.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	prop, err := unit.Properties().ByID(ctx, property.ID(strings.TrimSpace(cmd.PropertyID)))
	if err != nil {
		return nil, err
	}
	if err := support.OwnerOrAdmin(prop, cmd.Actor); err != nil {
		return nil, err
	}
	var price *money.Money
	if cmd.PriceOverride != nil {
		m, err := money.New(*cmd.PriceOverride, prop.NightlyRate.Currency)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domainavailability.ErrOverridePrice, err)
		}
		price = &m
	}
	o, err := domainavailability.NewOverride(domainavailability.SetOverrideParams{
		PropertyID:    prop.ID,
		Date:          cmd.Date,
		Available:     cmd.Available,
		PriceOverride: price,
		UpdatedBy:     cmd.Actor.UserID,
		Now:           h.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.LockProperty(ctx, prop.ID); err != nil {
		return nil, err
	}
	if err := unit.Overrides().Save(ctx, o); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, unit.Outbox(), h.Encoder, o); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("availability override set", "property_id", prop.ID, "date", o.Date, "available", o.Available, "by", cmd.Actor.UserID)
	}
	return dto.MapOverride(o), nil
}

func (h *OverrideHandler) Remove(ctx context.Context, cmd RemoveOverrideCommand) (*dto.Override, error) {
	unit, err := support.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	prop, err := unit.Properties().ByID(ctx, property.ID(strings.TrimSpace(cmd.PropertyID)))
	if err != nil {
		return nil, err
	}
	if err := support.OwnerOrAdmin(prop, cmd.Actor); err != nil {
		return nil, err
	}
	if cmd.Date.IsZero() {
		return nil, domainavailability.ErrOverrideDate
	}
	if err := unit.LockProperty(ctx, prop.ID); err != nil {
		return nil, err
	}
	o, err := unit.Overrides().Get(ctx, prop.ID, cmd.Date)
	if err != nil {
		return nil, err
	}
	o.MarkRemoved(cmd.Actor.UserID, h.now())
	if err := unit.Overrides().Delete(ctx, prop.ID, o.Date); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, unit.Outbox(), h.Encoder, o); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("availability override removed", "property_id", prop.ID, "date", o.Date, "by", cmd.Actor.UserID)
	}
	return dto.MapOverride(o), nil
}

func (h *OverrideHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// SetHandler and RemoveHandler adapt OverrideHandler to the command bus.
func (h *OverrideHandler) SetHandler() commands.Handler[SetOverrideCommand, *dto.Override] {
	return commands.HandlerFunc[SetOverrideCommand, *dto.Override](h.Set)
}

func (h *OverrideHandler) RemoveHandler() commands.Handler[RemoveOverrideCommand, *dto.Override] {
	return commands.HandlerFunc[RemoveOverrideCommand, *dto.Override](h.Remove)
}
