package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/uow"
	"staybook/internal/domain/property"
	"staybook/internal/infra/storage/memory"
)

func TestLoadPropertyFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "properties.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "p-1", "owner_id": "owner-1", "title": "Lake cabin", "nightly_rate": 12000, "max_guests": 4},
		{"id": "p-2", "owner_id": "owner-2", "title": "Loft", "nightly_rate": 9000, "currency": "eur", "max_guests": 2, "active": false},
		{"id": "p-3", "owner_id": "", "nightly_rate": 100, "max_guests": 1}
	]`), 0o600))

	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, err := loadPropertyFixtures(context.Background(), path, "USD", store.PropertyWriter(), logger)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	unit, err := memory.Factory{Store: store}.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(context.Background())

	p1, err := unit.Properties().ByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "USD", p1.NightlyRate.Currency)
	assert.True(t, p1.Active)

	p2, err := unit.Properties().ByID(context.Background(), "p-2")
	require.NoError(t, err)
	assert.Equal(t, "EUR", p2.NightlyRate.Currency)
	assert.False(t, p2.Active)

	_, err = unit.Properties().ByID(context.Background(), "p-3")
	assert.ErrorIs(t, err, property.ErrNotFound)
}

func TestLoadPropertyFixtures_MissingFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, err := loadPropertyFixtures(context.Background(), filepath.Join(t.TempDir(), "none.json"), "USD", memory.NewStore().PropertyWriter(), logger)
	require.NoError(t, err)
	assert.Zero(t, n)
}
