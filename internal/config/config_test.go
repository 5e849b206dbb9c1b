package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VANBORA_STORE", "")
	t.Setenv("VANBORA_ALTERATION_WINDOW", "")
	t.Setenv("VANBORA_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store.Kind)
	assert.Equal(t, 2*time.Hour, cfg.Booking.Window)
	assert.Equal(t, "UTC", cfg.Booking.Location.String())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VANBORA_STORE", "Memory")
	t.Setenv("VANBORA_ALTERATION_WINDOW", "90m")
	t.Setenv("VANBORA_WEBHOOK_BURST", "7")
	t.Setenv("VANBORA_LOG_LEVEL", "debug")
	t.Setenv("VANBORA_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store.Kind)
	assert.Equal(t, 90*time.Minute, cfg.Booking.Window)
	assert.Equal(t, 7, cfg.Webhook.Burst)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("VANBORA_STORE", "mysql")
	_, err := Load()
	require.Error(t, err)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("VANBORA_STORE", "memory")
	t.Setenv("VANBORA_TIMEZONE", "UTC")
	t.Setenv("VANBORA_ALTERATION_WINDOW", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.Booking.Window)
}
