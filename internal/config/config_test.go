package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AMQP_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Database.TxMaxRetries)
	assert.Equal(t, 100, cfg.Paging.MaxRatingsPageSize)
	assert.Equal(t, 100, cfg.Paging.MaxProductsPageSize)
	assert.Equal(t, 30*time.Second, cfg.Checkout.CompensationMaxElapsed)
	assert.Empty(t, cfg.Events.AMQPURL)
	assert.True(t, cfg.Database.MigrateOnStart)
}

func TestLoadOverridesAndFallbacks(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_TX_MAX_RETRIES", "not-a-number")
	t.Setenv("COMPENSATION_MAX_ELAPSED", "2m")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("PRODUCTS_MAX_PAGE_SIZE", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Database.TxMaxRetries)
	assert.Equal(t, 2*time.Minute, cfg.Checkout.CompensationMaxElapsed)
	assert.False(t, cfg.Database.MigrateOnStart)
	assert.Equal(t, 25, cfg.Paging.MaxProductsPageSize)
}

func TestLoadRejectsNonPositivePageSize(t *testing.T) {
	t.Setenv("PRODUCTS_MAX_PAGE_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNegativeRetries(t *testing.T) {
	t.Setenv("DATABASE_TX_MAX_RETRIES", "-1")

	_, err := Load()
	require.Error(t, err)
}
