package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "CATALOG_TTL", "CART_TTL", "ORDERS_TTL", "PROFILE_TTL"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.CatalogTTL)
	assert.Equal(t, 5*time.Minute, cfg.CartTTL)
	assert.Equal(t, 5*time.Minute, cfg.OrdersTTL)
	assert.Equal(t, 30*time.Minute, cfg.ProfileTTL)
}

func TestLoadReadsTTLOverrides(t *testing.T) {
	t.Setenv("CART_TTL", "90s")
	t.Setenv("ORDERS_TTL", "2m")

	cfg := Load()

	assert.Equal(t, 90*time.Second, cfg.CartTTL)
	assert.Equal(t, 2*time.Minute, cfg.OrdersTTL)
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	t.Setenv("CART_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.CartTTL)
}
