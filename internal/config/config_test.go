package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/unimart?sslmode=disable",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "https://api.paystack.co", cfg.PaystackBaseURL)
	require.Equal(t, 2.5, cfg.VATPercent)
	require.Equal(t, 2.5, cfg.ServiceChargePercent)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 30*time.Second, cfg.CheckoutLockTTL)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := LoadForTests(env)
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["VAT_PERCENT"] = "7.5"
	env["CART_TTL"] = "24h"
	env["VAT_PERCENT_BAD"] = ""
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 7.5, cfg.VATPercent)
	require.Equal(t, 24*time.Hour, cfg.CartTTL)
}

func TestParseFloatFallsBackOnGarbage(t *testing.T) {
	require.Equal(t, 2.5, parseFloat("not-a-number", 2.5))
	require.Equal(t, 2.5, parseFloat("", 2.5))
}
