package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, ":9090", cfg.GRPC.Addr)
	require.Equal(t, StoreMemory, cfg.Store)
	require.Equal(t, int64(1<<20), cfg.HTTP.BodyLimit)
	require.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	require.False(t, cfg.Auth.DevTokens)
	require.Equal(t, "info", cfg.Log.Level)
	require.Error(t, cfg.Validate(), "secret is mandatory")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BLOODNET_PG_DSN", "postgres://localhost/bloodnet")
	t.Setenv("BLOODNET_AUTH_SECRET", "s3cret")
	t.Setenv("BLOODNET_DEV_TOKENS", "true")
	t.Setenv("BLOODNET_TOKEN_TTL", "15m")
	t.Setenv("BLOODNET_RATE_LIMIT_RPS", "2.5")
	t.Setenv("BLOODNET_RATE_LIMIT_BURST", "oops")
	t.Setenv("BLOODNET_CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	require.Equal(t, StorePostgres, cfg.Store)
	require.True(t, cfg.Auth.DevTokens)
	require.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	require.Equal(t, 2.5, cfg.RateLimit.RPS)
	require.Equal(t, 100, cfg.RateLimit.Burst)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestValidateStore(t *testing.T) {
	t.Setenv("BLOODNET_AUTH_SECRET", "x")
	t.Setenv("BLOODNET_STORE", "postgres")
	require.Error(t, Load().Validate())

	t.Setenv("BLOODNET_STORE", "redis")
	require.ErrorContains(t, Load().Validate(), "unknown store")
}
