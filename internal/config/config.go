// Package config loads service settings from BLOODNET_* environment
// variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const prefix = "BLOODNET_"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	HTTP struct {
		Addr            string
		BodyLimit       int64
		ShutdownTimeout time.Duration
		CORSOrigins     []string
	}
	GRPC struct {
		Addr string
	}
	Store    string
	Postgres struct {
		DSN string
	}
	Auth struct {
		Secret    string
		Issuer    string
		TokenTTL  time.Duration
		DevTokens bool
	}
	RateLimit struct {
		RPS   float64
		Burst int
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads the environment. Unparseable numbers and durations fall back
// to their defaults.
func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.BodyLimit = int64(parseInt(getEnv("BODY_LIMIT_BYTES", ""), 1<<20))
	cfg.HTTP.ShutdownTimeout = parseDuration(getEnv("SHUTDOWN_TIMEOUT", ""), 10*time.Second)
	cfg.HTTP.CORSOrigins = splitList(getEnv("CORS_ORIGINS", ""))
	cfg.GRPC.Addr = getEnv("GRPC_ADDR", ":9090")

	cfg.Postgres.DSN = getEnv("PG_DSN", "")
	def := StoreMemory
	if cfg.Postgres.DSN != "" {
		def = StorePostgres
	}
	cfg.Store = strings.ToLower(getEnv("STORE", def))

	cfg.Auth.Secret = getEnv("AUTH_SECRET", "")
	cfg.Auth.Issuer = getEnv("AUTH_ISSUER", "bloodnet")
	cfg.Auth.TokenTTL = parseDuration(getEnv("TOKEN_TTL", ""), time.Hour)
	cfg.Auth.DevTokens = getEnv("DEV_TOKENS", "false") == "true"

	cfg.RateLimit.RPS = parseFloat(getEnv("RATE_LIMIT_RPS", ""), 50)
	cfg.RateLimit.Burst = parseInt(getEnv("RATE_LIMIT_BURST", ""), 100)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")
	return cfg
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return errors.New(prefix + "PG_DSN is required for the postgres store")
		}
	default:
		return errors.Errorf("unknown store %q", c.Store)
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New(prefix + "AUTH_SECRET is required")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(prefix + key)); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
