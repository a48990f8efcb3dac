package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries the full server configuration, sourced from environment
// variables (a .env file is honored when present).
type Config struct {
	Addr           string
	SQLitePath     string // empty selects the in-memory demo store
	MigrationsDir  string
	TokenSecret    string
	LogDir         string // empty disables the rotated file sink
	AllowedOrigins []string
}

// Load reads configuration from the environment. Missing variables fall back
// to development defaults; TokenSecret should always be set in production
// since it salts the stored session token digests.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Addr:           Env("ENEATEST_ADDR", ":8080"),
		SQLitePath:     Env("ENEATEST_SQLITE_PATH", ""),
		MigrationsDir:  Env("ENEATEST_MIGRATIONS_DIR", ""),
		TokenSecret:    Env("ENEATEST_TOKEN_SECRET", "dev-secret"),
		LogDir:         Env("ENEATEST_LOG_DIR", ""),
		AllowedOrigins: splitList(Env("ENEATEST_ALLOWED_ORIGINS", "*")),
	}
}

// Env returns the environment variable value for key, or fallback if empty.
func Env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
