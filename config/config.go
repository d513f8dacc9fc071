/*
Package config loads runtime settings from the environment.

A .env file in the working directory is loaded first if present, then
real environment variables win. Everything has a usable default so the
binary runs with no configuration at all.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process-wide settings.
type Config struct {
	DBPath   string // sqlite database file
	Timezone string // IANA zone the closing and period windows use
	Port     string // read-only API listen port
	PlanFile string // optional YAML plan override, empty = built-in defaults
}

// Load reads configuration from .env (best effort) and the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DBPath:   envOr("COMMISSION_DB", "commission.db"),
		Timezone: envOr("COMMISSION_TZ", "Asia/Kolkata"),
		Port:     envOr("COMMISSION_PORT", "8080"),
		PlanFile: os.Getenv("COMMISSION_PLAN"),
	}
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
