/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Decision policy selection.
type PolicyMode string

const (
	PolicyRemote    PolicyMode = "remote"
	PolicyHeuristic PolicyMode = "heuristic"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // public base URL (e.g., http://192.168.195.6:8080)

	DBBackend DatabaseBackend
	DBDSN     string

	JWTSigningKey string

	// Decision policy configuration
	PolicyMode     PolicyMode
	PolicyEndpoint string
	PolicyToken    string
	PolicyTimeout  time.Duration

	// Planner defaults, overridable per request
	DefaultBudget     int
	DefaultWindowDays int
	DayStart          string // HH:MM, default 06:00
	DayEnd            string // HH:MM, may exceed the day via 24:00; default 02:00 next day

	// Cache configuration
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Event bus configuration
	NATSEnabled bool
	NATSURL     string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"TUNABRAIN_ENV", "TB_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"TUNABRAIN_HTTP_BIND", "TB_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"TUNABRAIN_HTTP_PORT", "TB_HTTP_PORT"}, 8080),
		BaseURL:     getEnvAny([]string{"TUNABRAIN_BASE_URL", "TB_BASE_URL"}, ""),

		DBBackend: DatabaseBackend(getEnvAny([]string{"TUNABRAIN_DB_BACKEND", "TB_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:     getEnvAny([]string{"TUNABRAIN_DB_DSN", "TB_DB_DSN"}, "tunabrain.db"),

		JWTSigningKey: getEnvAny([]string{"TUNABRAIN_JWT_SIGNING_KEY", "TB_JWT_SIGNING_KEY"}, ""),

		PolicyMode:     PolicyMode(getEnvAny([]string{"TUNABRAIN_POLICY_MODE", "TB_POLICY_MODE"}, string(PolicyHeuristic))),
		PolicyEndpoint: getEnvAny([]string{"TUNABRAIN_POLICY_ENDPOINT", "TB_POLICY_ENDPOINT"}, ""),
		PolicyToken:    getEnvAny([]string{"TUNABRAIN_POLICY_TOKEN", "TB_POLICY_TOKEN"}, ""),
		PolicyTimeout:  time.Duration(getEnvIntAny([]string{"TUNABRAIN_POLICY_TIMEOUT_SECONDS", "TB_POLICY_TIMEOUT_SECONDS"}, 60)) * time.Second,

		DefaultBudget:     getEnvIntAny([]string{"TUNABRAIN_DEFAULT_BUDGET", "TB_DEFAULT_BUDGET"}, 30),
		DefaultWindowDays: getEnvIntAny([]string{"TUNABRAIN_DEFAULT_WINDOW_DAYS", "TB_DEFAULT_WINDOW_DAYS"}, 30),
		DayStart:          getEnvAny([]string{"TUNABRAIN_DAY_START", "TB_DAY_START"}, "06:00"),
		DayEnd:            getEnvAny([]string{"TUNABRAIN_DAY_END", "TB_DAY_END"}, "02:00"),

		CacheEnabled:  getEnvBoolAny([]string{"TUNABRAIN_CACHE_ENABLED", "TB_CACHE_ENABLED"}, false),
		RedisAddr:     getEnvAny([]string{"TUNABRAIN_REDIS_ADDR", "TB_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"TUNABRAIN_REDIS_PASSWORD", "TB_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"TUNABRAIN_REDIS_DB", "TB_REDIS_DB"}, 0),

		NATSEnabled: getEnvBoolAny([]string{"TUNABRAIN_NATS_ENABLED", "TB_NATS_ENABLED"}, false),
		NATSURL:     getEnvAny([]string{"TUNABRAIN_NATS_URL", "TB_NATS_URL"}, "nats://localhost:4222"),

		TracingEnabled:    getEnvBoolAny([]string{"TUNABRAIN_TRACING_ENABLED", "TB_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"TUNABRAIN_OTLP_ENDPOINT", "TB_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"TUNABRAIN_TRACING_SAMPLE_RATE", "TB_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("TUNABRAIN_DB_DSN must be provided")
	}

	if cfg.PolicyMode != PolicyRemote && cfg.PolicyMode != PolicyHeuristic {
		return nil, fmt.Errorf("unsupported policy mode %q", cfg.PolicyMode)
	}
	if cfg.PolicyMode == PolicyRemote && cfg.PolicyEndpoint == "" {
		return nil, fmt.Errorf("TUNABRAIN_POLICY_ENDPOINT must be provided when policy mode is remote")
	}

	if cfg.DefaultBudget <= 0 {
		return nil, fmt.Errorf("TUNABRAIN_DEFAULT_BUDGET must be positive, got %d", cfg.DefaultBudget)
	}
	if cfg.DefaultWindowDays <= 0 {
		return nil, fmt.Errorf("TUNABRAIN_DEFAULT_WINDOW_DAYS must be positive, got %d", cfg.DefaultWindowDays)
	}

	if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
		return nil, fmt.Errorf("TUNABRAIN_TRACING_SAMPLE_RATE must be within [0,1], got %g", cfg.TracingSampleRate)
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("TUNABRAIN_JWT_SIGNING_KEY must be provided in production")
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// DayWindow converts the configured clock times into offsets from midnight.
// An end at or before the start is read as crossing midnight into the next
// day, so the default 06:00/02:00 pair yields a 20-hour window.
func (c *Config) DayWindow() (start, end time.Duration, err error) {
	start, err = parseClock(c.DayStart)
	if err != nil {
		return 0, 0, fmt.Errorf("TUNABRAIN_DAY_START: %w", err)
	}
	end, err = parseClock(c.DayEnd)
	if err != nil {
		return 0, 0, fmt.Errorf("TUNABRAIN_DAY_END: %w", err)
	}
	if end <= start {
		end += 24 * time.Hour
	}
	return start, end, nil
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":         "use TUNABRAIN_ENV (or TB_ENV)",
		"JWT_SIGNING_KEY":     "use TUNABRAIN_JWT_SIGNING_KEY (or TB_JWT_SIGNING_KEY)",
		"POLICY_ENDPOINT":     "use TUNABRAIN_POLICY_ENDPOINT (or TB_POLICY_ENDPOINT)",
		"TRACING_ENABLED":     "use TUNABRAIN_TRACING_ENABLED (or TB_TRACING_ENABLED)",
		"OTLP_ENDPOINT":       "use TUNABRAIN_OTLP_ENDPOINT (or TB_OTLP_ENDPOINT)",
		"TRACING_SAMPLE_RATE": "use TUNABRAIN_TRACING_SAMPLE_RATE (or TB_TRACING_SAMPLE_RATE)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
