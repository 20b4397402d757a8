// Package config provides configuration management for grievedesk.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. A .env file in the working directory
//  3. Embedded .env file (fallback, included in binary)
//  4. Hard-coded defaults (lowest priority)
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

//go:embed .env
var embeddedEnv string

// Store backends accepted by STORE_BACKEND.
const (
	StoreCSV    = "csv"
	StoreSQLite = "sqlite"
)

// Config holds all application configuration.
//
// It is built once at startup and not mutated afterwards.
type Config struct {
	// Portal
	PortalURL string // Base URL of the grievance portal API

	// Admin credentials (optional, the CLI prompts when missing)
	AdminUsername string
	AdminPassword string

	// Timing for the UI controllers
	HTTPTimeout     time.Duration // Per-request timeout for the portal client
	LoginFade       time.Duration // Fade between login and dashboard
	FormRevealDelay time.Duration // Delay before the complaint form opens in chat
	ToastDuration   time.Duration // How long a toast stays visible
	RowStagger      time.Duration // Reveal delay step per table row

	// Charts
	ChartDir string // Where report charts are written as PNG

	// Watcher
	WatchInterval  time.Duration // How often the watcher polls the complaint list
	WorkerPoolSize int           // Concurrent detail fetches per poll
	StoreBackend   string        // "csv" or "sqlite"
	StorePath      string        // Path of the ticket store

	// Telegram (optional)
	TelegramBotToken string
	TelegramChatID   string

	// Health check server
	HealthCheckPort string

	// Diagnostics
	DebugMode bool
	LogLevel  string

	// Voice input through a local Chrome instance
	SpeechEnabled bool
}

// LoadConfig loads configuration from environment variables with defaults.
func LoadConfig() (*Config, error) {
	// Embedded values only fill gaps, the environment always wins
	envMap, err := godotenv.Unmarshal(embeddedEnv)
	if err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	// Optional local .env; godotenv.Load never overrides variables already set
	_ = godotenv.Load()

	cfg := &Config{
		PortalURL: strings.TrimRight(getEnvOrDefault("PORTAL_URL", "http://localhost:5000"), "/"),

		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		HTTPTimeout:     getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		LoginFade:       getEnvDuration("LOGIN_FADE", 300*time.Millisecond),
		FormRevealDelay: getEnvDuration("FORM_REVEAL_DELAY", 800*time.Millisecond),
		ToastDuration:   getEnvDuration("TOAST_DURATION", 3*time.Second),
		RowStagger:      getEnvDuration("ROW_STAGGER", 100*time.Millisecond),

		ChartDir: getEnvOrDefault("CHART_DIR", "charts"),

		WatchInterval:  getEnvDuration("WATCH_INTERVAL", 5*time.Minute),
		WorkerPoolSize: getEnvInt("WORKER_POOL_SIZE", 4),
		StoreBackend:   strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreCSV)),
		StorePath:      getEnvOrDefault("STORE_PATH", "tickets.csv"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		HealthCheckPort: getEnvOrDefault("HEALTH_CHECK_PORT", "8080"),

		DebugMode: getEnvBool("DEBUG_MODE", false),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),

		SpeechEnabled: getEnvBool("SPEECH_ENABLED", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and values are sensible.
func (c *Config) Validate() error {
	if c.PortalURL == "" {
		return fmt.Errorf("PORTAL_URL cannot be empty")
	}
	u, err := url.Parse(c.PortalURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PORTAL_URL must be an absolute URL, got %q", c.PortalURL)
	}

	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1, got %d", c.WorkerPoolSize)
	}

	switch c.StoreBackend {
	case StoreCSV, StoreSQLite:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreCSV, StoreSQLite, c.StoreBackend)
	}

	durations := map[string]time.Duration{
		"HTTP_TIMEOUT":   c.HTTPTimeout,
		"TOAST_DURATION": c.ToastDuration,
		"WATCH_INTERVAL": c.WatchInterval,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", key, d)
		}
	}

	// Zero is allowed here, it means "no delay"
	if c.LoginFade < 0 || c.FormRevealDelay < 0 || c.RowStagger < 0 {
		return fmt.Errorf("animation delays cannot be negative")
	}

	return nil
}

// CookiePath is where the CLI keeps the admin session cookie between runs.
func (c *Config) CookiePath() string {
	return filepath.Join(filepath.Dir(c.StorePath), ".grievedesk-session.json")
}

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// Helper functions for environment variable parsing

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an integer or a default if not set/invalid
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default if not set/invalid.
//
// Accepts standard Go duration strings like "300ms", "5s", "1h30m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool accepts anything strconv.ParseBool does
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
