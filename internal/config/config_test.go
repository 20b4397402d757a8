package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	origEmbeddedEnv := embeddedEnv
	embeddedEnv = ""
	t.Cleanup(func() { embeddedEnv = origEmbeddedEnv })

	for _, key := range []string{"PORTAL_URL", "TOAST_DURATION", "WORKER_POOL_SIZE", "STORE_BACKEND", "FORM_REVEAL_DELAY"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.PortalURL)
	assert.Equal(t, 3*time.Second, cfg.ToastDuration)
	assert.Equal(t, 800*time.Millisecond, cfg.FormRevealDelay)
	assert.Equal(t, 4, cfg.WorkerPoolSize)
	assert.Equal(t, StoreCSV, cfg.StoreBackend)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORTAL_URL", "https://portal.example.org/")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("LOGIN_FADE", "0s")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.org", cfg.PortalURL, "trailing slash trimmed")
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Zero(t, cfg.LoginFade)
	assert.True(t, cfg.TelegramEnabled())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			PortalURL:      "http://localhost:5000",
			HTTPTimeout:    time.Second,
			ToastDuration:  time.Second,
			WatchInterval:  time.Minute,
			WorkerPoolSize: 1,
			StoreBackend:   StoreCSV,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty url", func(c *Config) { c.PortalURL = "" }, true},
		{"relative url", func(c *Config) { c.PortalURL = "portal/api" }, true},
		{"zero workers", func(c *Config) { c.WorkerPoolSize = 0 }, true},
		{"unknown backend", func(c *Config) { c.StoreBackend = "redis" }, true},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }, true},
		{"negative fade", func(c *Config) { c.LoginFade = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_BAD_INT", "twelve")
	t.Setenv("TEST_DURATION", "1h30m")
	t.Setenv("TEST_BOOL", "true")

	assert.Equal(t, 12, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Minute, getEnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_MISSING_DURATION", time.Second))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.Equal(t, "fallback", getEnvOrDefault("TEST_MISSING", "fallback"))
}
