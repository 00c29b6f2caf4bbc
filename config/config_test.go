package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 3001 {
		t.Errorf("port = %d, want 3001", cfg.Server.Port)
	}
	if !cfg.Browser.Headless || !cfg.Browser.NoSandbox {
		t.Error("browser should default to headless without sandbox")
	}
	if cfg.Scraper.NavigationTimeout != 10*time.Second {
		t.Errorf("navigation timeout = %v, want 10s", cfg.Scraper.NavigationTimeout)
	}
	if cfg.Scraper.ReadyTimeout != 30*time.Second {
		t.Errorf("ready timeout = %v, want 30s", cfg.Scraper.ReadyTimeout)
	}
	if cfg.Scraper.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Scraper.MaxAttempts)
	}
	want := "Stylesheet,Font,Image,Media,Other"
	if got := strings.Join(cfg.Scraper.BlockedResourceTypes, ","); got != want {
		t.Errorf("blocked resources = %s, want %s", got, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SHOPSCOUT_PORT", "9090")
	t.Setenv("SHOPSCOUT_NAV_TIMEOUT", "5s")
	t.Setenv("SHOPSCOUT_MAX_ATTEMPTS", "5")
	t.Setenv("SHOPSCOUT_BLOCKED_RESOURCES", " Font , Image ,,")
	t.Setenv("SHOPSCOUT_DEBUG", "true")
	t.Setenv("SHOPSCOUT_BROWSER_BIN", "")
	t.Setenv("PUPPETEER_EXECUTABLE_PATH", "/usr/bin/chromium")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Scraper.NavigationTimeout != 5*time.Second {
		t.Errorf("navigation timeout = %v, want 5s", cfg.Scraper.NavigationTimeout)
	}
	if cfg.Scraper.MaxAttempts != 5 {
		t.Errorf("max attempts = %d, want 5", cfg.Scraper.MaxAttempts)
	}
	if got := strings.Join(cfg.Scraper.BlockedResourceTypes, ","); got != "Font,Image" {
		t.Errorf("blocked resources = %q, want Font,Image", got)
	}
	if !cfg.Scraper.Debug {
		t.Error("debug should be enabled")
	}
	if cfg.Browser.BrowserBin != "/usr/bin/chromium" {
		t.Errorf("browser bin = %q, want PUPPETEER_EXECUTABLE_PATH fallback", cfg.Browser.BrowserBin)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SHOPSCOUT_MAX_ATTEMPTS", "three")
	t.Setenv("SHOPSCOUT_READY_TIMEOUT", "soon")

	cfg := Load()

	if cfg.Scraper.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want fallback 3", cfg.Scraper.MaxAttempts)
	}
	if cfg.Scraper.ReadyTimeout != 30*time.Second {
		t.Errorf("ready timeout = %v, want fallback 30s", cfg.Scraper.ReadyTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"zero attempts", func(c *Config) { c.Scraper.MaxAttempts = 0 }, "max attempts"},
		{"negative base delay", func(c *Config) { c.Scraper.RetryBaseDelay = -time.Second }, "base delay"},
		{"base above max", func(c *Config) {
			c.Scraper.RetryBaseDelay = 2 * time.Second
			c.Scraper.RetryMaxDelay = time.Second
		}, "cannot exceed"},
		{"no sessions", func(c *Config) { c.Browser.MaxSessions = 0 }, "max sessions"},
		{"zero nav timeout", func(c *Config) { c.Scraper.NavigationTimeout = 0 }, "navigation timeout"},
		{"auth without keys", func(c *Config) { c.Auth.Enabled = true; c.Auth.APIKeys = nil }, "API keys"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errSub)
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Fatalf("error %q does not contain %q", err, tt.errSub)
			}
		})
	}
}
