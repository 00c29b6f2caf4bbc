package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3001
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how browser sessions are launched.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox layers (needed in containers).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path. Falls back to
	// PUPPETEER_EXECUTABLE_PATH, then to rod's managed download.
	BrowserBin string

	// Leakless runs the browser under rod's leakless guard so it dies with
	// the parent process. Some container runtimes block it.
	Leakless bool // default: true

	// Stealth injects evasion scripts into every new page.
	Stealth bool // default: true

	// UserAgent is sent instead of the headless default.
	UserAgent string

	// AcceptLanguage is sent as an extra request header.
	AcceptLanguage string // default: "en-IN,en;q=0.9"

	// MaxSessions bounds concurrently running browser processes across all
	// queries. It must cover every configured source so that one query's
	// sources never wait on each other; beyond that it throttles
	// concurrent queries.
	MaxSessions int // default: 4
}

// ScraperConfig controls scraping behaviour.
type ScraperConfig struct {
	// NavigationTimeout bounds page load until network is almost idle.
	NavigationTimeout time.Duration // default: 10s

	// ReadyTimeout bounds the wait for product containers to render.
	ReadyTimeout time.Duration // default: 30s

	// InterstitialTimeout bounds each step of interstitial recovery.
	InterstitialTimeout time.Duration // default: 10s

	// MaxAttempts is how many times a source pipeline may run per query.
	MaxAttempts int // default: 3

	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration // default: 1s

	// RetryMaxDelay caps the backoff delay. Zero means uncapped.
	RetryMaxDelay time.Duration // default: 0

	// BlockedResourceTypes lists resource types aborted before they hit the network.
	// default: ["Stylesheet", "Font", "Image", "Media", "Other"]
	BlockedResourceTypes []string

	// SourcesFile overrides the embedded source catalogue.
	SourcesFile string

	// Debug persists a screenshot whenever product containers never render.
	Debug bool // default: false

	// ScreenshotDir is where debug screenshots are written.
	ScreenshotDir string // default: os.TempDir()/shopscout
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key or client IP.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per identity.
	Burst int // default: 5
}

// CacheConfig controls the opt-in aggregate cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached aggregates.
	MaxEntries int // default: 256

	// TTL is the hard expiry for cached aggregates regardless of max_age.
	TTL time.Duration // default: 10m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SHOPSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("SHOPSCOUT_PORT", envIntOr("PORT", 3001)),
			Mode: envOr("SHOPSCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("SHOPSCOUT_HEADLESS", true),
			NoSandbox:      envBoolOr("SHOPSCOUT_NO_SANDBOX", true),
			BrowserBin:     envOr("SHOPSCOUT_BROWSER_BIN", os.Getenv("PUPPETEER_EXECUTABLE_PATH")),
			Leakless:       envBoolOr("SHOPSCOUT_LEAKLESS", true),
			Stealth:        envBoolOr("SHOPSCOUT_STEALTH", true),
			UserAgent:      envOr("SHOPSCOUT_USER_AGENT", DefaultUserAgent),
			AcceptLanguage: envOr("SHOPSCOUT_ACCEPT_LANGUAGE", "en-IN,en;q=0.9"),
			MaxSessions:    envIntOr("SHOPSCOUT_MAX_SESSIONS", 4),
		},
		Scraper: ScraperConfig{
			NavigationTimeout:   envDurationOr("SHOPSCOUT_NAV_TIMEOUT", 10*time.Second),
			ReadyTimeout:        envDurationOr("SHOPSCOUT_READY_TIMEOUT", 30*time.Second),
			InterstitialTimeout: envDurationOr("SHOPSCOUT_INTERSTITIAL_TIMEOUT", 10*time.Second),
			MaxAttempts:         envIntOr("SHOPSCOUT_MAX_ATTEMPTS", 3),
			RetryBaseDelay:      envDurationOr("SHOPSCOUT_RETRY_BASE_DELAY", time.Second),
			RetryMaxDelay:       envDurationOr("SHOPSCOUT_RETRY_MAX_DELAY", 0),
			BlockedResourceTypes: envSliceOr("SHOPSCOUT_BLOCKED_RESOURCES", []string{
				"Stylesheet", "Font", "Image", "Media", "Other",
			}),
			SourcesFile:   os.Getenv("SHOPSCOUT_SOURCES_FILE"),
			Debug:         envBoolOr("SHOPSCOUT_DEBUG", false),
			ScreenshotDir: envOr("SHOPSCOUT_SCREENSHOT_DIR", filepath.Join(os.TempDir(), "shopscout")),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SHOPSCOUT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SHOPSCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SHOPSCOUT_RATE_RPS", 1.0),
			Burst:             envIntOr("SHOPSCOUT_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SHOPSCOUT_CACHE_MAX_ENTRIES", 256),
			TTL:        envDurationOr("SHOPSCOUT_CACHE_TTL", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  envOr("SHOPSCOUT_LOG_LEVEL", "info"),
			Format: envOr("SHOPSCOUT_LOG_FORMAT", "json"),
		},
	}
}

// DefaultUserAgent is a desktop Chrome signature used instead of HeadlessChrome.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Browser.MaxSessions < 1 {
		return fmt.Errorf("max sessions must be at least 1")
	}
	if c.Scraper.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.Scraper.ReadyTimeout <= 0 {
		return fmt.Errorf("ready timeout must be positive")
	}
	if c.Scraper.InterstitialTimeout <= 0 {
		return fmt.Errorf("interstitial timeout must be positive")
	}
	if c.Scraper.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if c.Scraper.RetryBaseDelay < 0 {
		return fmt.Errorf("retry base delay cannot be negative")
	}
	if c.Scraper.RetryMaxDelay < 0 {
		return fmt.Errorf("retry max delay cannot be negative")
	}
	if c.Scraper.RetryMaxDelay > 0 && c.Scraper.RetryBaseDelay > c.Scraper.RetryMaxDelay {
		return fmt.Errorf("retry base delay (%s) cannot exceed retry max delay (%s)",
			c.Scraper.RetryBaseDelay, c.Scraper.RetryMaxDelay)
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth enabled but no API keys configured")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1")
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache max entries must be at least 1")
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
