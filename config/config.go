package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fetch modes.
const (
	FetchModeAuto    = "auto"    // HTTP first, escalate to the browser
	FetchModeHTTP    = "http"    // plain HTTP only, no browser launched
	FetchModeBrowser = "browser" // headless Chrome only
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Pool      PoolConfig
	Fetch     FetchConfig
	Batch     BatchConfig
	Cache     CacheConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// DefaultProxy is the proxy URL for all browser and HTTP traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// PoolConfig controls the adaptive browser page pool.
type PoolConfig struct {
	// MinPages is the minimum number of pages kept open.
	MinPages int // default: 2

	// HardMax is the absolute maximum number of pages.
	HardMax int // default: 10

	// MemThreshold is the heap usage fraction (0.0-1.0) above which the pool shrinks.
	MemThreshold float64 // default: 0.9

	// ScaleStep is the fraction of pool size to grow or shrink per interval.
	ScaleStep float64 // default: 0.1
}

// FetchConfig controls how product pages are retrieved.
type FetchConfig struct {
	// Mode selects the fetch strategy: "auto", "http" or "browser".
	Mode string // default: "auto"

	// Timeout bounds a single fetch attempt.
	Timeout time.Duration // default: 45s

	// NavigationTimeout bounds page.Navigate alone.
	NavigationTimeout time.Duration // default: 20s

	// Retries is the number of extra attempts after a timeout or
	// navigation failure. Non-200 responses are never retried.
	Retries int // default: 0

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration // default: 1s

	// Stealth injects anti-detection JS into browser pages.
	Stealth bool // default: true

	// EscalationDelays is the staged start delay for each engine tier in auto mode.
	EscalationDelays []time.Duration // default: [0s, 3s, 8s]

	// DomainMemoryTTL is how long the winning engine is remembered per domain.
	DomainMemoryTTL time.Duration // default: 24h

	// BlockedResourceTypes lists browser resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds blocks well-known ad and tracking domains in the browser.
	BlockAds bool // default: true

	// RemoveOverlays strips cookie banners and popups before the DOM is read.
	RemoveOverlays bool // default: true
}

// BatchConfig controls the batch orchestrator.
type BatchConfig struct {
	// MaxURLs caps the number of URLs in one request.
	MaxURLs int // default: 100

	// Concurrency is the number of URLs processed at once.
	Concurrency int // default: 4
}

// CacheConfig controls the extracted record cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached records.
	MaxEntries int // default: 1000

	// TTL is the age after which records are evicted regardless of max_age.
	TTL time.Duration // default: 1h
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key or client IP.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per identity.
	Burst int // default: 5
}

// CORSConfig controls cross-origin access.
type CORSConfig struct {
	// AllowedOrigins lists permitted origins; "*" allows all.
	AllowedOrigins []string // default: ["*"]
}

// WebhookConfig controls outbound completion events.
type WebhookConfig struct {
	// Secret signs webhook bodies with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from an optional .env file and environment
// variables, with sane defaults. Variables already set in the environment
// take precedence over the .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: ignoring unreadable .env file", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("SILLAGE_HOST", "0.0.0.0"),
			Port: envIntOr("SILLAGE_PORT", 8000),
			Mode: envOr("SILLAGE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SILLAGE_HEADLESS", true),
			DefaultProxy: os.Getenv("SILLAGE_PROXY"),
			NoSandbox:    envBoolOr("SILLAGE_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SILLAGE_BROWSER_BIN"),
		},
		Pool: PoolConfig{
			MinPages:     envIntOr("SILLAGE_MIN_PAGES", 2),
			HardMax:      envIntOr("SILLAGE_MAX_PAGES", 10),
			MemThreshold: envFloatOr("SILLAGE_MEM_THRESHOLD", 0.9),
			ScaleStep:    envFloatOr("SILLAGE_SCALE_STEP", 0.1),
		},
		Fetch: FetchConfig{
			Mode:              envOr("SILLAGE_FETCH_MODE", FetchModeAuto),
			Timeout:           envDurationOr("SILLAGE_FETCH_TIMEOUT", 45*time.Second),
			NavigationTimeout: envDurationOr("SILLAGE_NAV_TIMEOUT", 20*time.Second),
			Retries:           envIntOr("SILLAGE_FETCH_RETRIES", 0),
			RetryDelay:        envDurationOr("SILLAGE_FETCH_RETRY_DELAY", time.Second),
			Stealth:           envBoolOr("SILLAGE_STEALTH", true),
			EscalationDelays:  envDurationSliceOr("SILLAGE_ESCALATION_DELAYS", []time.Duration{0, 3 * time.Second, 8 * time.Second}),
			DomainMemoryTTL:   envDurationOr("SILLAGE_DOMAIN_MEMORY_TTL", 24*time.Hour),
			BlockedResourceTypes: envSliceOr("SILLAGE_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds:       envBoolOr("SILLAGE_BLOCK_ADS", true),
			RemoveOverlays: envBoolOr("SILLAGE_REMOVE_OVERLAYS", true),
		},
		Batch: BatchConfig{
			MaxURLs:     envIntOr("SILLAGE_MAX_URLS", 100),
			Concurrency: envIntOr("SILLAGE_CONCURRENCY", 4),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SILLAGE_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("SILLAGE_CACHE_TTL", time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SILLAGE_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SILLAGE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SILLAGE_RATE_RPS", 2.0),
			Burst:             envIntOr("SILLAGE_RATE_BURST", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: envSliceOr("SILLAGE_CORS_ORIGINS", []string{"*"}),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("SILLAGE_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("SILLAGE_LOG_LEVEL", "info"),
			Format: envOr("SILLAGE_LOG_FORMAT", "json"),
		},
	}
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
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
