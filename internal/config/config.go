package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Storage backend connection (optional; file endpoints are disabled
	// without it).
	FilestoreURL    string
	FilestoreAPIKey string

	// Auth for previewd's own API (optional; empty means open).
	PreviewAPIKey string

	// Correspondence
	ConfidenceThreshold float64
	FallbackWindow      int // nearest-mapping scan distance, in lines
	PrefilterElements   int // element count that turns on candidate pre-filtering

	// Scheduling
	ScrollDebounce    time.Duration
	HighlightThrottle time.Duration
	RenderDebounce    time.Duration
	SmoothScroll      time.Duration
	Bidirectional     bool

	// Resources
	ResourceCacheTTL time.Duration
	MaxResourceBytes int64

	// Uploads and sessions
	MaxUploadBytes int64
	SessionTTL     time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		FilestoreURL:    os.Getenv("FILESTORE_URL"),
		FilestoreAPIKey: os.Getenv("FILESTORE_API_KEY"),

		PreviewAPIKey: os.Getenv("PREVIEW_API_KEY"),

		ConfidenceThreshold: envFloat("CONFIDENCE_THRESHOLD", 0.7),
		FallbackWindow:      envInt("FALLBACK_WINDOW", 50),
		PrefilterElements:   envInt("PREFILTER_ELEMENTS", 5000),

		ScrollDebounce:    envDuration("SCROLL_DEBOUNCE", 100*time.Millisecond),
		HighlightThrottle: envDuration("HIGHLIGHT_THROTTLE", 100*time.Millisecond),
		RenderDebounce:    envDuration("RENDER_DEBOUNCE", 300*time.Millisecond),
		SmoothScroll:      envDuration("SMOOTH_SCROLL", 300*time.Millisecond),
		Bidirectional:     envBool("BIDIRECTIONAL_SYNC", true),

		ResourceCacheTTL: envDuration("RESOURCE_CACHE_TTL", 10*time.Minute),
		MaxResourceBytes: envInt64("MAX_RESOURCE_BYTES", 10485760), // 10MB

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		SessionTTL:     envDuration("SESSION_TTL", 1*time.Hour),
	}

	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = 0.7
	}
	if cfg.FallbackWindow <= 0 {
		cfg.FallbackWindow = 50
	}
	if cfg.PrefilterElements <= 0 {
		cfg.PrefilterElements = 5000
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.FilestoreURL != "" && c.FilestoreAPIKey == "" {
		return fmt.Errorf("FILESTORE_API_KEY is required when FILESTORE_URL is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
