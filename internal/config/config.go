// Package config provides application configuration loading from environment variables and .env files.
// It uses viper for flexible configuration management with sensible defaults.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/classifier"
	"github.com/TimurManjosov/splitgate/internal/marker"
	"github.com/TimurManjosov/splitgate/internal/snapshot"
)

// Config holds all application configuration loaded from environment variables or .env file.
// Configuration priority: environment variables > .env file > defaults.
type Config struct {
	AppEnv      string // Application environment (dev, staging, prod)
	HTTPAddr    string // HTTP server bind address (e.g., ":8080")
	MetricsAddr string // Metrics server bind address
	LogLevel    string // zerolog level name
	LogPretty   bool   // Human-readable console logs instead of JSON

	VariantURL  string // Alternate storefront origin bucketed visitors are sent to
	HomeURL     string // Main storefront origin, used by the check endpoint
	UpstreamURL string // Storefront to reverse-proxy to; empty disables the proxy
	SplitRatio  int    // Percentage of eligible visitors sent to the variant (0-100)

	MarkerName     string        // Assignment cookie name
	MarkerTTL      time.Duration // Assignment lifetime
	MarkerHTTPOnly bool          // Hide the marker from page scripts
	MarkerSecure   bool          // Send the marker over HTTPS only
	MarkerDomain   string        // Cookie domain; empty derives the apex domain per request

	PreservePath     bool // Keep path and query when redirecting to the variant
	MarkExemptBypass bool // Record exempt visitors with a bypass marker
	PathHints        bool // Detect commerce and blog pages from the path

	RateLimitPerIP int // Check endpoint requests per minute per client IP
}

// Load reads configuration from environment variables and .env file (if present).
// Environment variables take precedence over .env file values.
// Returns a Config struct with all values populated (either from env or defaults).
//
// Validation:
//
//	This function performs basic configuration loading but does NOT validate
//	configuration constraints. Use Validate() before serving traffic.
func Load() (*Config, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	viperInstance.SetConfigType("env")
	_ = viperInstance.ReadInConfig() // Ignore error - .env is optional
	viperInstance.AutomaticEnv()     // Read from environment variables

	setConfigDefaults(viperInstance)

	return &Config{
		AppEnv:           viperInstance.GetString("APP_ENV"),
		HTTPAddr:         viperInstance.GetString("APP_HTTP_ADDR"),
		MetricsAddr:      viperInstance.GetString("METRICS_ADDR"),
		LogLevel:         viperInstance.GetString("LOG_LEVEL"),
		LogPretty:        viperInstance.GetBool("LOG_PRETTY"),
		VariantURL:       viperInstance.GetString("VARIANT_URL"),
		HomeURL:          viperInstance.GetString("HOME_URL"),
		UpstreamURL:      viperInstance.GetString("UPSTREAM_URL"),
		SplitRatio:       viperInstance.GetInt("SPLIT_RATIO"),
		MarkerName:       viperInstance.GetString("MARKER_NAME"),
		MarkerTTL:        viperInstance.GetDuration("MARKER_TTL"),
		MarkerHTTPOnly:   viperInstance.GetBool("MARKER_HTTP_ONLY"),
		MarkerSecure:     viperInstance.GetBool("MARKER_SECURE"),
		MarkerDomain:     viperInstance.GetString("MARKER_DOMAIN"),
		PreservePath:     viperInstance.GetBool("PRESERVE_PATH"),
		MarkExemptBypass: viperInstance.GetBool("MARK_EXEMPT_BYPASS"),
		PathHints:        viperInstance.GetBool("PATH_HINTS"),
		RateLimitPerIP:   viperInstance.GetInt("RATE_LIMIT_PER_IP"),
	}, nil
}

// setConfigDefaults sets default values for all configuration options.
// The defaults describe the storefront experiment: 20% of eligible
// visitors go to the variant store and keep their bucket for one day.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("VARIANT_URL", "https://loja.jornadamima.com.br")
	v.SetDefault("HOME_URL", "http://localhost:8080")
	v.SetDefault("UPSTREAM_URL", "")
	v.SetDefault("SPLIT_RATIO", 20)
	v.SetDefault("MARKER_NAME", "ab_test_bypass")
	v.SetDefault("MARKER_TTL", "24h")
	v.SetDefault("MARKER_HTTP_ONLY", true)
	v.SetDefault("MARKER_SECURE", false)
	v.SetDefault("MARKER_DOMAIN", "")
	v.SetDefault("PRESERVE_PATH", false)
	v.SetDefault("MARK_EXEMPT_BYPASS", false)
	v.SetDefault("PATH_HINTS", true)
	v.SetDefault("RATE_LIMIT_PER_IP", 100)
}

// ValidationError represents a configuration validation error with details about what failed.
type ValidationError struct {
	Field   string // Name of the configuration field
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks that the configuration can serve traffic.
//
// Validation Rules:
//  1. SPLIT_RATIO must be within 0..100
//  2. VARIANT_URL and HOME_URL must be absolute http(s) URLs
//  3. UPSTREAM_URL, when set, must be an absolute http(s) URL
//  4. MARKER_NAME must be non-empty and MARKER_TTL positive
//  5. APP_HTTP_ADDR and METRICS_ADDR must be non-empty
//  6. RATE_LIMIT_PER_IP must be positive
//
// Production Safety:
//
//	In production (AppEnv is "prod" or "production") the marker must be
//	Secure, since it is scoped to the whole apex domain.
//
// Returns nil if configuration is valid, otherwise the first ValidationError.
func (c *Config) Validate() error {
	if c.SplitRatio < 0 || c.SplitRatio > 100 {
		return ValidationError{
			Field:   "SPLIT_RATIO",
			Message: fmt.Sprintf("must be between 0 and 100, got %d", c.SplitRatio),
		}
	}

	if _, err := allocator.ParseVariantURL(c.VariantURL); err != nil {
		return ValidationError{Field: "VARIANT_URL", Message: err.Error()}
	}
	if _, err := allocator.ParseVariantURL(c.HomeURL); err != nil {
		return ValidationError{Field: "HOME_URL", Message: "home URL must be an absolute http or https URL"}
	}
	if c.UpstreamURL != "" {
		if _, err := allocator.ParseVariantURL(c.UpstreamURL); err != nil {
			return ValidationError{Field: "UPSTREAM_URL", Message: "upstream URL must be an absolute http or https URL"}
		}
	}

	if strings.TrimSpace(c.MarkerName) == "" {
		return ValidationError{Field: "MARKER_NAME", Message: "marker cookie name cannot be empty"}
	}
	if c.MarkerTTL <= 0 {
		return ValidationError{
			Field:   "MARKER_TTL",
			Message: fmt.Sprintf("must be a positive duration, got %s", c.MarkerTTL),
		}
	}

	if c.HTTPAddr == "" {
		return ValidationError{Field: "APP_HTTP_ADDR", Message: "HTTP server address cannot be empty"}
	}
	if c.MetricsAddr == "" {
		return ValidationError{Field: "METRICS_ADDR", Message: "metrics server address cannot be empty"}
	}
	if c.RateLimitPerIP <= 0 {
		return ValidationError{
			Field:   "RATE_LIMIT_PER_IP",
			Message: fmt.Sprintf("must be positive, got %d", c.RateLimitPerIP),
		}
	}

	if c.IsProduction() && !c.MarkerSecure {
		return ValidationError{
			Field:   "MARKER_SECURE",
			Message: "the assignment marker must be Secure in production",
		}
	}

	return nil
}

// IsProduction reports whether AppEnv names a production deployment.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production"
}

// CookieOptions returns the marker cookie settings.
func (c *Config) CookieOptions() marker.CookieOptions {
	return marker.CookieOptions{
		Name:     c.MarkerName,
		TTL:      c.MarkerTTL,
		Path:     "/",
		Domain:   strings.TrimPrefix(c.MarkerDomain, "."),
		HTTPOnly: c.MarkerHTTPOnly,
		Secure:   c.MarkerSecure,
	}
}

// AllocatorSettings returns the allocator settings.
func (c *Config) AllocatorSettings() allocator.Settings {
	return allocator.Settings{
		VariantURL:   c.VariantURL,
		Ratio:        c.SplitRatio,
		TTL:          c.MarkerTTL,
		PreservePath: c.PreservePath,
	}
}

// Upstream parses UpstreamURL. It returns nil when no upstream is configured.
func (c *Config) Upstream() (*url.URL, error) {
	if c.UpstreamURL == "" {
		return nil, nil
	}
	return url.Parse(c.UpstreamURL)
}

// SettingsView returns the public description of the experiment served by
// the config endpoint.
func (c *Config) SettingsView() snapshot.SettingsView {
	predicates := classifier.Predicates()
	names := make([]string, len(predicates))
	for i, p := range predicates {
		names[i] = string(p)
	}
	return snapshot.SettingsView{
		VariantURL:       c.VariantURL,
		HomeURL:          c.HomeURL,
		SplitRatio:       c.SplitRatio,
		MarkerName:       c.MarkerName,
		MarkerTTL:        c.MarkerTTL.String(),
		MarkerDomain:     c.MarkerDomain,
		MarkerHTTPOnly:   c.MarkerHTTPOnly,
		MarkerSecure:     c.MarkerSecure,
		PreservePath:     c.PreservePath,
		MarkExemptBypass: c.MarkExemptBypass,
		PathHints:        c.PathHints,
		Predicates:       names,
		Policy:           "sticky",
	}
}
