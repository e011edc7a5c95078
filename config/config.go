package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Scraper    ScraperConfig
	OCR        OCRConfig
	Extraction ExtractionConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ScraperConfig holds configuration for both scraping backends. The primary
// backend is required; the fallback is optional but strongly recommended
// since some retailer pages only render under JavaScript.
type ScraperConfig struct {
	PrimaryAPIKey   string        `mapstructure:"primary_api_key"`
	PrimaryBaseURL  string        `mapstructure:"primary_base_url"`
	FallbackAPIKey  string        `mapstructure:"fallback_api_key"`
	FallbackBaseURL string        `mapstructure:"fallback_base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// OCRConfig holds OCR service configuration. An empty APIKey disables OCR
// entirely; extraction then relies on HTML patterns and site overrides only.
type OCRConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExtractionConfig holds the tunable thresholds of the extraction engine.
// The numeric defaults are empirically tuned against real product pages and
// deliberately kept configurable rather than hardcoded.
type ExtractionConfig struct {
	// MinFactsTokens is the facts-block token count below which OCR is
	// considered worthwhile.
	MinFactsTokens int `mapstructure:"min_facts_tokens"`
	// MinIngredients is the ingredient count below which OCR is considered
	// worthwhile.
	MinIngredients int `mapstructure:"min_ingredients"`
	// MaxImages caps how many candidate images the locator returns.
	MaxImages int `mapstructure:"max_images"`
	// MaxOCRImages caps how many of those are actually sent to OCR.
	MaxOCRImages int `mapstructure:"max_ocr_images"`
}

// CacheConfig holds result-cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/labelscan/")

	v.SetEnvPrefix("LABELSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults cover everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// API keys default to empty so the env bindings are visible to Unmarshal.
	v.SetDefault("scraper.primary_api_key", "")
	v.SetDefault("scraper.fallback_api_key", "")
	v.SetDefault("ocr.api_key", "")

	v.SetDefault("scraper.primary_base_url", "https://api.firecrawl.dev")
	v.SetDefault("scraper.fallback_base_url", "https://app.scrapingbee.com/api/v1")
	v.SetDefault("scraper.timeout", "45s")

	v.SetDefault("ocr.base_url", "https://api.ocr.space/parse/imageurl")
	v.SetDefault("ocr.timeout", "30s")

	v.SetDefault("extraction.min_facts_tokens", 5)
	v.SetDefault("extraction.min_ingredients", 2)
	v.SetDefault("extraction.max_images", 10)
	v.SetDefault("extraction.max_ocr_images", 8)

	v.SetDefault("cache.ttl", "168h") // 7 days

	v.SetDefault("ratelimit.per_ip", 60)
}

// validate validates the configuration. A missing primary scraper key is a
// configuration error and must fail before any network calls; a missing OCR
// key merely disables OCR.
func validate(config *Config) error {
	if config.Scraper.PrimaryAPIKey == "" {
		return fmt.Errorf("primary scraper API key is required (set LABELSCAN_SCRAPER_PRIMARY_API_KEY)")
	}

	if config.Extraction.MinFactsTokens < 0 || config.Extraction.MinIngredients < 0 {
		return fmt.Errorf("extraction thresholds must be non-negative")
	}

	if config.Extraction.MaxOCRImages > config.Extraction.MaxImages {
		return fmt.Errorf("max_ocr_images (%d) cannot exceed max_images (%d)",
			config.Extraction.MaxOCRImages, config.Extraction.MaxImages)
	}

	return nil
}
