// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent is sent on every outbound request. The provider rejects
// requests lacking a plausible browser fingerprint.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port         int
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Authentication for this service's own API (optional)
	APIPassword string

	// Upstream provider
	ProviderDomain string // e.g. "redgifs.com"
	APIBaseURL     string // e.g. "https://api.redgifs.com"
	AuthURL        string // temporary-token endpoint
	UserAgent      string

	// TokenTTL is the proactive refresh window for the provider token. The
	// provider does not document the real TTL; 45m is a safety margin inside
	// the observed 30-60m grant.
	TokenTTL time.Duration

	// StrategyTimeout bounds each resolution strategy so a hung upstream
	// cannot block fallthrough to the next one.
	StrategyTimeout time.Duration

	// Outbound proxy (optional)
	GlobalProxy string

	// Logging
	LogLevel string
	LogJSON  bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	port := getEnvInt("PORT", 8080)
	apiBase := getEnvString("API_BASE_URL", "https://api.redgifs.com")

	return &Config{
		Port:            port,
		BaseURL:         getEnvString("BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		APIPassword:     os.Getenv("API_PASSWORD"),
		ProviderDomain:  getEnvString("PROVIDER_DOMAIN", "redgifs.com"),
		APIBaseURL:      apiBase,
		AuthURL:         getEnvString("AUTH_URL", apiBase+"/v2/auth/temporary"),
		UserAgent:       getEnvString("USER_AGENT", DefaultUserAgent),
		TokenTTL:        getEnvDuration("TOKEN_TTL", 45*time.Minute),
		StrategyTimeout: getEnvDuration("STRATEGY_TIMEOUT", 8*time.Second),
		GlobalProxy:     os.Getenv("GLOBAL_PROXY"),
		LogLevel:        getEnvString("LOG_LEVEL", "info"),
		LogJSON:         getEnvBool("LOG_JSON", false),
	}
}

// PageURL returns the canonical watch-page URL for a content ID.
func (c *Config) PageURL(id string) string {
	return "https://www." + c.ProviderDomain + "/watch/" + id
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Try parsing as seconds first
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		// Try parsing as duration string
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
