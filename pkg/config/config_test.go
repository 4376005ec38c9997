package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.ProviderDomain != "redgifs.com" {
		t.Errorf("ProviderDomain = %q", cfg.ProviderDomain)
	}
	if cfg.AuthURL != "https://api.redgifs.com/v2/auth/temporary" {
		t.Errorf("AuthURL = %q", cfg.AuthURL)
	}
	if cfg.TokenTTL != 45*time.Minute {
		t.Errorf("TokenTTL = %v, want 45m", cfg.TokenTTL)
	}
	if cfg.StrategyTimeout != 8*time.Second {
		t.Errorf("StrategyTimeout = %v, want 8s", cfg.StrategyTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("STRATEGY_TIMEOUT", "5")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	// AuthURL follows the overridden API base unless set explicitly.
	if cfg.AuthURL != "https://api.example.com/v2/auth/temporary" {
		t.Errorf("AuthURL = %q", cfg.AuthURL)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("TokenTTL = %v, want 30m", cfg.TokenTTL)
	}
	// Bare integers are read as seconds.
	if cfg.StrategyTimeout != 5*time.Second {
		t.Errorf("StrategyTimeout = %v, want 5s", cfg.StrategyTimeout)
	}
}

func TestPageURL(t *testing.T) {
	cfg := &Config{ProviderDomain: "redgifs.com"}
	if got := cfg.PageURL("abc123"); got != "https://www.redgifs.com/watch/abc123" {
		t.Errorf("PageURL = %q", got)
	}
}
