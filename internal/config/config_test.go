package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.AllowPublicRegistration {
		t.Error("expected AllowPublicRegistration to default false")
	}
	if cfg.JWTIssuer != "tenantcore" {
		t.Errorf("JWTIssuer = %q, want tenantcore", cfg.JWTIssuer)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 15m", cfg.AccessTokenTTL)
	}
	if cfg.DefaultChannelRateLimitPerSecond != 80 {
		t.Errorf("DefaultChannelRateLimitPerSecond = %d, want 80", cfg.DefaultChannelRateLimitPerSecond)
	}
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("JWT_ISSUER", "custom-issuer")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("CHANNEL_RATE_LIMIT_PER_SECOND", "40")
	t.Setenv("ALLOW_PUBLIC_REGISTRATION", "true")

	cfg := Load()

	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want custom-issuer", cfg.JWTIssuer)
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 30m", cfg.AccessTokenTTL)
	}
	if cfg.DefaultChannelRateLimitPerSecond != 40 {
		t.Errorf("DefaultChannelRateLimitPerSecond = %d, want 40", cfg.DefaultChannelRateLimitPerSecond)
	}
	if !cfg.AllowPublicRegistration {
		t.Error("expected AllowPublicRegistration to be true")
	}
}

func TestLoad_MalformedDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "not-a-duration")

	cfg := Load()

	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("expected fallback to default on malformed duration, got %v", cfg.AccessTokenTTL)
	}
}
