package config

import (
	"errors"
	"testing"
	"time"

	"github.com/nichepulse/tokenvault/internal/common"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if cfg.Environment != "development" {
		t.Fatalf("unexpected default environment: %q", cfg.Environment)
	}
	if cfg.AccessTokenValidityDuration != 15*time.Minute {
		t.Fatalf("unexpected access TTL: %v", cfg.AccessTokenValidityDuration)
	}
	if cfg.RefreshTokenValidityDuration != 7*24*time.Hour {
		t.Fatalf("unexpected refresh TTL: %v", cfg.RefreshTokenValidityDuration)
	}
	if cfg.AccessSecret != "" || cfg.RefreshSecret != "" {
		t.Fatalf("secrets must have no defaults")
	}
}

func TestParseEnv_Overlays(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://db/test")
	t.Setenv("APP_ENV", "staging")
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	if cfg.DatabaseDSN != "postgres://db/test" {
		t.Fatalf("DSN not overlaid: %q", cfg.DatabaseDSN)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("environment not overlaid: %q", cfg.Environment)
	}
	if cfg.AccessSecret != "access-secret" {
		t.Fatalf("access secret not overlaid")
	}
	if cfg.AccessTokenValidityDuration != 5*time.Minute {
		t.Fatalf("access TTL not overlaid: %v", cfg.AccessTokenValidityDuration)
	}
	if cfg.RefreshTokenValidityDuration != 7*24*time.Hour {
		t.Fatalf("refresh TTL must keep its default: %v", cfg.RefreshTokenValidityDuration)
	}
}

func TestParseFlags_Overlays(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	parseFlags(cfg, []string{"-d", "postgres://flag/db", "-e", "production", "-t", "1m", "-i", "30m"})

	if cfg.DatabaseDSN != "postgres://flag/db" {
		t.Fatalf("DSN not overlaid: %q", cfg.DatabaseDSN)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production environment")
	}
	if cfg.AccessTokenValidityDuration != time.Minute {
		t.Fatalf("access TTL not overlaid: %v", cfg.AccessTokenValidityDuration)
	}
	if cfg.SweepInterval != 30*time.Minute {
		t.Fatalf("sweep interval not overlaid: %v", cfg.SweepInterval)
	}
}

func TestEnsureSecrets_ProductionMissingSecretIsFatal(t *testing.T) {
	cfg := &Config{Environment: EnvProduction}

	_, err := cfg.EnsureSecrets(32)
	if !errors.Is(err, common.ErrConfiguration) {
		t.Fatalf("want common.ErrConfiguration, got %v", err)
	}
}

func TestEnsureSecrets_ProductionShortSecretIsFatal(t *testing.T) {
	cfg := &Config{
		Environment:   EnvProduction,
		AccessSecret:  "long-enough-secret-for-access-tokens-1",
		RefreshSecret: "too-short",
	}

	_, err := cfg.EnsureSecrets(32)
	if !errors.Is(err, common.ErrConfiguration) {
		t.Fatalf("want common.ErrConfiguration, got %v", err)
	}
}

func TestEnsureSecrets_ProductionValid(t *testing.T) {
	cfg := &Config{
		Environment:   EnvProduction,
		AccessSecret:  "0123456789abcdef0123456789abcdef",
		RefreshSecret: "fedcba9876543210fedcba9876543210",
	}

	synthesized, err := cfg.EnsureSecrets(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(synthesized) != 0 {
		t.Fatalf("nothing should be synthesized in production: %v", synthesized)
	}
}

func TestEnsureSecrets_DevelopmentSynthesizes(t *testing.T) {
	cfg := &Config{Environment: "development"}

	synthesized, err := cfg.EnsureSecrets(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(synthesized) != 2 {
		t.Fatalf("expected both secrets synthesized, got %v", synthesized)
	}
	if len(cfg.AccessSecret) < 32 || len(cfg.RefreshSecret) < 32 {
		t.Fatalf("synthesized secrets too short")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		t.Fatalf("the two classes must not share a secret")
	}
}

func TestEnsureSecrets_DevelopmentKeepsProvided(t *testing.T) {
	const access = "0123456789abcdef0123456789abcdef"
	cfg := &Config{Environment: "development", AccessSecret: access}

	synthesized, err := cfg.EnsureSecrets(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccessSecret != access {
		t.Fatalf("provided secret must be kept")
	}
	if len(synthesized) != 1 || synthesized[0] != "JWT_REFRESH_SECRET" {
		t.Fatalf("expected only the refresh secret synthesized, got %v", synthesized)
	}
}
