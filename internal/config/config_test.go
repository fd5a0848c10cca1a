package config

import (
	"testing"
	"time"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("NIMBUS_JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without NIMBUS_JWT_SECRET")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NIMBUS_JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.AccessTokenValidity != 72*time.Hour {
		t.Fatalf("AccessTokenValidity = %v", cfg.AccessTokenValidity)
	}
	if cfg.RevocationTTLBuffer != 2*time.Hour {
		t.Fatalf("RevocationTTLBuffer = %v", cfg.RevocationTTLBuffer)
	}
	if cfg.APITokenCacheTTL != 30*time.Second {
		t.Fatalf("APITokenCacheTTL = %v", cfg.APITokenCacheTTL)
	}
	if cfg.GodUserID != "" {
		t.Fatalf("GodUserID = %q, want empty by default", cfg.GodUserID)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NIMBUS_JWT_SECRET", "s3cret")
	t.Setenv("NIMBUS_HTTP_ADDR", ":9090")
	t.Setenv("ACCESS_TOKEN_VALIDITY", "24h")
	t.Setenv("API_TOKEN_CACHE_TTL", "bogus")
	t.Setenv("NIMBUS_GOD_USER_ID", "  root-1  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.AccessTokenValidity != 24*time.Hour {
		t.Fatalf("AccessTokenValidity = %v", cfg.AccessTokenValidity)
	}
	// unparseable durations fall back instead of failing startup
	if cfg.APITokenCacheTTL != 30*time.Second {
		t.Fatalf("APITokenCacheTTL = %v", cfg.APITokenCacheTTL)
	}
	if cfg.GodUserID != "root-1" {
		t.Fatalf("GodUserID = %q", cfg.GodUserID)
	}
}
