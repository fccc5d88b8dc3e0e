package config

import (
	"os"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.Port != "50050" {
		t.Fatalf("default port = %q, want 50050", cfg.Port)
	}
	if cfg.LabelFormat != "PDF" {
		t.Fatalf("default label format = %q, want PDF", cfg.LabelFormat)
	}
	if cfg.EasyPost.BaseURL != "https://api.easypost.com/v2" {
		t.Fatalf("default easypost base URL = %q", cfg.EasyPost.BaseURL)
	}
	if cfg.Shippo.Incoterm != "DDU" {
		t.Fatalf("default incoterm = %q, want DDU", cfg.Shippo.Incoterm)
	}
	if cfg.Redis.RateSessionTTLMinutes != 30 {
		t.Fatalf("default rate session ttl = %d, want 30", cfg.Redis.RateSessionTTLMinutes)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("EASYPOST_API_KEY", "EZTK_override")
	t.Setenv("SHIPPER_CITY", "Reno")

	cfg := LoadConfig()
	if cfg.EasyPost.APIKey != "EZTK_override" {
		t.Fatalf("env override not applied, got %q", cfg.EasyPost.APIKey)
	}
	if cfg.ShipperDefaults.City != "Reno" {
		t.Fatalf("shipper defaults env not applied, got %q", cfg.ShipperDefaults.City)
	}
}

func TestLegacyEnvAliases(t *testing.T) {
	t.Setenv("EASYPOST_KEY", "EZTK_legacy")
	t.Setenv("EASYPOST_API_KEY", "")

	warnings := resolveLegacyEnv()
	if len(warnings) != 1 {
		t.Fatalf("expected one deprecation warning, got %v", warnings)
	}
	if os.Getenv("EASYPOST_API_KEY") != "EZTK_legacy" {
		t.Fatalf("legacy value not copied to the new variable")
	}
}

func TestLegacyEnvDoesNotClobberNewName(t *testing.T) {
	t.Setenv("SHIPPO_KEY", "legacy_token")
	t.Setenv("SHIPPO_API_TOKEN", "current_token")

	_ = resolveLegacyEnv()
	if os.Getenv("SHIPPO_API_TOKEN") != "current_token" {
		t.Fatalf("the new variable must win when both are set")
	}
}

func TestDSN(t *testing.T) {
	cfg := Config{DBUser: "ship", DBPass: "secret", DBHost: "db:3306", DBName: "parcels"}

	want := "ship:secret@tcp(db:3306)/parcels?parseTime=true&loc=UTC"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}
