package service

import (
	"testing"

	"parcelbridge/config"
)

func TestNewProvidersSkipsMissingCredentials(t *testing.T) {
	providers := NewProviders(config.Config{})
	if len(providers) != 0 {
		t.Fatalf("no credentials means no providers, got %d", len(providers))
	}

	cfg := config.Config{}
	cfg.EasyPost.APIKey = "EZTK_test"
	cfg.Karrio.ClientID = "client"
	// secret intentionally missing, karrio must be skipped
	providers = NewProviders(cfg)
	if len(providers) != 1 {
		t.Fatalf("expected only easypost, got %d providers", len(providers))
	}
	if providers[0].Name() != ProviderEasyPost {
		t.Fatalf("unexpected provider %q", providers[0].Name())
	}
}

func TestNewProvidersAllThree(t *testing.T) {
	cfg := config.Config{}
	cfg.EasyPost.APIKey = "EZTK_test"
	cfg.Shippo.APIToken = "shippo_test"
	cfg.Karrio.ClientID = "client"
	cfg.Karrio.ClientSecret = "secret"
	cfg.Karrio.TokenURL = "https://karrio.test/oauth/token/"

	providers := NewProviders(cfg)
	if len(providers) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(providers))
	}
}

func TestNewProvidersWrapsWithShipperDefaults(t *testing.T) {
	cfg := config.Config{}
	cfg.EasyPost.APIKey = "EZTK_test"
	cfg.ShipperDefaults.City = "Reno"

	providers := NewProviders(cfg)
	if len(providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(providers))
	}
	wrapped, ok := providers[0].(*ShipperDefaultsProvider)
	if !ok {
		t.Fatalf("provider was not wrapped in the defaults decorator: %T", providers[0])
	}
	if wrapped.Name() != ProviderEasyPost {
		t.Fatalf("decorated provider lost its name: %q", wrapped.Name())
	}
}
