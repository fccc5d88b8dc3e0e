package service

import (
	"log"
	"strings"

	"parcelbridge/config"
	"parcelbridge/shipping"
)

// NewProviders builds every adapter whose credential is configured. A missing
// credential means "not configured", never an error. When shipper defaults
// are present each adapter is wrapped in the defaults decorator.
func NewProviders(cfg config.Config) []shipping.Provider {
	var providers []shipping.Provider

	if strings.TrimSpace(cfg.EasyPost.APIKey) != "" {
		providers = append(providers, NewEasyPostProvider(cfg.EasyPost, cfg.LabelFormat))
	}
	if strings.TrimSpace(cfg.Shippo.APIToken) != "" {
		providers = append(providers, NewShippoProvider(cfg.Shippo, cfg.LabelFormat, cfg.DistanceUnit, cfg.WeightUnit))
	}
	if strings.TrimSpace(cfg.Karrio.ClientID) != "" && strings.TrimSpace(cfg.Karrio.ClientSecret) != "" {
		providers = append(providers, NewKarrioProvider(cfg.Karrio, cfg.LabelFormat, cfg.DistanceUnit, cfg.WeightUnit))
	}

	if hasShipperDefaults(cfg.ShipperDefaults) {
		for i, provider := range providers {
			providers[i] = WithShipperDefaults(provider, cfg.ShipperDefaults)
		}
	}

	names := make([]string, 0, len(providers))
	for _, provider := range providers {
		names = append(names, provider.Name())
	}
	log.Printf("configured shipping providers: %s\n", strings.Join(names, ", "))
	return providers
}

func hasShipperDefaults(defaults config.ShipperDefaults) bool {
	return defaults != config.ShipperDefaults{}
}
