package service

import (
	"context"
	"strings"

	"parcelbridge/config"
	"parcelbridge/shipping"
)

// ShipperDefaultsProvider is a transparent decorator: it merges configured
// default origin fields into rate and label requests before delegating, and
// passes every other call straight through. Request-supplied fields always
// win; the decorator only fills gaps.
type ShipperDefaultsProvider struct {
	Inner    shipping.Provider
	Defaults config.ShipperDefaults
}

func WithShipperDefaults(inner shipping.Provider, defaults config.ShipperDefaults) *ShipperDefaultsProvider {
	return &ShipperDefaultsProvider{Inner: inner, Defaults: defaults}
}

func (p *ShipperDefaultsProvider) Name() string { return p.Inner.Name() }

func (p *ShipperDefaultsProvider) GetRates(ctx context.Context, req shipping.RateRequest) ([]shipping.Rate, error) {
	req.Origin = p.mergeOrigin(req.Origin)
	return p.Inner.GetRates(ctx, req)
}

func (p *ShipperDefaultsProvider) CreateLabel(ctx context.Context, req shipping.LabelRequest) (*shipping.Label, error) {
	req.Origin = p.mergeOrigin(req.Origin)
	return p.Inner.CreateLabel(ctx, req)
}

func (p *ShipperDefaultsProvider) ValidateAddress(ctx context.Context, addr shipping.Address) (*shipping.AddressValidationResult, error) {
	return p.Inner.ValidateAddress(ctx, addr)
}

func (p *ShipperDefaultsProvider) TrackShipment(ctx context.Context, trackingNumber string) (*shipping.TrackingInfo, error) {
	return p.Inner.TrackShipment(ctx, trackingNumber)
}

func (p *ShipperDefaultsProvider) CancelShipment(ctx context.Context, shipmentID string) error {
	return p.Inner.CancelShipment(ctx, shipmentID)
}

func (p *ShipperDefaultsProvider) mergeOrigin(origin shipping.Address) shipping.Address {
	fill(&origin.Name, p.Defaults.Name)
	fill(&origin.Company, p.Defaults.Company)
	fill(&origin.Street1, p.Defaults.Street1)
	fill(&origin.Street2, p.Defaults.Street2)
	fill(&origin.City, p.Defaults.City)
	fill(&origin.State, p.Defaults.State)
	fill(&origin.Zip, p.Defaults.Zip)
	fill(&origin.Country, p.Defaults.Country)
	fill(&origin.Phone, p.Defaults.Phone)
	fill(&origin.Email, p.Defaults.Email)
	return origin
}

func fill(field *string, fallback string) {
	if strings.TrimSpace(*field) == "" && strings.TrimSpace(fallback) != "" {
		*field = fallback
	}
}
