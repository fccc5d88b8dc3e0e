package shipping

import "context"

// RateRequest is the canonical rate request. Origin must already be resolved
// by the caller; the core never looks addresses up by id.
type RateRequest struct {
	Origin      Address      `json:"origin"`
	Destination Address      `json:"destination"`
	Parcel      Parcel       `json:"parcel"`
	Customs     *CustomsInfo `json:"customs,omitempty"`
}

// International reports whether origin and destination countries differ.
func (r RateRequest) International() bool {
	origin := normalizeCountry(r.Origin.Country)
	dest := normalizeCountry(r.Destination.Country)
	return origin != "" && dest != "" && origin != dest
}

// LabelRequest selects the rate to purchase. Exactly one selection path is
// honored: an explicit Rate, an exact (Carrier, Service) match, or — when
// neither is given — the cheapest available rate.
type LabelRequest struct {
	RateRequest
	Rate    *Rate  `json:"rate,omitempty"`
	Carrier string `json:"carrier,omitempty"`
	Service string `json:"service,omitempty"`
}

// Provider is the capability set every carrier-aggregator adapter implements.
// The factory returns values of this type only, never a concrete adapter.
type Provider interface {
	Name() string
	GetRates(ctx context.Context, req RateRequest) ([]Rate, error)
	CreateLabel(ctx context.Context, req LabelRequest) (*Label, error)
	ValidateAddress(ctx context.Context, addr Address) (*AddressValidationResult, error)
	TrackShipment(ctx context.Context, trackingNumber string) (*TrackingInfo, error)
	CancelShipment(ctx context.Context, shipmentID string) error
}
