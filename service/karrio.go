package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"parcelbridge/config"
	"parcelbridge/shipping"
)

const ProviderKarrio = "karrio"

var karrioStatusMap = map[string]shipping.TrackingStatus{
	"pending":          shipping.StatusLabelCreated,
	"pickup":           shipping.StatusPreTransit,
	"in_transit":       shipping.StatusInTransit,
	"out_for_delivery": shipping.StatusOutForDelivery,
	"ready_for_pickup": shipping.StatusOutForDelivery,
	"delivered":        shipping.StatusDelivered,
	"return_to_sender": shipping.StatusReturned,
	"delivery_failed":  shipping.StatusException,
	"cancelled":        shipping.StatusCancelled,
}

// ============================
// Wire types
// ============================

type karrioRateRequest struct {
	Shipper   karrioAddress  `json:"shipper"`
	Recipient karrioAddress  `json:"recipient"`
	Parcels   []karrioParcel `json:"parcels"`
}

type karrioShipmentRequest struct {
	Shipper   karrioAddress  `json:"shipper"`
	Recipient karrioAddress  `json:"recipient"`
	Parcels   []karrioParcel `json:"parcels"`
	Customs   *karrioCustoms `json:"customs,omitempty"`
	LabelType string         `json:"label_type,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type karrioAddress struct {
	PersonName   string `json:"person_name,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	StateCode    string `json:"state_code,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	Email        string `json:"email,omitempty"`
}

type karrioParcel struct {
	Length        float64 `json:"length"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	DimensionUnit string  `json:"dimension_unit"`
	Weight        float64 `json:"weight"`
	WeightUnit    string  `json:"weight_unit"`
}

type karrioCustoms struct {
	ContentType string            `json:"content_type,omitempty"`
	Incoterm    string            `json:"incoterm,omitempty"`
	Commodities []karrioCommodity `json:"commodities"`
}

type karrioCommodity struct {
	Description   string  `json:"description"`
	Quantity      int     `json:"quantity"`
	ValueAmount   string  `json:"value_amount"`
	ValueCurrency string  `json:"value_currency,omitempty"`
	Weight        float64 `json:"weight"`
	WeightUnit    string  `json:"weight_unit,omitempty"`
	HSCode        string  `json:"hs_code"`
	OriginCountry string  `json:"origin_country"`
}

type karrioRateResponse struct {
	Rates []karrioRate `json:"rates"`
}

type karrioRate struct {
	ID          string            `json:"id"`
	CarrierName string            `json:"carrier_name"`
	Service     string            `json:"service"`
	TotalCharge float64           `json:"total_charge"`
	Currency    string            `json:"currency"`
	TransitDays int               `json:"transit_days"`
	Meta        map[string]string `json:"meta"`
}

type karrioShipment struct {
	ID             string       `json:"id"`
	Status         string       `json:"status"`
	TrackingNumber string       `json:"tracking_number"`
	LabelURL       string       `json:"label_url"`
	LabelType      string       `json:"label_type"`
	Rates          []karrioRate `json:"rates"`
	SelectedRate   *karrioRate  `json:"selected_rate"`
}

type karrioTracker struct {
	TrackingNumber    string        `json:"tracking_number"`
	CarrierName       string        `json:"carrier_name"`
	Status            string        `json:"status"`
	EstimatedDelivery string        `json:"estimated_delivery"`
	Events            []karrioEvent `json:"events"`
}

type karrioEvent struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

// ============================
// Adapter
// ============================

// KarrioProvider talks to a self-hosted karrio workflow engine. Customs is
// best-effort and address validation is a pass-through: valid=true from this
// provider is not a verification signal.
type KarrioProvider struct {
	Client       *KarrioClient
	LabelFormat  string
	DistanceUnit shipping.DistanceUnit
	WeightUnit   shipping.WeightUnit
}

func NewKarrioProvider(cfg config.KarrioConfig, labelFormat, distanceUnit, weightUnit string) *KarrioProvider {
	return &KarrioProvider{
		Client:       NewKarrioClient(cfg),
		LabelFormat:  labelFormat,
		DistanceUnit: shipping.DistanceUnit(defaultValue(distanceUnit, "in")),
		WeightUnit:   shipping.WeightUnit(defaultValue(weightUnit, "lb")),
	}
}

func (p *KarrioProvider) Name() string { return ProviderKarrio }

func (p *KarrioProvider) GetRates(ctx context.Context, req shipping.RateRequest) ([]shipping.Rate, error) {
	if err := p.validateRateRequest(req); err != nil {
		return nil, err
	}

	payload := karrioRateRequest{
		Shipper:   mapKarrioAddress(req.Origin),
		Recipient: mapKarrioAddress(req.Destination),
		Parcels:   []karrioParcel{mapKarrioParcel(req.Parcel)},
	}
	response, err := shipping.Retry(ctx, 3, time.Second, func(ctx context.Context) (*karrioRateResponse, error) {
		return p.Client.FetchRates(ctx, payload)
	})
	if err != nil {
		return nil, err
	}
	return mapKarrioRates(response.Rates), nil
}

func (p *KarrioProvider) CreateLabel(ctx context.Context, req shipping.LabelRequest) (*shipping.Label, error) {
	if err := p.validateRateRequest(req.RateRequest); err != nil {
		return nil, err
	}

	payload := karrioShipmentRequest{
		Shipper:   mapKarrioAddress(req.Origin),
		Recipient: mapKarrioAddress(req.Destination),
		Parcels:   []karrioParcel{mapKarrioParcel(req.Parcel)},
		LabelType: strings.ToUpper(p.LabelFormat),
	}
	if req.International() && req.Customs != nil {
		payload.Customs = mapKarrioCustoms(req.Customs)
	}

	shipment, err := p.Client.CreateShipment(ctx, payload)
	if err != nil {
		return nil, err
	}

	selected, err := selectRate(mapKarrioRates(shipment.Rates), req)
	if err != nil {
		return nil, err
	}

	purchased, err := p.Client.PurchaseShipment(ctx, shipment.ID, selected.ID)
	if err != nil {
		return nil, err
	}
	return &shipping.Label{
		ID:             purchased.ID,
		Provider:       ProviderKarrio,
		TrackingNumber: purchased.TrackingNumber,
		LabelURL:       purchased.LabelURL,
		LabelFormat:    parseLabelFormat(defaultValue(purchased.LabelType, p.LabelFormat)),
		Rate:           selected,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// ValidateAddress is a pass-through; the engine has no verification surface.
// valid=true here carries no signal.
func (p *KarrioProvider) ValidateAddress(_ context.Context, addr shipping.Address) (*shipping.AddressValidationResult, error) {
	return &shipping.AddressValidationResult{Valid: true, Original: addr}, nil
}

// TrackShipment expects "carrier/tracking-number", matching the engine's
// tracker route.
func (p *KarrioProvider) TrackShipment(ctx context.Context, trackingNumber string) (*shipping.TrackingInfo, error) {
	carrier, number, found := strings.Cut(trackingNumber, "/")
	if !found || strings.TrimSpace(carrier) == "" || strings.TrimSpace(number) == "" {
		return nil, shipping.NewValidationError([]string{
			"karrio tracking requires the carrier/tracking-number form",
		})
	}

	tracker, err := shipping.Retry(ctx, 3, time.Second, func(ctx context.Context) (*karrioTracker, error) {
		return p.Client.GetTracker(ctx, carrier, number)
	})
	if err != nil {
		return nil, err
	}

	info := &shipping.TrackingInfo{
		TrackingNumber: tracker.TrackingNumber,
		Carrier:        tracker.CarrierName,
		Status:         mapTrackingStatus(karrioStatusMap, tracker.Status),
	}
	if estimated, ok := parseTimestamp(tracker.EstimatedDelivery); ok {
		info.EstimatedDelivery = &estimated
	}
	for _, entry := range tracker.Events {
		event := shipping.TrackingEvent{
			Status:   mapTrackingStatus(karrioStatusMap, entry.Code),
			Message:  entry.Description,
			Location: entry.Location,
		}
		if timestamp, ok := parseTimestamp(strings.TrimSpace(entry.Date + "T" + entry.Time)); ok {
			event.Timestamp = timestamp
		} else if timestamp, ok := parseTimestamp(entry.Date); ok {
			event.Timestamp = timestamp
		}
		info.Events = append(info.Events, event)
	}
	return info, nil
}

func (p *KarrioProvider) CancelShipment(ctx context.Context, shipmentID string) error {
	return p.Client.CancelShipment(ctx, shipmentID)
}

func (p *KarrioProvider) validateRateRequest(req shipping.RateRequest) error {
	var violations []string
	violations = append(violations, shipping.ValidateAddress("origin", req.Origin)...)
	violations = append(violations, shipping.ValidateAddress("destination", req.Destination)...)
	violations = append(violations, shipping.ValidateParcel(req.Parcel)...)
	if req.International() && req.Customs != nil {
		violations = append(violations, shipping.ValidateCustoms(req.Customs)...)
	}
	return shipping.NewValidationError(violations)
}

func mapKarrioAddress(addr shipping.Address) karrioAddress {
	return karrioAddress{
		PersonName:   addr.Name,
		CompanyName:  addr.Company,
		AddressLine1: addr.Street1,
		AddressLine2: addr.Street2,
		City:         addr.City,
		StateCode:    addr.State,
		PostalCode:   addr.Zip,
		CountryCode:  strings.ToUpper(strings.TrimSpace(addr.Country)),
		PhoneNumber:  addr.Phone,
		Email:        addr.Email,
	}
}

func mapKarrioParcel(parcel shipping.Parcel) karrioParcel {
	return karrioParcel{
		Length:        parcel.Length,
		Width:         parcel.Width,
		Height:        parcel.Height,
		DimensionUnit: strings.ToUpper(string(parcel.DistanceUnit)),
		Weight:        parcel.Weight,
		WeightUnit:    strings.ToUpper(string(parcel.WeightUnit)),
	}
}

func mapKarrioCustoms(info *shipping.CustomsInfo) *karrioCustoms {
	customs := &karrioCustoms{
		ContentType: defaultValue(info.ContentsType, "merchandise"),
		Incoterm:    string(info.Incoterm),
	}
	for _, item := range info.Items {
		customs.Commodities = append(customs.Commodities, karrioCommodity{
			Description:   item.Description,
			Quantity:      item.Quantity,
			ValueAmount:   item.Value.StringFixed(2),
			ValueCurrency: item.Currency,
			Weight:        item.Weight,
			WeightUnit:    strings.ToUpper(string(item.WeightUnit)),
			HSCode:        strings.ReplaceAll(item.HSCode, ".", ""),
			OriginCountry: strings.ToUpper(strings.TrimSpace(item.OriginCountry)),
		})
	}
	return customs
}

func mapKarrioRates(apiRates []karrioRate) []shipping.Rate {
	rates := make([]shipping.Rate, 0, len(apiRates))
	for _, rate := range apiRates {
		rates = append(rates, shipping.Rate{
			ID:           rate.ID,
			Provider:     ProviderKarrio,
			Carrier:      rate.CarrierName,
			Service:      rate.Service,
			ServiceName:  rate.Meta["service_name"],
			Cost:         decimal.NewFromFloat(rate.TotalCharge),
			Currency:     defaultValue(rate.Currency, "USD"),
			DeliveryDays: rate.TransitDays,
		})
	}
	return rates
}
