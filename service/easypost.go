package service

import (
	"context"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"parcelbridge/config"
	"parcelbridge/shipping"
)

const ProviderEasyPost = "easypost"

// Generic parcel cap enforced before any call.
var easyPostParcelLimits = shipping.ParcelLimits{
	MaxDimensionIn: 108,
	MaxWeightLb:    150,
}

// Countries EasyPost will quote for.
var easyPostCountries = map[string]bool{
	"AT": true, "AU": true, "BE": true, "BR": true, "CA": true, "CH": true,
	"CN": true, "CZ": true, "DE": true, "DK": true, "ES": true, "FI": true,
	"FR": true, "GB": true, "HK": true, "IE": true, "IL": true, "IN": true,
	"IT": true, "JP": true, "KR": true, "MX": true, "NL": true, "NO": true,
	"NZ": true, "PL": true, "PT": true, "SE": true, "SG": true, "US": true,
}

// Consolidator carriers that regulations require an End Shipper identity for.
var endShipperCarrierPattern = regexp.MustCompile(`(?i)^(usps|upsdap|fedexdefault|dhlecommerce)$`)

var easyPostStatusMap = map[string]shipping.TrackingStatus{
	"unknown":              shipping.StatusException,
	"pre_transit":          shipping.StatusPreTransit,
	"in_transit":           shipping.StatusInTransit,
	"out_for_delivery":     shipping.StatusOutForDelivery,
	"available_for_pickup": shipping.StatusOutForDelivery,
	"delivered":            shipping.StatusDelivered,
	"return_to_sender":     shipping.StatusReturned,
	"failure":              shipping.StatusException,
	"error":                shipping.StatusException,
	"cancelled":            shipping.StatusCancelled,
}

// ============================
// Wire types
// ============================

type epShipmentRequest struct {
	Shipment epShipmentParams `json:"shipment"`
}

type epShipmentParams struct {
	ToAddress   epAddressParams `json:"to_address"`
	FromAddress epAddressParams `json:"from_address"`
	Parcel      epParcel        `json:"parcel"`
	CustomsInfo *epCustomsInfo  `json:"customs_info,omitempty"`
	Options     *epOptions      `json:"options,omitempty"`
}

type epAddressParams struct {
	Name    string   `json:"name,omitempty"`
	Company string   `json:"company,omitempty"`
	Street1 string   `json:"street1"`
	Street2 string   `json:"street2,omitempty"`
	City    string   `json:"city,omitempty"`
	State   string   `json:"state,omitempty"`
	Zip     string   `json:"zip,omitempty"`
	Country string   `json:"country"`
	Phone   string   `json:"phone,omitempty"`
	Email   string   `json:"email,omitempty"`
	Verify  []string `json:"verify,omitempty"`
}

type epParcel struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

type epCustomsInfo struct {
	ContentsType string          `json:"contents_type,omitempty"`
	CustomsItems []epCustomsItem `json:"customs_items"`
}

type epCustomsItem struct {
	Description    string  `json:"description"`
	Quantity       int     `json:"quantity"`
	Value          string  `json:"value"`
	Currency       string  `json:"currency,omitempty"`
	Weight         float64 `json:"weight"`
	HSTariffNumber string  `json:"hs_tariff_number"`
	OriginCountry  string  `json:"origin_country"`
}

type epOptions struct {
	LabelFormat string `json:"label_format,omitempty"`
}

type epShipment struct {
	ID           string          `json:"id"`
	Rates        []epRate        `json:"rates"`
	SelectedRate *epRate         `json:"selected_rate"`
	PostageLabel *epPostageLabel `json:"postage_label"`
	TrackingCode string          `json:"tracking_code"`
}

type epRate struct {
	ID                     string `json:"id"`
	Carrier                string `json:"carrier"`
	Service                string `json:"service"`
	Rate                   string `json:"rate"`
	Currency               string `json:"currency"`
	DeliveryDays           int    `json:"delivery_days"`
	DeliveryDateGuaranteed bool   `json:"delivery_date_guaranteed"`
}

type epPostageLabel struct {
	LabelURL      string `json:"label_url"`
	LabelFileType string `json:"label_file_type"`
}

type epBuyRequest struct {
	Rate         epRateRef `json:"rate"`
	EndShipperID string    `json:"end_shipper_id,omitempty"`
}

type epRateRef struct {
	ID string `json:"id"`
}

type epAddressRequest struct {
	Address epAddressParams `json:"address"`
}

type epAddress struct {
	epAddressParams
	Verifications *epVerifications `json:"verifications"`
}

type epVerifications struct {
	Delivery *epVerification `json:"delivery"`
}

type epVerification struct {
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type epTrackerRequest struct {
	Tracker epTrackerParams `json:"tracker"`
}

type epTrackerParams struct {
	TrackingCode string `json:"tracking_code"`
	Carrier      string `json:"carrier,omitempty"`
}

type epTracker struct {
	TrackingCode    string             `json:"tracking_code"`
	Carrier         string             `json:"carrier"`
	Status          string             `json:"status"`
	EstDeliveryDate string             `json:"est_delivery_date"`
	TrackingDetails []epTrackingDetail `json:"tracking_details"`
}

type epTrackingDetail struct {
	Status           string `json:"status"`
	Message          string `json:"message"`
	Datetime         string `json:"datetime"`
	TrackingLocation *struct {
		City  string `json:"city"`
		State string `json:"state"`
	} `json:"tracking_location"`
}

type epEndShipperRequest struct {
	Address epAddressParams `json:"address"`
}

type epEndShipper struct {
	ID string `json:"id"`
}

// ============================
// Adapter
// ============================

// EasyPostProvider is the domestic-focused aggregator adapter. Customs is
// best-effort: a cross-border request without customs info is submitted
// without a declaration rather than rejected.
type EasyPostProvider struct {
	Client      *EasyPostClient
	Mode        string
	LabelFormat string

	// endShipperMode is "auto", "always" or "never".
	endShipperMode string

	mu           sync.Mutex
	endShipperID string
}

func NewEasyPostProvider(cfg config.EasyPostConfig, labelFormat string) *EasyPostProvider {
	return &EasyPostProvider{
		Client:         NewEasyPostClient(cfg.APIKey, cfg.BaseURL),
		Mode:           defaultValue(cfg.Mode, "test"),
		LabelFormat:    labelFormat,
		endShipperMode: defaultValue(cfg.EndShipper, "auto"),
	}
}

func (p *EasyPostProvider) Name() string { return ProviderEasyPost }

func (p *EasyPostProvider) GetRates(ctx context.Context, req shipping.RateRequest) ([]shipping.Rate, error) {
	if err := p.validateRateRequest(req); err != nil {
		return nil, err
	}

	payload := p.buildShipmentRequest(req)
	shipment, err := shipping.Retry(ctx, 3, time.Second, func(ctx context.Context) (*epShipment, error) {
		return p.Client.CreateShipment(ctx, payload)
	})
	if err != nil {
		return nil, err
	}
	return p.mapRates(shipment.Rates), nil
}

func (p *EasyPostProvider) CreateLabel(ctx context.Context, req shipping.LabelRequest) (*shipping.Label, error) {
	if err := p.validateRateRequest(req.RateRequest); err != nil {
		return nil, err
	}

	shipment, err := p.Client.CreateShipment(ctx, p.buildShipmentRequest(req.RateRequest))
	if err != nil {
		return nil, err
	}

	selected, err := selectRate(p.mapRates(shipment.Rates), req)
	if err != nil {
		return nil, err
	}

	buy := epBuyRequest{Rate: epRateRef{ID: selected.ID}}
	if p.needsEndShipper(selected) {
		endShipperID, err := p.ensureEndShipper(ctx, req.Origin)
		if err != nil {
			return nil, err
		}
		buy.EndShipperID = endShipperID
	}

	// Purchase calls are never retried here; a retry risks a double buy.
	purchased, err := p.Client.BuyShipment(ctx, shipment.ID, buy)
	if err != nil {
		return nil, err
	}
	if purchased.PostageLabel == nil {
		return nil, &shipping.ProviderError{
			Provider: ProviderEasyPost,
			Message:  "purchase returned no postage label",
		}
	}

	if purchased.SelectedRate != nil {
		if mapped, ok := p.mapRate(*purchased.SelectedRate); ok {
			selected = mapped
		}
	}
	return &shipping.Label{
		ID:             purchased.ID,
		Provider:       ProviderEasyPost,
		TrackingNumber: purchased.TrackingCode,
		LabelURL:       purchased.PostageLabel.LabelURL,
		LabelFormat:    parseLabelFormat(defaultValue(purchased.PostageLabel.LabelFileType, p.LabelFormat)),
		Rate:           selected,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (p *EasyPostProvider) ValidateAddress(ctx context.Context, addr shipping.Address) (*shipping.AddressValidationResult, error) {
	payload := epAddressRequest{Address: mapEasyPostAddress(addr)}
	payload.Address.Verify = []string{"delivery"}

	verified, err := p.Client.VerifyAddress(ctx, payload)
	if err != nil {
		return nil, err
	}

	result := &shipping.AddressValidationResult{Valid: true, Original: addr}
	if verified.Verifications == nil || verified.Verifications.Delivery == nil {
		return result, nil
	}

	delivery := verified.Verifications.Delivery
	if !delivery.Success {
		result.Valid = false
		for _, item := range delivery.Errors {
			result.Messages = append(result.Messages, item.Message)
		}
		return result, nil
	}

	suggested := shipping.Address{
		Name:    verified.Name,
		Company: verified.Company,
		Street1: verified.Street1,
		Street2: verified.Street2,
		City:    verified.City,
		State:   verified.State,
		Zip:     verified.Zip,
		Country: verified.Country,
		Phone:   verified.Phone,
		Email:   verified.Email,
	}
	if suggested != addr {
		result.Suggested = &suggested
	}
	return result, nil
}

func (p *EasyPostProvider) TrackShipment(ctx context.Context, trackingNumber string) (*shipping.TrackingInfo, error) {
	payload := epTrackerRequest{Tracker: epTrackerParams{TrackingCode: trackingNumber}}
	tracker, err := shipping.Retry(ctx, 3, time.Second, func(ctx context.Context) (*epTracker, error) {
		return p.Client.CreateTracker(ctx, payload)
	})
	if err != nil {
		return nil, err
	}

	info := &shipping.TrackingInfo{
		TrackingNumber: tracker.TrackingCode,
		Carrier:        tracker.Carrier,
		Status:         mapTrackingStatus(easyPostStatusMap, tracker.Status),
	}
	if estimated, ok := parseTimestamp(tracker.EstDeliveryDate); ok {
		info.EstimatedDelivery = &estimated
	}
	for _, detail := range tracker.TrackingDetails {
		event := shipping.TrackingEvent{
			Status:  mapTrackingStatus(easyPostStatusMap, detail.Status),
			Message: detail.Message,
		}
		if detail.TrackingLocation != nil {
			event.Location = strings.TrimSpace(strings.TrimSuffix(
				detail.TrackingLocation.City+", "+detail.TrackingLocation.State, ", "))
		}
		if timestamp, ok := parseTimestamp(detail.Datetime); ok {
			event.Timestamp = timestamp
		}
		info.Events = append(info.Events, event)
	}
	return info, nil
}

func (p *EasyPostProvider) CancelShipment(ctx context.Context, shipmentID string) error {
	return p.Client.RefundShipment(ctx, shipmentID)
}

func (p *EasyPostProvider) validateRateRequest(req shipping.RateRequest) error {
	var violations []string
	violations = append(violations, shipping.ValidateAddress("origin", req.Origin)...)
	violations = append(violations, shipping.ValidateAddress("destination", req.Destination)...)
	violations = append(violations, validateEasyPostCountry("origin", req.Origin.Country)...)
	violations = append(violations, validateEasyPostCountry("destination", req.Destination.Country)...)
	violations = append(violations, shipping.ValidateParcel(req.Parcel)...)
	violations = append(violations, shipping.ValidateParcelLimits(req.Parcel, easyPostParcelLimits)...)
	if req.International() && req.Customs != nil {
		violations = append(violations, shipping.ValidateCustoms(req.Customs)...)
	}
	return shipping.NewValidationError(violations)
}

func validateEasyPostCountry(role, country string) []string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" || easyPostCountries[country] {
		return nil
	}
	return []string{role + " country " + country + " is not supported by easypost"}
}

func (p *EasyPostProvider) buildShipmentRequest(req shipping.RateRequest) epShipmentRequest {
	params := epShipmentParams{
		ToAddress:   mapEasyPostAddress(req.Destination),
		FromAddress: mapEasyPostAddress(req.Origin),
		Parcel: epParcel{
			Length: round1(dimIn(req.Parcel, 0)),
			Width:  round1(dimIn(req.Parcel, 1)),
			Height: round1(dimIn(req.Parcel, 2)),
			Weight: round1(req.Parcel.WeightOz()),
		},
	}
	if req.International() && req.Customs != nil {
		params.CustomsInfo = mapEasyPostCustoms(req.Customs)
	}
	if p.LabelFormat != "" {
		params.Options = &epOptions{LabelFormat: strings.ToUpper(p.LabelFormat)}
	}
	return epShipmentRequest{Shipment: params}
}

func mapEasyPostAddress(addr shipping.Address) epAddressParams {
	return epAddressParams{
		Name:    addr.Name,
		Company: addr.Company,
		Street1: addr.Street1,
		Street2: addr.Street2,
		City:    addr.City,
		State:   addr.State,
		Zip:     addr.Zip,
		Country: strings.ToUpper(strings.TrimSpace(addr.Country)),
		Phone:   addr.Phone,
		Email:   addr.Email,
	}
}

func mapEasyPostCustoms(info *shipping.CustomsInfo) *epCustomsInfo {
	mapped := &epCustomsInfo{ContentsType: defaultValue(info.ContentsType, "merchandise")}
	for _, item := range info.Items {
		mapped.CustomsItems = append(mapped.CustomsItems, epCustomsItem{
			Description:    item.Description,
			Quantity:       item.Quantity,
			Value:          item.Value.StringFixed(2),
			Currency:       item.Currency,
			Weight:         round1(itemWeightOz(item)),
			HSTariffNumber: strings.ReplaceAll(item.HSCode, ".", ""),
			OriginCountry:  strings.ToUpper(strings.TrimSpace(item.OriginCountry)),
		})
	}
	return mapped
}

func (p *EasyPostProvider) mapRates(apiRates []epRate) []shipping.Rate {
	rates := make([]shipping.Rate, 0, len(apiRates))
	for _, rate := range apiRates {
		mapped, ok := p.mapRate(rate)
		if !ok {
			continue
		}
		rates = append(rates, mapped)
	}
	return rates
}

// mapRate reports false when the remote cost does not parse; callers drop
// such rates rather than surface a zero cost.
func (p *EasyPostProvider) mapRate(rate epRate) (shipping.Rate, bool) {
	cost, err := decimal.NewFromString(strings.TrimSpace(rate.Rate))
	if err != nil {
		log.Printf("easypost rate %s has unparseable cost %q, dropping it\n", rate.ID, rate.Rate)
		return shipping.Rate{}, false
	}
	return shipping.Rate{
		ID:           rate.ID,
		Provider:     ProviderEasyPost,
		Carrier:      rate.Carrier,
		Service:      rate.Service,
		Cost:         cost,
		Currency:     defaultValue(rate.Currency, "USD"),
		DeliveryDays: rate.DeliveryDays,
		Guaranteed:   rate.DeliveryDateGuaranteed,
	}, true
}

func (p *EasyPostProvider) needsEndShipper(rate shipping.Rate) bool {
	switch strings.ToLower(p.endShipperMode) {
	case "always":
		return true
	case "never":
		return false
	default:
		return endShipperCarrierPattern.MatchString(strings.TrimSpace(rate.Carrier))
	}
}

// ensureEndShipper lazily creates and caches the End Shipper identity for
// this adapter instance. A failed creation aborts the purchase.
func (p *EasyPostProvider) ensureEndShipper(ctx context.Context, origin shipping.Address) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.endShipperID != "" {
		return p.endShipperID, nil
	}
	if origin.ContactName() == "" {
		return "", &shipping.ConfigurationError{
			Provider: ProviderEasyPost,
			Message:  "end shipper requires the origin address to carry a name or company",
		}
	}

	endShipper, err := p.Client.CreateEndShipper(ctx, epEndShipperRequest{Address: mapEasyPostAddress(origin)})
	if err != nil {
		return "", &shipping.ConfigurationError{
			Provider: ProviderEasyPost,
			Message:  "failed to create end shipper: " + err.Error(),
		}
	}
	log.Printf("easypost end shipper created: %s\n", endShipper.ID)
	p.endShipperID = endShipper.ID
	return p.endShipperID, nil
}

func mapTrackingStatus(table map[string]shipping.TrackingStatus, raw string) shipping.TrackingStatus {
	if status, ok := table[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return shipping.StatusException
}

func dimIn(p shipping.Parcel, axis int) float64 {
	length, width, height := p.DimensionsIn()
	switch axis {
	case 0:
		return length
	case 1:
		return width
	default:
		return height
	}
}

func itemWeightOz(item shipping.CustomsItem) float64 {
	if item.WeightUnit == shipping.UnitKilogram {
		return item.Weight * 35.273962
	}
	return item.Weight * 16
}

func round1(value float64) float64 {
	return float64(int(value*10+0.5)) / 10
}
