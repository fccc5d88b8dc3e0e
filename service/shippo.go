package service

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"parcelbridge/config"
	"parcelbridge/shipping"
)

const ProviderShippo = "shippo"

var shippoStatusMap = map[string]shipping.TrackingStatus{
	"unknown":     shipping.StatusException,
	"pre_transit": shipping.StatusPreTransit,
	"transit":     shipping.StatusInTransit,
	"delivered":   shipping.StatusDelivered,
	"returned":    shipping.StatusReturned,
	"failure":     shipping.StatusException,
}

// ============================
// Wire types
// ============================

type shippoShipmentRequest struct {
	AddressFrom        shippoAddress             `json:"address_from"`
	AddressTo          shippoAddress             `json:"address_to"`
	Parcels            []shippoParcel            `json:"parcels"`
	CustomsDeclaration *shippoCustomsDeclaration `json:"customs_declaration,omitempty"`
	Async              bool                      `json:"async"`
}

type shippoAddress struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type shippoParcel struct {
	Length       string `json:"length"`
	Width        string `json:"width"`
	Height       string `json:"height"`
	DistanceUnit string `json:"distance_unit"`
	Weight       string `json:"weight"`
	MassUnit     string `json:"mass_unit"`
}

type shippoCustomsDeclaration struct {
	ContentsType  string              `json:"contents_type"`
	Incoterm      string              `json:"incoterm"`
	Certify       bool                `json:"certify"`
	CertifySigner string              `json:"certify_signer"`
	Items         []shippoCustomsItem `json:"items"`
}

type shippoCustomsItem struct {
	Description   string `json:"description"`
	Quantity      int    `json:"quantity"`
	NetWeight     string `json:"net_weight"`
	MassUnit      string `json:"mass_unit"`
	ValueAmount   string `json:"value_amount"`
	ValueCurrency string `json:"value_currency"`
	TariffNumber  string `json:"tariff_number"`
	OriginCountry string `json:"origin_country"`
}

type shippoShipment struct {
	ObjectID string          `json:"object_id"`
	Status   string          `json:"status"`
	Rates    []shippoRate    `json:"rates"`
	Messages []shippoMessage `json:"messages"`
}

type shippoRate struct {
	ObjectID     string `json:"object_id"`
	Provider     string `json:"provider"`
	ServiceLevel struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	} `json:"servicelevel"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	EstimatedDays int    `json:"estimated_days"`
	DurationTerms string `json:"duration_terms"`
}

type shippoMessage struct {
	Source string `json:"source"`
	Code   string `json:"code"`
	Text   string `json:"text"`
}

type shippoTransactionRequest struct {
	Rate          string `json:"rate"`
	LabelFileType string `json:"label_file_type,omitempty"`
	Async         bool   `json:"async"`
}

type shippoTransaction struct {
	ObjectID       string          `json:"object_id"`
	Status         string          `json:"status"`
	TrackingNumber string          `json:"tracking_number"`
	LabelURL       string          `json:"label_url"`
	Messages       []shippoMessage `json:"messages"`
}

type shippoTrack struct {
	TrackingNumber  string              `json:"tracking_number"`
	Carrier         string              `json:"carrier"`
	ETA             string              `json:"eta"`
	TrackingStatus  *shippoTrackStatus  `json:"tracking_status"`
	TrackingHistory []shippoTrackStatus `json:"tracking_history"`
}

type shippoTrackStatus struct {
	Status        string `json:"status"`
	StatusDetails string `json:"status_details"`
	StatusDate    string `json:"status_date"`
	Location      *struct {
		City  string `json:"city"`
		State string `json:"state"`
	} `json:"location"`
}

// ============================
// Adapter
// ============================

// ShippoProvider is the international DDP/DDU-aware aggregator adapter. A
// cross-border request without customs info is rejected before any call.
type ShippoProvider struct {
	Client          *ShippoClient
	DefaultCurrency string
	LabelFormat     string
	Incoterm        shipping.Incoterm
	DDPRestricted   []string
	DistanceUnit    shipping.DistanceUnit
	WeightUnit      shipping.WeightUnit
}

func NewShippoProvider(cfg config.ShippoConfig, labelFormat, distanceUnit, weightUnit string) *ShippoProvider {
	return &ShippoProvider{
		Client:          NewShippoClient(cfg.APIToken, cfg.BaseURL),
		DefaultCurrency: defaultValue(cfg.DefaultCurrency, "USD"),
		LabelFormat:     labelFormat,
		Incoterm:        shipping.Incoterm(strings.ToUpper(defaultValue(cfg.Incoterm, "DDU"))),
		DDPRestricted:   cfg.DDPRestricted,
		DistanceUnit:    shipping.DistanceUnit(defaultValue(distanceUnit, "in")),
		WeightUnit:      shipping.WeightUnit(defaultValue(weightUnit, "lb")),
	}
}

func (p *ShippoProvider) Name() string { return ProviderShippo }

func (p *ShippoProvider) GetRates(ctx context.Context, req shipping.RateRequest) ([]shipping.Rate, error) {
	if err := p.validateRateRequest(req); err != nil {
		return nil, err
	}

	payload := p.buildShipmentRequest(req)
	shipment, err := shipping.Retry(ctx, 3, time.Second, func(ctx context.Context) (*shippoShipment, error) {
		return p.Client.CreateShipment(ctx, payload)
	})
	if err != nil {
		return nil, err
	}
	return p.mapRates(shipment.Rates), nil
}

func (p *ShippoProvider) CreateLabel(ctx context.Context, req shipping.LabelRequest) (*shipping.Label, error) {
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

	transaction, err := p.Client.CreateTransaction(ctx, shippoTransactionRequest{
		Rate:          selected.ID,
		LabelFileType: strings.ToUpper(p.LabelFormat),
	})
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(transaction.Status, "SUCCESS") {
		return nil, &shipping.ProviderError{
			Provider: ProviderShippo,
			Message:  defaultValue(joinShippoMessages(transaction.Messages), "label purchase failed"),
		}
	}

	return &shipping.Label{
		ID:             transaction.ObjectID,
		Provider:       ProviderShippo,
		TrackingNumber: transaction.TrackingNumber,
		LabelURL:       transaction.LabelURL,
		LabelFormat:    parseLabelFormat(p.LabelFormat),
		Rate:           selected,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// ValidateAddress is a pass-through: shippo verification is not wired, so
// every address reports valid. Callers must not read valid=true from this
// provider as a real verification signal.
func (p *ShippoProvider) ValidateAddress(_ context.Context, addr shipping.Address) (*shipping.AddressValidationResult, error) {
	return &shipping.AddressValidationResult{Valid: true, Original: addr}, nil
}

// TrackShipment expects "carrier/tracking-number"; the shippo track endpoint
// is keyed by both.
func (p *ShippoProvider) TrackShipment(ctx context.Context, trackingNumber string) (*shipping.TrackingInfo, error) {
	carrier, number, found := strings.Cut(trackingNumber, "/")
	if !found || strings.TrimSpace(carrier) == "" || strings.TrimSpace(number) == "" {
		return nil, shipping.NewValidationError([]string{
			"shippo tracking requires the carrier/tracking-number form",
		})
	}

	track, err := shipping.Retry(ctx, 3, time.Second, func(ctx context.Context) (*shippoTrack, error) {
		return p.Client.GetTrack(ctx, carrier, number)
	})
	if err != nil {
		return nil, err
	}

	info := &shipping.TrackingInfo{
		TrackingNumber: track.TrackingNumber,
		Carrier:        track.Carrier,
		Status:         shipping.StatusException,
	}
	if track.TrackingStatus != nil {
		info.Status = mapTrackingStatus(shippoStatusMap, track.TrackingStatus.Status)
	}
	if estimated, ok := parseTimestamp(track.ETA); ok {
		info.EstimatedDelivery = &estimated
	}
	for _, entry := range track.TrackingHistory {
		event := shipping.TrackingEvent{
			Status:  mapTrackingStatus(shippoStatusMap, entry.Status),
			Message: entry.StatusDetails,
		}
		if entry.Location != nil {
			event.Location = strings.TrimSpace(strings.TrimSuffix(
				entry.Location.City+", "+entry.Location.State, ", "))
		}
		if timestamp, ok := parseTimestamp(entry.StatusDate); ok {
			event.Timestamp = timestamp
		}
		info.Events = append(info.Events, event)
	}
	return info, nil
}

func (p *ShippoProvider) CancelShipment(ctx context.Context, transactionID string) error {
	return p.Client.CreateRefund(ctx, transactionID)
}

func (p *ShippoProvider) validateRateRequest(req shipping.RateRequest) error {
	var violations []string
	violations = append(violations, shipping.ValidateAddress("origin", req.Origin)...)
	violations = append(violations, shipping.ValidateAddress("destination", req.Destination)...)
	violations = append(violations, shipping.ValidateParcel(req.Parcel)...)
	if req.International() {
		violations = append(violations, shipping.ValidateCustoms(req.Customs)...)
	}
	return shipping.NewValidationError(violations)
}

func (p *ShippoProvider) buildShipmentRequest(req shipping.RateRequest) shippoShipmentRequest {
	payload := shippoShipmentRequest{
		AddressFrom: mapShippoAddress(req.Origin),
		AddressTo:   mapShippoAddress(req.Destination),
		Parcels:     []shippoParcel{mapShippoParcel(req.Parcel)},
	}
	if req.International() && req.Customs != nil {
		payload.CustomsDeclaration = p.buildCustomsDeclaration(req)
	}
	return payload
}

func (p *ShippoProvider) buildCustomsDeclaration(req shipping.RateRequest) *shippoCustomsDeclaration {
	incoterm := shipping.ResolveIncoterm(req.Destination.Country, p.Incoterm, p.DDPRestricted)

	declaration := &shippoCustomsDeclaration{
		ContentsType:  strings.ToUpper(defaultValue(req.Customs.ContentsType, "MERCHANDISE")),
		Incoterm:      string(incoterm),
		Certify:       true,
		CertifySigner: req.Origin.ContactName(),
	}
	for _, item := range req.Customs.Items {
		massUnit := string(item.WeightUnit)
		if massUnit == "" {
			massUnit = string(p.WeightUnit)
		}
		declaration.Items = append(declaration.Items, shippoCustomsItem{
			Description:   item.Description,
			Quantity:      item.Quantity,
			NetWeight:     formatMeasure(item.Weight),
			MassUnit:      massUnit,
			ValueAmount:   item.Value.StringFixed(2),
			ValueCurrency: defaultValue(item.Currency, p.DefaultCurrency),
			TariffNumber:  strings.ReplaceAll(item.HSCode, ".", ""),
			OriginCountry: strings.ToUpper(strings.TrimSpace(item.OriginCountry)),
		})
	}
	return declaration
}

func mapShippoAddress(addr shipping.Address) shippoAddress {
	return shippoAddress{
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

func mapShippoParcel(parcel shipping.Parcel) shippoParcel {
	return shippoParcel{
		Length:       formatMeasure(parcel.Length),
		Width:        formatMeasure(parcel.Width),
		Height:       formatMeasure(parcel.Height),
		DistanceUnit: string(parcel.DistanceUnit),
		Weight:       formatMeasure(parcel.Weight),
		MassUnit:     string(parcel.WeightUnit),
	}
}

func (p *ShippoProvider) mapRates(apiRates []shippoRate) []shipping.Rate {
	rates := make([]shipping.Rate, 0, len(apiRates))
	for _, rate := range apiRates {
		cost, err := decimal.NewFromString(strings.TrimSpace(rate.Amount))
		if err != nil {
			log.Printf("shippo rate %s has unparseable amount %q, dropping it\n", rate.ObjectID, rate.Amount)
			continue
		}
		rates = append(rates, shipping.Rate{
			ID:           rate.ObjectID,
			Provider:     ProviderShippo,
			Carrier:      rate.Provider,
			Service:      rate.ServiceLevel.Token,
			ServiceName:  rate.ServiceLevel.Name,
			Cost:         cost,
			Currency:     defaultValue(rate.Currency, p.DefaultCurrency),
			DeliveryDays: rate.EstimatedDays,
		})
	}
	return rates
}

func joinShippoMessages(messages []shippoMessage) string {
	parts := make([]string, 0, len(messages))
	for _, message := range messages {
		if text := strings.TrimSpace(message.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "; ")
}

func formatMeasure(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
