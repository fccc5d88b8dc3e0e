package shipping

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DistanceUnit tags parcel dimensions.
type DistanceUnit string

// WeightUnit tags parcel weight.
type WeightUnit string

const (
	UnitCentimeter DistanceUnit = "cm"
	UnitInch       DistanceUnit = "in"

	UnitKilogram WeightUnit = "kg"
	UnitPound    WeightUnit = "lb"
)

const (
	cmPerInch  = 2.54
	lbPerKg    = 2.20462262
	ozPerPound = 16.0
)

// Address is an immutable per-request value object. Street1 is required;
// Zip is required unless the country is postal-code exempt.
type Address struct {
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

// IsZero reports whether no field of the address is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// ContactName returns the name to put on shipping documents, preferring the
// personal name over the company.
func (a Address) ContactName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return strings.TrimSpace(a.Company)
}

// Parcel dimensions and weight must all be positive.
type Parcel struct {
	Length       float64      `json:"length"`
	Width        float64      `json:"width"`
	Height       float64      `json:"height"`
	DistanceUnit DistanceUnit `json:"distance_unit"`
	Weight       float64      `json:"weight"`
	WeightUnit   WeightUnit   `json:"weight_unit"`
}

// DimensionsIn returns length, width and height in inches.
func (p Parcel) DimensionsIn() (float64, float64, float64) {
	if p.DistanceUnit == UnitCentimeter {
		return p.Length / cmPerInch, p.Width / cmPerInch, p.Height / cmPerInch
	}
	return p.Length, p.Width, p.Height
}

// WeightLb returns the parcel weight in pounds.
func (p Parcel) WeightLb() float64 {
	if p.WeightUnit == UnitKilogram {
		return p.Weight * lbPerKg
	}
	return p.Weight
}

// WeightKg returns the parcel weight in kilograms.
func (p Parcel) WeightKg() float64 {
	if p.WeightUnit == UnitPound {
		return p.Weight / lbPerKg
	}
	return p.Weight
}

// WeightOz returns the parcel weight in ounces.
func (p Parcel) WeightOz() float64 {
	return p.WeightLb() * ozPerPound
}

// Incoterm allocates import-duty responsibility.
type Incoterm string

const (
	IncotermDDP Incoterm = "DDP"
	IncotermDDU Incoterm = "DDU"
)

// CustomsInfo is required for cross-border requests on providers that demand it.
type CustomsInfo struct {
	ContentsType string        `json:"contents_type,omitempty"`
	Incoterm     Incoterm      `json:"incoterm,omitempty"`
	Items        []CustomsItem `json:"items"`
}

type CustomsItem struct {
	Description   string          `json:"description"`
	Quantity      int             `json:"quantity"`
	Value         decimal.Decimal `json:"value"`
	Currency      string          `json:"currency,omitempty"`
	Weight        float64         `json:"weight"`
	WeightUnit    WeightUnit      `json:"weight_unit,omitempty"`
	HSCode        string          `json:"hs_code"`
	OriginCountry string          `json:"origin_country"`
}

// Rate is one normalized quote. Produced fresh per rate request, never mutated.
type Rate struct {
	ID           string          `json:"id,omitempty"`
	Provider     string          `json:"provider"`
	Carrier      string          `json:"carrier"`
	Service      string          `json:"service"`
	ServiceName  string          `json:"service_name,omitempty"`
	Cost         decimal.Decimal `json:"cost"`
	Currency     string          `json:"currency"`
	DeliveryDays int             `json:"delivery_days,omitempty"`
	Guaranteed   bool            `json:"guaranteed,omitempty"`
}

// LabelFormat is the file format of a purchased label.
type LabelFormat string

const (
	LabelFormatPDF LabelFormat = "PDF"
	LabelFormatPNG LabelFormat = "PNG"
	LabelFormatZPL LabelFormat = "ZPL"
)

// Label is the result of a successful purchase. Immutable once created.
type Label struct {
	ID             string      `json:"id"`
	Provider       string      `json:"provider"`
	TrackingNumber string      `json:"tracking_number"`
	LabelURL       string      `json:"label_url"`
	LabelFormat    LabelFormat `json:"label_format"`
	Rate           Rate        `json:"rate"`
	CreatedAt      time.Time   `json:"created_at"`
}

// TrackingStatus is the shared status vocabulary every provider's raw statuses
// are mapped into. Unknown raw statuses fall back to StatusException.
type TrackingStatus string

const (
	StatusLabelCreated   TrackingStatus = "label_created"
	StatusPreTransit     TrackingStatus = "pre_transit"
	StatusInTransit      TrackingStatus = "in_transit"
	StatusOutForDelivery TrackingStatus = "out_for_delivery"
	StatusDelivered      TrackingStatus = "delivered"
	StatusReturned       TrackingStatus = "returned"
	StatusException      TrackingStatus = "exception"
	StatusCancelled      TrackingStatus = "cancelled"
)

type TrackingEvent struct {
	Status    TrackingStatus `json:"status"`
	Message   string         `json:"message,omitempty"`
	Location  string         `json:"location,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// TrackingInfo carries events in provider order; the core does not re-sort them.
type TrackingInfo struct {
	TrackingNumber    string          `json:"tracking_number"`
	Carrier           string          `json:"carrier"`
	Status            TrackingStatus  `json:"status"`
	Events            []TrackingEvent `json:"events"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
}

// AddressValidationResult is ephemeral and never persisted. Suggested is set
// only when the carrier explicitly returned a corrected address.
type AddressValidationResult struct {
	Valid     bool     `json:"valid"`
	Original  Address  `json:"original"`
	Suggested *Address `json:"suggested,omitempty"`
	Messages  []string `json:"messages,omitempty"`
}
