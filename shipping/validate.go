package shipping

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	hsCodePattern = regexp.MustCompile(`^[0-9]{4,10}$`)
	phonePattern  = regexp.MustCompile(`^\+?[0-9 ().-]{7,20}$`)
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Countries that do not use postal codes.
var postalCodeExempt = map[string]bool{
	"AE": true,
	"AO": true,
	"BS": true,
	"HK": true,
	"IE": true,
	"JM": true,
	"MO": true,
	"PA": true,
	"QA": true,
	"UG": true,
}

const maxCustomsDescriptionLen = 256

func normalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

// ValidHSCode reports whether code is a 4-10 digit HS tariff number, after
// removing separator dots ("6109.10" counts as "610910").
func ValidHSCode(code string) bool {
	code = strings.ReplaceAll(strings.TrimSpace(code), ".", "")
	return hsCodePattern.MatchString(code)
}

// ValidateAddress returns every completeness/format violation. It never
// returns an error value; the caller aggregates the list.
func ValidateAddress(role string, a Address) []string {
	var violations []string

	if strings.TrimSpace(a.Street1) == "" {
		violations = append(violations, fmt.Sprintf("%s street1 is required", role))
	}
	if strings.TrimSpace(a.City) == "" {
		violations = append(violations, fmt.Sprintf("%s city is required", role))
	}

	country := normalizeCountry(a.Country)
	if country == "" {
		violations = append(violations, fmt.Sprintf("%s country is required", role))
	} else if len(country) != 2 {
		violations = append(violations, fmt.Sprintf("%s country must be an ISO-3166-1 alpha-2 code", role))
	}

	if strings.TrimSpace(a.Zip) == "" && !postalCodeExempt[country] {
		violations = append(violations, fmt.Sprintf("%s postal code is required", role))
	}
	if phone := strings.TrimSpace(a.Phone); phone != "" && !phonePattern.MatchString(phone) {
		violations = append(violations, fmt.Sprintf("%s phone number is invalid", role))
	}
	if email := strings.TrimSpace(a.Email); email != "" && !emailPattern.MatchString(email) {
		violations = append(violations, fmt.Sprintf("%s email address is invalid", role))
	}

	return violations
}

// ValidateParcel checks the positivity invariant on dimensions and weight.
func ValidateParcel(p Parcel) []string {
	var violations []string

	if p.Length <= 0 {
		violations = append(violations, "parcel length must be greater than zero")
	}
	if p.Width <= 0 {
		violations = append(violations, "parcel width must be greater than zero")
	}
	if p.Height <= 0 {
		violations = append(violations, "parcel height must be greater than zero")
	}
	if p.Weight <= 0 {
		violations = append(violations, "parcel weight must be greater than zero")
	}

	return violations
}

// ParcelLimits are provider-specific upper bounds, expressed in inches and
// pounds. Zero values disable the corresponding check.
type ParcelLimits struct {
	MaxDimensionIn float64
	MaxWeightLb    float64
}

// ValidateParcelLimits checks a parcel against provider upper bounds.
func ValidateParcelLimits(p Parcel, limits ParcelLimits) []string {
	var violations []string

	length, width, height := p.DimensionsIn()
	if limits.MaxDimensionIn > 0 {
		for _, dim := range []float64{length, width, height} {
			if dim > limits.MaxDimensionIn {
				violations = append(violations,
					fmt.Sprintf("parcel dimension %.1f in exceeds the %.0f in maximum", dim, limits.MaxDimensionIn))
				break
			}
		}
	}
	if limits.MaxWeightLb > 0 && p.WeightLb() > limits.MaxWeightLb {
		violations = append(violations,
			fmt.Sprintf("parcel weight %.1f lb exceeds the %.0f lb maximum", p.WeightLb(), limits.MaxWeightLb))
	}

	return violations
}

// ValidateCustoms checks every item; a single bad HS code rejects the whole
// request before any network call.
func ValidateCustoms(info *CustomsInfo) []string {
	if info == nil {
		return []string{"customs info is required for international shipments"}
	}
	if len(info.Items) == 0 {
		return []string{"customs info must contain at least one item"}
	}

	var violations []string
	for i, item := range info.Items {
		label := fmt.Sprintf("customs item %d", i+1)
		if strings.TrimSpace(item.Description) == "" {
			violations = append(violations, label+" description is required")
		}
		if len(item.Description) > maxCustomsDescriptionLen {
			violations = append(violations, fmt.Sprintf("%s description exceeds %d characters", label, maxCustomsDescriptionLen))
		}
		if item.Quantity <= 0 {
			violations = append(violations, label+" quantity must be greater than zero")
		}
		if item.Value.IsNegative() {
			violations = append(violations, label+" declared value cannot be negative")
		}
		if item.Weight <= 0 {
			violations = append(violations, label+" weight must be greater than zero")
		}
		if !ValidHSCode(item.HSCode) {
			violations = append(violations, fmt.Sprintf("%s HS code %q is invalid", label, item.HSCode))
		}
		if normalizeCountry(item.OriginCountry) == "" {
			violations = append(violations, label+" origin country is required")
		}
	}
	return violations
}
