package shipping

import (
	"math"
	"strings"
)

// Per-carrier dimensional divisors for inch/pound billing.
var dimDivisors = map[string]float64{
	"ups":         139,
	"fedex":       139,
	"dhl_express": 139,
	"usps":        166,
	"canada_post": 139,
}

const defaultDimDivisor = 139

// Carriers that round each dimension up to the next whole inch before the
// volume is computed. The order matters: rounding first changes the billed
// weight at unit boundaries.
var roundUpCarriers = map[string]bool{
	"ups":         true,
	"dhl_express": true,
}

// DimWeightResult reports the billable weight decision for one parcel.
type DimWeightResult struct {
	ActualWeightLb      float64
	DimensionalWeightLb float64
	BillableWeightLb    float64
	// DimensionalApplied is true when the dimensional weight, not the scale
	// weight, decides the bill.
	DimensionalApplied bool
}

func normalizeCarrier(carrier string) string {
	carrier = strings.ToLower(strings.TrimSpace(carrier))
	carrier = strings.ReplaceAll(carrier, " ", "_")
	carrier = strings.ReplaceAll(carrier, "-", "_")
	return carrier
}

// DimensionalWeight computes the carrier-billable weight for a parcel:
// round dimensions up first (round-up carriers only), volume / divisor,
// ceiling, then max against the actual weight.
func DimensionalWeight(p Parcel, carrier string) DimWeightResult {
	key := normalizeCarrier(carrier)

	length, width, height := p.DimensionsIn()
	if roundUpCarriers[key] {
		length = math.Ceil(length)
		width = math.Ceil(width)
		height = math.Ceil(height)
	}

	divisor, ok := dimDivisors[key]
	if !ok {
		divisor = defaultDimDivisor
	}

	volume := length * width * height
	dimWeight := math.Ceil(volume / divisor)
	actual := p.WeightLb()

	result := DimWeightResult{
		ActualWeightLb:      actual,
		DimensionalWeightLb: dimWeight,
		BillableWeightLb:    actual,
	}
	if dimWeight > actual {
		result.BillableWeightLb = dimWeight
		result.DimensionalApplied = true
	}
	return result
}
