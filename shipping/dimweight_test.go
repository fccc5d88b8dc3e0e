package shipping

import "testing"

func TestDimensionalWeight_RoundUpBeforeVolume(t *testing.T) {
	parcel := Parcel{
		Length: 12.2, Width: 10, Height: 10, DistanceUnit: UnitInch,
		Weight: 5, WeightUnit: UnitPound,
	}

	// UPS rounds 12.2 up to 13 before the volume: 1300/139 -> ceil 10.
	roundUp := DimensionalWeight(parcel, "UPS")
	if roundUp.DimensionalWeightLb != 10 {
		t.Fatalf("expected rounded dimensional weight 10, got %v", roundUp.DimensionalWeightLb)
	}

	// FedEx uses exact dimensions: 1220/139 -> ceil 9.
	exact := DimensionalWeight(parcel, "FedEx")
	if exact.DimensionalWeightLb != 9 {
		t.Fatalf("expected exact dimensional weight 9, got %v", exact.DimensionalWeightLb)
	}

	if roundUp.BillableWeightLb == exact.BillableWeightLb {
		t.Fatalf("expected round-up carrier to bill differently, both got %v", exact.BillableWeightLb)
	}
}

func TestDimensionalWeight_ActualWeightWins(t *testing.T) {
	parcel := Parcel{
		Length: 10, Width: 10, Height: 10, DistanceUnit: UnitInch,
		Weight: 50, WeightUnit: UnitPound,
	}

	result := DimensionalWeight(parcel, "fedex")
	if result.DimensionalApplied {
		t.Fatalf("expected actual weight to apply, got %+v", result)
	}
	if result.BillableWeightLb != 50 {
		t.Fatalf("expected billable weight 50, got %v", result.BillableWeightLb)
	}
}

func TestDimensionalWeight_UnknownCarrierUsesDefaultDivisor(t *testing.T) {
	parcel := Parcel{
		Length: 13.9, Width: 10, Height: 10, DistanceUnit: UnitInch,
		Weight: 1, WeightUnit: UnitPound,
	}

	result := DimensionalWeight(parcel, "purolator")
	if result.DimensionalWeightLb != 10 {
		t.Fatalf("expected default divisor 139 to yield 10, got %v", result.DimensionalWeightLb)
	}
	if !result.DimensionalApplied {
		t.Fatalf("expected dimensional weight to decide the bill")
	}
}

func TestDimensionalWeight_MetricParcelConverted(t *testing.T) {
	parcel := Parcel{
		Length: 25.4, Width: 25.4, Height: 25.4, DistanceUnit: UnitCentimeter,
		Weight: 1, WeightUnit: UnitKilogram,
	}

	// 10x10x10 in -> 1000/166 -> ceil 7 for USPS.
	result := DimensionalWeight(parcel, "usps")
	if result.DimensionalWeightLb != 7 {
		t.Fatalf("expected dimensional weight 7, got %v", result.DimensionalWeightLb)
	}
}
