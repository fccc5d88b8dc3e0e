package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"parcelbridge/config"
	"parcelbridge/shipping"
)

func testAddressDE() shipping.Address {
	return shipping.Address{
		Name:    "Hans Vogel",
		Street1: "Unter den Linden 5",
		City:    "Berlin",
		Zip:     "10117",
		Country: "DE",
	}
}

func testCustoms() *shipping.CustomsInfo {
	return &shipping.CustomsInfo{
		Items: []shipping.CustomsItem{{
			Description:   "Cotton t-shirt",
			Quantity:      2,
			Value:         decimal.RequireFromString("19.99"),
			Currency:      "USD",
			Weight:        0.5,
			WeightUnit:    shipping.UnitPound,
			HSCode:        "6109.10",
			OriginCountry: "US",
		}},
	}
}

func newShippoProvider(baseURL string, incoterm string, restricted []string) *ShippoProvider {
	return NewShippoProvider(config.ShippoConfig{
		APIToken:        "shippo_test",
		BaseURL:         baseURL,
		DefaultCurrency: "USD",
		Incoterm:        incoterm,
		DDPRestricted:   restricted,
	}, "PDF", "in", "lb")
}

func TestShippoRejectsInternationalWithoutCustoms(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	p := newShippoProvider(server.URL, "DDU", nil)
	_, err := p.GetRates(context.Background(), shipping.RateRequest{
		Origin:      testAddressUS(),
		Destination: testAddressDE(),
		Parcel:      testParcel(),
	})

	var valErr *shipping.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("cross-border without customs must be a ValidationError, got %v", err)
	}
	if called {
		t.Fatalf("rejected request must not reach the API")
	}
}

func TestShippoDomesticNeedsNoCustoms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload shippoShipmentRequest
		json.NewDecoder(r.Body).Decode(&payload)
		if payload.CustomsDeclaration != nil {
			t.Fatalf("domestic shipment must not carry a customs declaration")
		}
		if payload.Parcels[0].Weight != "2" || payload.Parcels[0].MassUnit != "lb" {
			t.Fatalf("parcel measures not passed through: %+v", payload.Parcels[0])
		}
		json.NewEncoder(w).Encode(shippoShipment{ObjectID: "shp_1"})
	}))
	defer server.Close()

	p := newShippoProvider(server.URL, "DDU", nil)
	if _, err := p.GetRates(context.Background(), shipping.RateRequest{
		Origin:      testAddressUS(),
		Destination: testAddressUS(),
		Parcel:      testParcel(),
	}); err != nil {
		t.Fatalf("GetRates: %v", err)
	}
}

func TestShippoCustomsDeclarationIncoterm(t *testing.T) {
	cases := []struct {
		name        string
		incoterm    string
		restricted  []string
		destination string
		want        string
	}{
		{"configured ddp honored", "DDP", nil, "DE", "DDP"},
		{"restricted country forces ddu", "DDP", nil, "BR", "DDU"},
		{"custom restricted list", "DDP", []string{"DE"}, "DE", "DDU"},
		{"empty default means ddu", "", nil, "DE", "DDU"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var declaration *shippoCustomsDeclaration
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var payload shippoShipmentRequest
				json.NewDecoder(r.Body).Decode(&payload)
				declaration = payload.CustomsDeclaration
				json.NewEncoder(w).Encode(shippoShipment{ObjectID: "shp_1"})
			}))
			defer server.Close()

			dest := testAddressDE()
			dest.Country = tc.destination

			p := newShippoProvider(server.URL, tc.incoterm, tc.restricted)
			if _, err := p.GetRates(context.Background(), shipping.RateRequest{
				Origin:      testAddressUS(),
				Destination: dest,
				Parcel:      testParcel(),
				Customs:     testCustoms(),
			}); err != nil {
				t.Fatalf("GetRates: %v", err)
			}

			if declaration == nil {
				t.Fatalf("international shipment must carry a customs declaration")
			}
			if declaration.Incoterm != tc.want {
				t.Fatalf("incoterm = %q, want %q", declaration.Incoterm, tc.want)
			}
			if declaration.Items[0].TariffNumber != "610910" {
				t.Fatalf("HS code dots must be stripped, got %q", declaration.Items[0].TariffNumber)
			}
		})
	}
}

func TestShippoDropsUnparseableRate(t *testing.T) {
	p := newShippoProvider("http://unused.test", "DDU", nil)
	rates := p.mapRates([]shippoRate{
		{ObjectID: "rate_bad", Provider: "usps", Amount: "N/A", Currency: "USD"},
		{ObjectID: "rate_ok", Provider: "ups", Amount: "5.00", Currency: "USD"},
	})
	if len(rates) != 1 || rates[0].ID != "rate_ok" {
		t.Fatalf("a rate with an unparseable amount must be dropped, got %+v", rates)
	}
	if rates[0].Cost.IsZero() {
		t.Fatalf("surviving rate lost its cost: %+v", rates[0])
	}
}

func TestShippoRejectsBadHSCode(t *testing.T) {
	p := newShippoProvider("http://unused.test", "DDU", nil)

	customs := testCustoms()
	customs.Items[0].HSCode = "61"
	_, err := p.GetRates(context.Background(), shipping.RateRequest{
		Origin:      testAddressUS(),
		Destination: testAddressDE(),
		Parcel:      testParcel(),
		Customs:     customs,
	})

	var valErr *shipping.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "HS code") {
		t.Fatalf("violation must name the HS code: %v", err)
	}
}

func TestShippoCreateLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shipments/":
			json.NewEncoder(w).Encode(shippoShipment{
				ObjectID: "shp_1",
				Rates: []shippoRate{{
					ObjectID: "rate_1",
					Provider: "fedex",
					Amount:   "14.80",
					Currency: "USD",
					ServiceLevel: struct {
						Token string `json:"token"`
						Name  string `json:"name"`
					}{Token: "fedex_ground", Name: "FedEx Ground"},
				}},
			})
		case "/transactions/":
			var payload shippoTransactionRequest
			json.NewDecoder(r.Body).Decode(&payload)
			if payload.Rate != "rate_1" {
				t.Fatalf("transaction must reference the selected rate, got %q", payload.Rate)
			}
			json.NewEncoder(w).Encode(shippoTransaction{
				ObjectID:       "txn_1",
				Status:         "SUCCESS",
				TrackingNumber: "794600000001",
				LabelURL:       "https://labels.test/shippo.pdf",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := newShippoProvider(server.URL, "DDU", nil)
	label, err := p.CreateLabel(context.Background(), shipping.LabelRequest{
		RateRequest: shipping.RateRequest{
			Origin:      testAddressUS(),
			Destination: testAddressUS(),
			Parcel:      testParcel(),
		},
		Carrier: "fedex",
		Service: "fedex_ground",
	})
	if err != nil {
		t.Fatalf("CreateLabel: %v", err)
	}
	if label.TrackingNumber != "794600000001" || label.Rate.ID != "rate_1" {
		t.Fatalf("unexpected label: %+v", label)
	}
}

func TestShippoFailedTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shipments/":
			json.NewEncoder(w).Encode(shippoShipment{
				ObjectID: "shp_1",
				Rates:    []shippoRate{{ObjectID: "rate_1", Provider: "usps", Amount: "7.33"}},
			})
		case "/transactions/":
			json.NewEncoder(w).Encode(shippoTransaction{
				ObjectID: "txn_1",
				Status:   "ERROR",
				Messages: []shippoMessage{{Text: "carrier account not active"}},
			})
		}
	}))
	defer server.Close()

	p := newShippoProvider(server.URL, "DDU", nil)
	_, err := p.CreateLabel(context.Background(), shipping.LabelRequest{
		RateRequest: shipping.RateRequest{
			Origin:      testAddressUS(),
			Destination: testAddressUS(),
			Parcel:      testParcel(),
		},
	})

	var provErr *shipping.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !strings.Contains(provErr.Message, "carrier account not active") {
		t.Fatalf("remote message not surfaced: %v", provErr)
	}
}

func TestShippoTrackingRequiresCarrierPrefix(t *testing.T) {
	p := newShippoProvider("http://unused.test", "DDU", nil)

	_, err := p.TrackShipment(context.Background(), "794600000001")
	var valErr *shipping.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError for bare tracking number, got %v", err)
	}
}

func TestShippoValidateAddressIsPassThrough(t *testing.T) {
	p := newShippoProvider("http://unused.test", "DDU", nil)

	addr := testAddressUS()
	result, err := p.ValidateAddress(context.Background(), addr)
	if err != nil {
		t.Fatalf("ValidateAddress: %v", err)
	}
	if !result.Valid || result.Original != addr || result.Suggested != nil {
		t.Fatalf("pass-through must echo the address as valid: %+v", result)
	}
}
