package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parcelbridge/config"
	"parcelbridge/shipping"
)

func testAddressUS() shipping.Address {
	return shipping.Address{
		Name:    "Jane Porter",
		Street1: "417 Montgomery St",
		City:    "San Francisco",
		State:   "CA",
		Zip:     "94104",
		Country: "US",
		Phone:   "415-555-0134",
	}
}

func testParcel() shipping.Parcel {
	return shipping.Parcel{
		Length: 10, Width: 8, Height: 4,
		DistanceUnit: shipping.UnitInch,
		Weight:       2,
		WeightUnit:   shipping.UnitPound,
	}
}

func newEasyPostProvider(baseURL string) *EasyPostProvider {
	return NewEasyPostProvider(config.EasyPostConfig{
		APIKey:  "EZTK_test",
		BaseURL: baseURL,
	}, "PDF")
}

func TestEasyPostGetRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shipments" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		user, _, _ := r.BasicAuth()
		if user != "EZTK_test" {
			t.Fatalf("expected basic auth with the API key, got user %q", user)
		}
		var payload epShipmentRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Shipment.Parcel.Weight != 32 {
			t.Fatalf("2 lb parcel must be submitted as 32 oz, got %v", payload.Shipment.Parcel.Weight)
		}
		json.NewEncoder(w).Encode(epShipment{
			ID: "shp_1",
			Rates: []epRate{
				{ID: "rate_1", Carrier: "USPS", Service: "Priority", Rate: "9.45", Currency: "USD", DeliveryDays: 2},
				{ID: "rate_2", Carrier: "UPS", Service: "Ground", Rate: "12.10", Currency: "USD", DeliveryDays: 4},
			},
		})
	}))
	defer server.Close()

	p := newEasyPostProvider(server.URL)
	rates, err := p.GetRates(context.Background(), shipping.RateRequest{
		Origin:      testAddressUS(),
		Destination: testAddressUS(),
		Parcel:      testParcel(),
	})
	if err != nil {
		t.Fatalf("GetRates: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(rates))
	}
	if rates[0].Provider != ProviderEasyPost {
		t.Fatalf("rate not stamped with provider name: %+v", rates[0])
	}
	if rates[0].Cost.String() != "9.45" {
		t.Fatalf("cost lost precision: %s", rates[0].Cost)
	}
}

func TestEasyPostDropsUnparseableRate(t *testing.T) {
	p := newEasyPostProvider("http://unused")
	rates := p.mapRates([]epRate{
		{ID: "rate_bad", Carrier: "USPS", Service: "Priority", Rate: "N/A", Currency: "USD"},
		{ID: "rate_ok", Carrier: "UPS", Service: "Ground", Rate: "5.00", Currency: "USD"},
	})
	if len(rates) != 1 || rates[0].ID != "rate_ok" {
		t.Fatalf("a rate with an unparseable cost must be dropped, got %+v", rates)
	}

	// The surviving rate, not a zero-cost artifact, wins cheapest selection.
	selected, err := selectRate(rates, shipping.LabelRequest{})
	if err != nil {
		t.Fatalf("selectRate: %v", err)
	}
	if selected.ID != "rate_ok" || selected.Cost.IsZero() {
		t.Fatalf("cheapest selection picked %s with cost %s", selected.ID, selected.Cost)
	}
}

func TestEasyPostRejectsUnsupportedCountry(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	dest := testAddressUS()
	dest.Country = "ZW"
	p := newEasyPostProvider(server.URL)
	_, err := p.GetRates(context.Background(), shipping.RateRequest{
		Origin:      testAddressUS(),
		Destination: dest,
		Parcel:      testParcel(),
	})

	var valErr *shipping.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if called {
		t.Fatalf("validation failures must be caught before any network call")
	}
}

func TestEasyPostRejectsOversizeParcel(t *testing.T) {
	p := newEasyPostProvider("http://unused.test")
	parcel := testParcel()
	parcel.Length = 120 // over the 108 in cap

	_, err := p.GetRates(context.Background(), shipping.RateRequest{
		Origin:      testAddressUS(),
		Destination: testAddressUS(),
		Parcel:      parcel,
	})
	var valErr *shipping.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestEasyPostCreateLabelWithEndShipper(t *testing.T) {
	var buyPayload epBuyRequest
	endShipperCalls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/shipments" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(epShipment{
				ID: "shp_1",
				Rates: []epRate{
					{ID: "rate_1", Carrier: "USPS", Service: "Priority", Rate: "9.45", Currency: "USD"},
				},
			})
		case r.URL.Path == "/end_shippers":
			endShipperCalls++
			json.NewEncoder(w).Encode(epEndShipper{ID: "es_1"})
		case strings.HasSuffix(r.URL.Path, "/buy"):
			if err := json.NewDecoder(r.Body).Decode(&buyPayload); err != nil {
				t.Fatalf("decode buy request: %v", err)
			}
			json.NewEncoder(w).Encode(epShipment{
				ID:           "shp_1",
				TrackingCode: "9400111899561",
				SelectedRate: &epRate{ID: "rate_1", Carrier: "USPS", Service: "Priority", Rate: "9.45", Currency: "USD"},
				PostageLabel: &epPostageLabel{LabelURL: "https://labels.test/1.pdf", LabelFileType: "PDF"},
			})
		default:
			t.Fatalf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	p := newEasyPostProvider(server.URL)
	req := shipping.LabelRequest{
		RateRequest: shipping.RateRequest{
			Origin:      testAddressUS(),
			Destination: testAddressUS(),
			Parcel:      testParcel(),
		},
		Carrier: "USPS",
		Service: "Priority",
	}

	label, err := p.CreateLabel(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateLabel: %v", err)
	}
	if buyPayload.EndShipperID != "es_1" {
		t.Fatalf("USPS purchase must carry the end shipper id, got %q", buyPayload.EndShipperID)
	}
	if label.TrackingNumber != "9400111899561" || label.LabelURL != "https://labels.test/1.pdf" {
		t.Fatalf("unexpected label: %+v", label)
	}
	if label.LabelFormat != shipping.LabelFormatPDF {
		t.Fatalf("unexpected label format %q", label.LabelFormat)
	}

	// Second purchase must reuse the cached identity.
	if _, err := p.CreateLabel(context.Background(), req); err != nil {
		t.Fatalf("second CreateLabel: %v", err)
	}
	if endShipperCalls != 1 {
		t.Fatalf("end shipper must be created once and cached, got %d creations", endShipperCalls)
	}
}

func TestEasyPostEndShipperNeedsContactName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/shipments" {
			json.NewEncoder(w).Encode(epShipment{
				ID:    "shp_1",
				Rates: []epRate{{ID: "rate_1", Carrier: "USPS", Service: "Priority", Rate: "9.45"}},
			})
			return
		}
		t.Fatalf("unexpected call %s", r.URL.Path)
	}))
	defer server.Close()

	origin := testAddressUS()
	origin.Name = ""
	origin.Company = ""

	p := newEasyPostProvider(server.URL)
	_, err := p.CreateLabel(context.Background(), shipping.LabelRequest{
		RateRequest: shipping.RateRequest{
			Origin:      origin,
			Destination: testAddressUS(),
			Parcel:      testParcel(),
		},
	})
	var confErr *shipping.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestEasyPostErrorDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"code":"SHIPMENT.INVALID_PARAMS","message":"Unable to create shipment"}}`))
	}))
	defer server.Close()

	p := newEasyPostProvider(server.URL)
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
	if provErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status code not preserved: %d", provErr.StatusCode)
	}
	if provErr.Code != "SHIPMENT.INVALID_PARAMS" || provErr.Message != "Unable to create shipment" {
		t.Fatalf("remote code/message not preserved verbatim: %+v", provErr)
	}
}

func TestEasyPostNeverEndShipperMode(t *testing.T) {
	var buyPayload epBuyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/shipments":
			json.NewEncoder(w).Encode(epShipment{
				ID:    "shp_1",
				Rates: []epRate{{ID: "rate_1", Carrier: "USPS", Service: "Priority", Rate: "9.45"}},
			})
		case strings.HasSuffix(r.URL.Path, "/buy"):
			json.NewDecoder(r.Body).Decode(&buyPayload)
			json.NewEncoder(w).Encode(epShipment{
				ID:           "shp_1",
				TrackingCode: "9400",
				PostageLabel: &epPostageLabel{LabelURL: "https://labels.test/1.pdf"},
			})
		case r.URL.Path == "/end_shippers":
			t.Fatalf("end shipper must not be created in never mode")
		}
	}))
	defer server.Close()

	p := NewEasyPostProvider(config.EasyPostConfig{
		APIKey:     "EZTK_test",
		BaseURL:    server.URL,
		EndShipper: "never",
	}, "PDF")

	_, err := p.CreateLabel(context.Background(), shipping.LabelRequest{
		RateRequest: shipping.RateRequest{
			Origin:      testAddressUS(),
			Destination: testAddressUS(),
			Parcel:      testParcel(),
		},
	})
	if err != nil {
		t.Fatalf("CreateLabel: %v", err)
	}
	if buyPayload.EndShipperID != "" {
		t.Fatalf("never mode must not attach an end shipper id")
	}
}
