package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"parcelbridge/config"
	"parcelbridge/shipping"
)

type KarrioClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewKarrioClient authenticates with the engine's OAuth2 client-credentials
// flow; the oauth2 transport refreshes tokens as they expire.
func NewKarrioClient(cfg config.KarrioConfig) *KarrioClient {
	credentials := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	client := credentials.Client(context.Background())
	client.Timeout = 20 * time.Second

	return &KarrioClient{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		HTTP:    client,
	}
}

func (c *KarrioClient) FetchRates(ctx context.Context, payload karrioRateRequest) (*karrioRateResponse, error) {
	var rates karrioRateResponse
	if err := c.do(ctx, http.MethodPost, "/v1/proxy/rates", payload, &rates); err != nil {
		return nil, err
	}
	return &rates, nil
}

func (c *KarrioClient) CreateShipment(ctx context.Context, payload karrioShipmentRequest) (*karrioShipment, error) {
	var shipment karrioShipment
	if err := c.do(ctx, http.MethodPost, "/v1/shipments", payload, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (c *KarrioClient) PurchaseShipment(ctx context.Context, shipmentID, rateID string) (*karrioShipment, error) {
	var shipment karrioShipment
	payload := map[string]string{"selected_rate_id": rateID}
	path := fmt.Sprintf("/v1/shipments/%s/purchase", shipmentID)
	if err := c.do(ctx, http.MethodPost, path, payload, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (c *KarrioClient) GetTracker(ctx context.Context, carrier, trackingNumber string) (*karrioTracker, error) {
	var tracker karrioTracker
	path := fmt.Sprintf("/v1/trackers/%s/%s", carrier, trackingNumber)
	if err := c.do(ctx, http.MethodGet, path, nil, &tracker); err != nil {
		return nil, err
	}
	return &tracker, nil
}

func (c *KarrioClient) CancelShipment(ctx context.Context, shipmentID string) error {
	path := fmt.Sprintf("/v1/shipments/%s/cancel", shipmentID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *KarrioClient) do(ctx context.Context, method, path string, payload any, out any) error {
	if c == nil {
		return errors.New("karrio client is nil")
	}
	if c.BaseURL == "" {
		return errors.New("karrio API URL is empty")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return &shipping.ProviderError{
				Provider:   ProviderKarrio,
				StatusCode: resp.StatusCode,
				Message:    "upstream API error",
			}
		}
		return &shipping.ProviderError{
			Provider:   ProviderKarrio,
			StatusCode: resp.StatusCode,
			Message:    string(bodyBytes),
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
