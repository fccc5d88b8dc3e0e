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

	"parcelbridge/shipping"
)

type ShippoClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewShippoClient(token, baseURL string) *ShippoClient {
	return &ShippoClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *ShippoClient) CreateShipment(ctx context.Context, payload shippoShipmentRequest) (*shippoShipment, error) {
	var shipment shippoShipment
	if err := c.do(ctx, http.MethodPost, "/shipments/", payload, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (c *ShippoClient) CreateTransaction(ctx context.Context, payload shippoTransactionRequest) (*shippoTransaction, error) {
	var transaction shippoTransaction
	if err := c.do(ctx, http.MethodPost, "/transactions/", payload, &transaction); err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (c *ShippoClient) GetTrack(ctx context.Context, carrier, trackingNumber string) (*shippoTrack, error) {
	var track shippoTrack
	path := fmt.Sprintf("/tracks/%s/%s/", carrier, trackingNumber)
	if err := c.do(ctx, http.MethodGet, path, nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

func (c *ShippoClient) CreateRefund(ctx context.Context, transactionID string) error {
	payload := map[string]string{"transaction": transactionID}
	return c.do(ctx, http.MethodPost, "/refunds/", payload, nil)
}

func (c *ShippoClient) do(ctx context.Context, method, path string, payload any, out any) error {
	if c == nil {
		return errors.New("shippo client is nil")
	}
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 20 * time.Second}
	}
	if c.BaseURL == "" {
		return errors.New("shippo API URL is empty")
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
	req.Header.Set("Authorization", "ShippoToken "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return &shipping.ProviderError{
				Provider:   ProviderShippo,
				StatusCode: resp.StatusCode,
				Message:    "upstream API error",
			}
		}
		return &shipping.ProviderError{
			Provider:   ProviderShippo,
			StatusCode: resp.StatusCode,
			Message:    string(bodyBytes),
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
