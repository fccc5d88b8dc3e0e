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

type EasyPostClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewEasyPostClient(apiKey, baseURL string) *EasyPostClient {
	return &EasyPostClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *EasyPostClient) CreateShipment(ctx context.Context, payload epShipmentRequest) (*epShipment, error) {
	var shipment epShipment
	if err := c.do(ctx, http.MethodPost, "/shipments", payload, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (c *EasyPostClient) BuyShipment(ctx context.Context, shipmentID string, payload epBuyRequest) (*epShipment, error) {
	var shipment epShipment
	path := fmt.Sprintf("/shipments/%s/buy", shipmentID)
	if err := c.do(ctx, http.MethodPost, path, payload, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (c *EasyPostClient) VerifyAddress(ctx context.Context, payload epAddressRequest) (*epAddress, error) {
	var addr epAddress
	if err := c.do(ctx, http.MethodPost, "/addresses", payload, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

func (c *EasyPostClient) CreateTracker(ctx context.Context, payload epTrackerRequest) (*epTracker, error) {
	var tracker epTracker
	if err := c.do(ctx, http.MethodPost, "/trackers", payload, &tracker); err != nil {
		return nil, err
	}
	return &tracker, nil
}

func (c *EasyPostClient) RefundShipment(ctx context.Context, shipmentID string) error {
	path := fmt.Sprintf("/shipments/%s/refund", shipmentID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *EasyPostClient) CreateEndShipper(ctx context.Context, payload epEndShipperRequest) (*epEndShipper, error) {
	var endShipper epEndShipper
	if err := c.do(ctx, http.MethodPost, "/end_shippers", payload, &endShipper); err != nil {
		return nil, err
	}
	return &endShipper, nil
}

func (c *EasyPostClient) do(ctx context.Context, method, path string, payload any, out any) error {
	if c == nil {
		return errors.New("easypost client is nil")
	}
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 20 * time.Second}
	}
	if c.BaseURL == "" {
		return errors.New("easypost API URL is empty")
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
	req.SetBasicAuth(c.APIKey, "")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeEasyPostError(resp)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeEasyPostError(resp *http.Response) error {
	bodyBytes, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return &shipping.ProviderError{
			Provider:   ProviderEasyPost,
			StatusCode: resp.StatusCode,
			Message:    "upstream API error",
		}
	}

	var apiErr struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(bodyBytes, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &shipping.ProviderError{
			Provider:   ProviderEasyPost,
			StatusCode: resp.StatusCode,
			Code:       apiErr.Error.Code,
			Message:    apiErr.Error.Message,
		}
	}
	return &shipping.ProviderError{
		Provider:   ProviderEasyPost,
		StatusCode: resp.StatusCode,
		Message:    string(bodyBytes),
	}
}
