package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"parcelbridge/shipping"
)

func (a *App) home(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "parcelbridge")
}

type ratesRequest struct {
	shipping.RateRequest
	Providers []string `json:"providers,omitempty"`
}

func (a *App) ratesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ratesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, shipping.NewValidationError([]string{"invalid request body: " + err.Error()}))
		return
	}

	log.Printf("rates request: %s %s -> %s %s\n",
		req.Origin.Country, req.Origin.Zip, req.Destination.Country, req.Destination.Zip)

	result, err := a.Orchestrator.GetRates(r.Context(), req.RateRequest, req.Providers...)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, failure := range result.Failures {
		log.Printf("rate fan-out failure from %s: %v\n", failure.Provider, failure.Err)
	}
	writeJSON(w, http.StatusOK, result)
}

type createLabelRequest struct {
	shipping.LabelRequest
	RateID   string `json:"rate_id,omitempty"`
	Provider string `json:"provider,omitempty"`
}

func (a *App) createLabelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, shipping.NewValidationError([]string{"invalid request body: " + err.Error()}))
		return
	}

	var label *shipping.Label
	var err error
	if req.RateID != "" {
		label, err = a.Orchestrator.CreateLabelByRateID(r.Context(), req.RateID)
	} else {
		label, err = a.Orchestrator.CreateLabel(r.Context(), req.LabelRequest, req.Provider)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	label.LabelURL = a.mirrorLabelData(label)
	writeJSON(w, http.StatusCreated, label)
}

// labelRecordHandler serves a previously purchased label record by shipment
// id, when the store is configured.
func (a *App) labelRecordHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.Store == nil {
		writeError(w, &shipping.ConfigurationError{Message: "label records are not configured"})
		return
	}

	shipmentID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/labels/"), "/")
	if shipmentID == "" || strings.Contains(shipmentID, "/") {
		http.NotFound(w, r)
		return
	}

	record, err := a.Store.LabelByShipmentID(r.Context(), shipmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// trackHandler answers GET /track/{provider}/{tracking-number}. Providers
// whose tracking is keyed by carrier take the longer
// /track/{provider}/{carrier}/{tracking-number} form.
func (a *App) trackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/track/"), "/")
	providerName, trackingNumber, _ := strings.Cut(rest, "/")
	if strings.TrimSpace(trackingNumber) == "" {
		writeError(w, shipping.NewValidationError([]string{
			"tracking path must be /track/{provider}/{tracking-number}",
		}))
		return
	}

	info, err := a.Orchestrator.TrackShipment(r.Context(), trackingNumber, providerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type cancelRequest struct {
	Provider   string `json:"provider,omitempty"`
	ShipmentID string `json:"shipment_id"`
}

func (a *App) cancelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, shipping.NewValidationError([]string{"invalid request body: " + err.Error()}))
		return
	}
	if strings.TrimSpace(req.ShipmentID) == "" {
		writeError(w, shipping.NewValidationError([]string{"shipment_id is required"}))
		return
	}

	if err := a.Orchestrator.CancelShipment(r.Context(), req.ShipmentID, req.Provider); err != nil {
		writeError(w, err)
		return
	}
	if a.Store != nil {
		if err := a.Store.MarkLabelCancelled(r.Context(), req.ShipmentID); err != nil {
			log.Printf("failed to mark label cancelled for %s: %v\n", req.ShipmentID, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "shipment_id": req.ShipmentID})
}

type validateAddressRequest struct {
	Provider string           `json:"provider,omitempty"`
	Address  shipping.Address `json:"address"`
}

func (a *App) validateAddressHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req validateAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, shipping.NewValidationError([]string{"invalid request body: " + err.Error()}))
		return
	}

	result, err := a.Orchestrator.ValidateAddress(r.Context(), req.Address, req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// mirrorLabelData persists inline base64 label payloads to
// files/postage_label and rewrites the URL to this server. Providers that
// return a plain https URL pass through untouched; a failed write falls back
// to the original data URL.
func (a *App) mirrorLabelData(label *shipping.Label) string {
	payload, ok := strings.CutPrefix(label.LabelURL, "data:application/pdf;base64,")
	if !ok {
		return label.LabelURL
	}

	data, err := decodeBase64(payload)
	if err != nil {
		log.Println("failed to decode label data:", err)
		return label.LabelURL
	}
	if err := saveLabelPDF(label.ID, data); err != nil {
		log.Println("failed to save label PDF:", err)
		return label.LabelURL
	}

	baseURL := strings.TrimRight(a.Config.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:" + a.Config.Port
	}
	return fmt.Sprintf("%s/files/postage_label/%s.pdf", baseURL, label.ID)
}

func saveLabelPDF(labelID string, data []byte) error {
	dir := filepath.Join("files", "postage_label")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, labelID+".pdf"), data, 0o644)
}

func decodeBase64(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("label data is empty")
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(value)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("failed to write response:", err)
	}
}

type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	response := errorResponse{Error: err.Error()}

	var valErr *shipping.ValidationError
	var notFound *shipping.NotFoundError
	var provErr *shipping.ProviderError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
		response.Violations = valErr.Violations
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &provErr):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, response)
}
