package shipping

import (
	"fmt"
	"strings"
)

// ValidationError aggregates every rule violation found before any network
// call. It never carries just the first failure.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Violations, "; "))
}

// NewValidationError returns nil when there are no violations.
func NewValidationError(violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

// ProviderError carries the remote status code and message verbatim.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// NotFoundError marks a caller-specified selector that matched nothing,
// e.g. no rate for a requested carrier/service pair.
type NotFoundError struct {
	Resource string
	Selector string
}

func (e *NotFoundError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found for %s", e.Resource, e.Selector)
}

// ConfigurationError marks a required identity or setting that could not be
// established, e.g. an End Shipper without an origin contact name.
type ConfigurationError struct {
	Provider string
	Message  string
}

func (e *ConfigurationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("%s configuration error: %s", e.Provider, e.Message)
}
