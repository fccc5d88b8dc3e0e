package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"parcelbridge/shipping"
)

// RateFailure is one provider's contribution to a partially failed fan-out.
type RateFailure struct {
	Provider string `json:"provider"`
	Err      error  `json:"-"`
	Message  string `json:"error"`
}

// RateResult merges every provider's quotes, cost-ascending, alongside the
// failures. One bad provider never aborts the others. BillableWeights holds
// the dimensional-weight decision per quoted carrier, so callers can see the
// billing basis behind each quote.
type RateResult struct {
	Rates           []shipping.Rate                     `json:"rates"`
	Failures        []RateFailure                       `json:"failures,omitempty"`
	BillableWeights map[string]shipping.DimWeightResult `json:"billable_weights,omitempty"`
}

// LabelRecorder persists purchased labels. Recording is best-effort; a
// recorder failure never fails the purchase.
type LabelRecorder interface {
	RecordLabel(ctx context.Context, label shipping.Label) error
}

// Orchestrator fans rate requests out across every configured provider and
// routes single-provider operations. Snapshots and records are optional.
type Orchestrator struct {
	providers []shipping.Provider
	snapshots *RateSnapshotStore
	records   LabelRecorder
}

func NewOrchestrator(providers []shipping.Provider, snapshots *RateSnapshotStore, records LabelRecorder) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		snapshots: snapshots,
		records:   records,
	}
}

// Providers returns the configured provider names in construction order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for _, provider := range o.providers {
		names = append(names, provider.Name())
	}
	return names
}

// GetRates dispatches to every selected provider concurrently and waits for
// all of them to settle. providerNames filters the fan-out; empty means all.
func (o *Orchestrator) GetRates(ctx context.Context, req shipping.RateRequest, providerNames ...string) (*RateResult, error) {
	selected, err := o.selectProviders(providerNames)
	if err != nil {
		return nil, err
	}

	result := &RateResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, provider := range selected {
		wg.Add(1)
		go func(provider shipping.Provider) {
			defer wg.Done()
			rates, err := provider.GetRates(ctx, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, RateFailure{
					Provider: provider.Name(),
					Err:      err,
					Message:  err.Error(),
				})
				return
			}
			result.Rates = append(result.Rates, rates...)
		}(provider)
	}
	wg.Wait()

	sort.SliceStable(result.Rates, func(i, j int) bool {
		return result.Rates[i].Cost.LessThan(result.Rates[j].Cost)
	})

	for _, rate := range result.Rates {
		if _, ok := result.BillableWeights[rate.Carrier]; ok {
			continue
		}
		if result.BillableWeights == nil {
			result.BillableWeights = make(map[string]shipping.DimWeightResult)
		}
		result.BillableWeights[rate.Carrier] = shipping.DimensionalWeight(req.Parcel, rate.Carrier)
	}

	if o.snapshots != nil {
		quotedAt := time.Now().UTC()
		for _, rate := range result.Rates {
			logSnapshotStoreError(rate.ID, o.snapshots.Save(ctx, RateSnapshot{
				Rate:     rate,
				Request:  req,
				QuotedAt: quotedAt,
			}))
		}
	}
	return result, nil
}

// CreateLabel routes the purchase to exactly one provider: the explicitly
// named one, the provider recorded on the chosen rate, or the first
// configured adapter.
func (o *Orchestrator) CreateLabel(ctx context.Context, req shipping.LabelRequest, providerName string) (*shipping.Label, error) {
	if providerName == "" && req.Rate != nil {
		providerName = req.Rate.Provider
	}
	provider, err := o.provider(providerName)
	if err != nil {
		return nil, err
	}

	label, err := provider.CreateLabel(ctx, req)
	if err != nil {
		return nil, err
	}
	if o.records != nil {
		if err := o.records.RecordLabel(ctx, *label); err != nil {
			log.Printf("failed to record label %s: %v\n", label.ID, err)
		}
	}
	return label, nil
}

// CreateLabelByRateID purchases a previously quoted rate from its snapshot.
// A missing snapshot means the quote expired and the purchase is refused.
func (o *Orchestrator) CreateLabelByRateID(ctx context.Context, rateID string) (*shipping.Label, error) {
	if o.snapshots == nil {
		return nil, &shipping.ConfigurationError{Message: "rate snapshot store not configured"}
	}
	snapshot, err := o.snapshots.Load(ctx, rateID)
	if err != nil {
		return nil, err
	}

	req := shipping.LabelRequest{
		RateRequest: snapshot.Request,
		Rate:        &snapshot.Rate,
	}
	return o.CreateLabel(ctx, req, snapshot.Rate.Provider)
}

func (o *Orchestrator) ValidateAddress(ctx context.Context, addr shipping.Address, providerName string) (*shipping.AddressValidationResult, error) {
	provider, err := o.provider(providerName)
	if err != nil {
		return nil, err
	}
	return provider.ValidateAddress(ctx, addr)
}

func (o *Orchestrator) TrackShipment(ctx context.Context, trackingNumber, providerName string) (*shipping.TrackingInfo, error) {
	provider, err := o.provider(providerName)
	if err != nil {
		return nil, err
	}
	return provider.TrackShipment(ctx, trackingNumber)
}

func (o *Orchestrator) CancelShipment(ctx context.Context, shipmentID, providerName string) error {
	provider, err := o.provider(providerName)
	if err != nil {
		return err
	}
	return provider.CancelShipment(ctx, shipmentID)
}

func (o *Orchestrator) selectProviders(names []string) ([]shipping.Provider, error) {
	if len(o.providers) == 0 {
		return nil, &shipping.ConfigurationError{Message: "no shipping providers configured"}
	}
	if len(names) == 0 {
		return o.providers, nil
	}

	selected := make([]shipping.Provider, 0, len(names))
	for _, name := range names {
		provider, err := o.provider(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, provider)
	}
	return selected, nil
}

func (o *Orchestrator) provider(name string) (shipping.Provider, error) {
	if len(o.providers) == 0 {
		return nil, &shipping.ConfigurationError{Message: "no shipping providers configured"}
	}
	if strings.TrimSpace(name) == "" {
		return o.providers[0], nil
	}
	for _, provider := range o.providers {
		if strings.EqualFold(provider.Name(), name) {
			return provider, nil
		}
	}
	return nil, &shipping.NotFoundError{Resource: "provider", Selector: name}
}
