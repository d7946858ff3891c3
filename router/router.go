// Package router selects a (provider, model) pair per API call and retries
// transparently across a fallback chain when providers fail. Health recovery
// is optimistic: an unhealthy provider flips back to healthy five minutes
// after its last status update with no probe, a deliberate trade-off since no
// probing mechanism exists.
package router

import (
	"context"
	"time"

	"github.com/MBemera/Radsim-sub001/errors"
)

// Complexity grades a task for cost-aware model selection.
type Complexity string

const (
	Simple  Complexity = "simple"
	Medium  Complexity = "medium"
	Complex Complexity = "complex"
)

// Pair is an immutable (provider, model) value.
type Pair struct {
	Provider string
	Model    string
}

// Pricing is the per-million-token cost of a model.
type Pricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// Tables carries the routing configuration: each provider's priority-ordered
// model list, the universal low-cost fallback provider appended to every
// chain, and per-model pricing.
type Tables struct {
	FallbackModels   map[string][]string
	FallbackProvider string
	Pricing          map[string]Pricing
}

// ProviderStatus tracks the health of one provider.
type ProviderStatus struct {
	Provider   string
	Healthy    bool
	LastCheck  time.Time
	ErrorCount int
	LastError  string
}

// HealthRecovery is how long an unhealthy provider stays down before the
// router optimistically considers it healthy again.
const HealthRecovery = 5 * time.Minute

// Router routes requests across providers with health tracking.
type Router struct {
	primary Pair
	tables  Tables
	status  map[string]*ProviderStatus

	now func() time.Time
}

// New creates a router with every known provider initialized healthy.
func New(primaryProvider, primaryModel string, tables Tables) *Router {
	r := &Router{
		primary: Pair{Provider: primaryProvider, Model: primaryModel},
		tables:  tables,
		status:  make(map[string]*ProviderStatus),
		now:     time.Now,
	}
	for provider := range tables.FallbackModels {
		r.status[provider] = &ProviderStatus{
			Provider:  provider,
			Healthy:   true,
			LastCheck: r.now(),
		}
	}
	return r
}

// Primary returns the configured primary pair.
func (r *Router) Primary() Pair { return r.primary }

// FallbackChain builds the ordered chain for a provider: its own
// priority-ordered models, then the universal fallback provider's models
// (skipped when the requested provider already is the fallback provider).
func (r *Router) FallbackChain(provider string) []Pair {
	if provider == "" {
		provider = r.primary.Provider
	}

	var chain []Pair
	for _, model := range r.tables.FallbackModels[provider] {
		chain = append(chain, Pair{Provider: provider, Model: model})
	}
	if fb := r.tables.FallbackProvider; fb != "" && fb != provider {
		for _, model := range r.tables.FallbackModels[fb] {
			chain = append(chain, Pair{Provider: fb, Model: model})
		}
	}
	return chain
}

// MarkProviderUnhealthy records a failure against a provider.
func (r *Router) MarkProviderUnhealthy(provider, errMsg string) {
	status, ok := r.status[provider]
	if !ok {
		return
	}
	status.Healthy = false
	status.ErrorCount++
	status.LastError = errMsg
	status.LastCheck = r.now()
}

// MarkProviderHealthy records a success against a provider.
func (r *Router) MarkProviderHealthy(provider string) {
	status, ok := r.status[provider]
	if !ok {
		return
	}
	status.Healthy = true
	status.ErrorCount = 0
	status.LastError = ""
	status.LastCheck = r.now()
}

// IsProviderHealthy reports whether a provider is currently usable. Unknown
// providers are assumed healthy. An unhealthy provider auto-recovers after
// HealthRecovery has elapsed since its last status update.
func (r *Router) IsProviderHealthy(provider string) bool {
	status, ok := r.status[provider]
	if !ok {
		return true
	}
	if !status.Healthy && r.now().Sub(status.LastCheck) > HealthRecovery {
		status.Healthy = true
		return true
	}
	return status.Healthy
}

// Status returns a copy of one provider's health record.
func (r *Router) Status(provider string) (ProviderStatus, bool) {
	status, ok := r.status[provider]
	if !ok {
		return ProviderStatus{}, false
	}
	return *status, true
}

// SelectModel walks the fallback chain and returns the first admissible
// pair: unhealthy providers are skipped, models priced above maxCost (when
// maxCost > 0) are skipped, and simple tasks prefer the first free model
// encountered. If the whole chain is exhausted the primary pair is returned;
// SelectModel never answers "nothing".
func (r *Router) SelectModel(complexity Complexity, maxCost float64) Pair {
	var first *Pair
	for _, pair := range r.FallbackChain(r.primary.Provider) {
		if !r.IsProviderHealthy(pair.Provider) {
			continue
		}
		price, priced := r.tables.Pricing[pair.Model]
		if maxCost > 0 && priced && (price.InputPer1M > maxCost || price.OutputPer1M > maxCost) {
			continue
		}
		if complexity == Simple {
			if priced && price.InputPer1M == 0 {
				return pair
			}
			if first == nil {
				p := pair
				first = &p
			}
			continue
		}
		return pair
	}
	if first != nil {
		return *first
	}
	return r.primary
}

// CallFunc performs one model invocation against a concrete pair.
type CallFunc[T any] func(ctx context.Context, provider, model string) (T, error)

// RouteWithFallback invokes call across the fallback chain, with the
// requested pair pinned first. Unhealthy providers are skipped; a success
// marks the provider healthy and returns immediately; a failure marks it
// unhealthy and moves on. When every entry fails, a single aggregated
// provider error naming the last failure is returned.
//
// A single transient provider outage never aborts the turn as long as one
// other configured pair is reachable.
func RouteWithFallback[T any](ctx context.Context, r *Router, call CallFunc[T], provider, model string) (T, error) {
	var zero T

	if provider == "" {
		provider = r.primary.Provider
	}
	if model == "" {
		model = r.primary.Model
	}

	primary := Pair{Provider: provider, Model: model}
	chain := []Pair{primary}
	for _, pair := range r.FallbackChain(provider) {
		if pair != primary {
			chain = append(chain, pair)
		}
	}

	lastError := "no providers configured"
	for _, pair := range chain {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if !r.IsProviderHealthy(pair.Provider) {
			continue
		}

		out, err := call(ctx, pair.Provider, pair.Model)
		if err != nil {
			lastError = err.Error()
			r.MarkProviderUnhealthy(pair.Provider, lastError)
			continue
		}
		r.MarkProviderHealthy(pair.Provider)
		return out, nil
	}

	return zero, errors.NewKind(errors.KindProvider, "all providers failed. Last error: %s", lastError)
}
