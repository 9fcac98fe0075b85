package adapter

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/pricewaze/ingest-cli/internal/model"
	"github.com/pricewaze/ingest-cli/internal/resilience"
)

// Registry holds the configured adapters and guards each with its own
// circuit breaker so one failing source cannot stall the others.
type Registry struct {
	order    []string
	adapters map[string]Adapter
	breakers map[string]*resilience.Breaker
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		breakers: make(map[string]*resilience.Breaker),
	}
}

// Register adds an adapter. Registration order is preserved; the first
// registered adapter is the primary source for non-averaged stats fields.
func (r *Registry) Register(a Adapter) {
	if _, exists := r.adapters[a.Name()]; !exists {
		r.order = append(r.order, a.Name())
	}
	r.adapters[a.Name()] = a
	r.breakers[a.Name()] = resilience.NewBreaker(a.Name(), resilience.BreakerConfig{
		ShouldTrip: resilience.IsTransient,
	})
}

// Get returns an adapter by name, or nil.
func (r *Registry) Get(name string) Adapter {
	return r.adapters[name]
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// Enabled returns the enabled adapters in registration order.
func (r *Registry) Enabled() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, a := range r.All() {
		if a.Enabled() {
			out = append(out, a)
		}
	}
	return out
}

// Info summarizes one registered adapter for status reporting.
type Info struct {
	Name    string       `json:"name"`
	Source  model.Source `json:"source"`
	Weight  float64      `json:"weight"`
	Enabled bool         `json:"enabled"`
}

// Describe returns adapter summaries in registration order.
func (r *Registry) Describe() []Info {
	out := make([]Info, 0, len(r.order))
	for _, a := range r.All() {
		out = append(out, Info{
			Name:    a.Name(),
			Source:  a.Source(),
			Weight:  a.Weight(),
			Enabled: a.Enabled(),
		})
	}
	return out
}

// FetchListings pulls raw listings for a zone from one adapter through its
// breaker. Transient upstream failures are retried with backoff before they
// count against the breaker.
func (r *Registry) FetchListings(ctx context.Context, name string, zone model.Zone) ([]model.RawProperty, error) {
	a := r.adapters[name]
	if a == nil {
		return nil, nil
	}
	return resilience.ExecuteVal(ctx, r.breakers[name], func(ctx context.Context) ([]model.RawProperty, error) {
		var listings []model.RawProperty
		err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
			var err error
			listings, err = a.GetListings(ctx, zone)
			return err
		})
		return listings, err
	})
}

// CombinedStats merges zone stats from every enabled adapter, weighting each
// contribution by the source weight times its own confidence. Returns nil
// when no source has data.
func (r *Registry) CombinedStats(ctx context.Context, zone model.Zone) (*MarketStats, error) {
	type weighted struct {
		stats  *MarketStats
		weight float64
	}
	var collected []weighted

	for _, a := range r.Enabled() {
		stats, err := resilience.ExecuteVal(ctx, r.breakers[a.Name()], func(ctx context.Context) (*MarketStats, error) {
			return a.GetMarketStats(ctx, zone)
		})
		if err != nil {
			zap.L().Warn("adapter stats unavailable",
				zap.String("adapter", a.Name()), zap.Error(err))
			continue
		}
		if stats != nil {
			collected = append(collected, weighted{stats: stats, weight: a.Weight()})
		}
	}
	if len(collected) == 0 {
		return nil, nil
	}

	var totalWeight float64
	for _, w := range collected {
		totalWeight += w.weight * w.stats.Confidence
	}
	if totalWeight == 0 {
		return collected[0].stats, nil
	}

	var avg, median float64
	totalListings := 0
	for _, w := range collected {
		f := w.weight * w.stats.Confidence
		avg += w.stats.AvgPriceM2 * f
		median += w.stats.MedianPriceM2 * f
		totalListings += w.stats.TotalListings
	}

	return &MarketStats{
		ZoneID:          zone.ID,
		AvgPriceM2:      math.Round(avg / totalWeight),
		MedianPriceM2:   math.Round(median / totalWeight),
		TotalListings:   totalListings,
		PriceTrend30d:   collected[0].stats.PriceTrend30d,
		DaysOnMarketAvg: collected[0].stats.DaysOnMarketAvg,
		Source:          "combined",
		Confidence:      math.Min(totalWeight/float64(len(collected)), 1),
		UpdatedAt:       time.Now().UTC(),
	}, nil
}
