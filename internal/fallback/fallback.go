// Package fallback resolves zone pricing references through a widening
// cascade of scopes. The resolver never reports "no data": when every
// data-backed scope comes up short it returns the country baseline with
// very low confidence.
package fallback

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pricewaze/ingest-cli/internal/config"
	"github.com/pricewaze/ingest-cli/internal/geo"
	"github.com/pricewaze/ingest-cli/internal/model"
	"github.com/pricewaze/ingest-cli/internal/store"
)

// Scope identifies which data source level a reference came from.
type Scope string

const (
	ScopeExactZone    Scope = "exact_zone"
	ScopeExpandedZone Scope = "expanded_zone"
	ScopeCity         Scope = "city"
	ScopeSimilarCity  Scope = "similar_city"
	ScopeCountry      Scope = "country"
	ScopeGlobal       Scope = "global"
)

// scopeMultipliers scale the sample-size score down as the reference widens
// away from the requested zone.
var scopeMultipliers = map[Scope]float64{
	ScopeExactZone:    1.0,
	ScopeExpandedZone: 0.8,
	ScopeCity:         0.6,
	ScopeSimilarCity:  0.4,
	ScopeCountry:      0.25,
	ScopeGlobal:       0.1,
}

// ConfidenceLevel buckets the 0-100 confidence score.
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "high"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceVeryLow ConfidenceLevel = "very_low"
)

// PriceRange is the observed (or estimated) unit price spread.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Reference is a pricing reference with provenance and confidence attached.
type Reference struct {
	ZoneID          string          `json:"zone_id,omitempty"`
	ZoneName        string          `json:"zone_name"`
	Scope           Scope           `json:"reference_scope"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	ConfidenceScore int             `json:"confidence_score"`
	SampleSize      int             `json:"sample_size"`
	AvgPriceM2      float64         `json:"avg_price_m2"`
	MedianPriceM2   *float64        `json:"median_price_m2,omitempty"`
	PriceRange      PriceRange      `json:"price_range"`
	Warning         string          `json:"warning,omitempty"`
}

// Query identifies the location a pricing reference is wanted for. Zone and
// Point are both optional; MarketCode selects the terminal baseline.
type Query struct {
	Zone       *model.Zone
	Point      *geo.Point
	MarketCode string
}

// Resolver walks the scope cascade against the store.
type Resolver struct {
	rules *config.Rules
	store store.Store
}

func New(rules *config.Rules, st store.Store) *Resolver {
	return &Resolver{rules: rules, store: st}
}

type scopeStrategy struct {
	name string
	run  func(ctx context.Context, q Query) *Reference
}

// Resolve tries each scope in order and returns the first reference backed
// by enough comparables. Store failures at any level degrade to the next
// scope instead of failing the resolution.
func (r *Resolver) Resolve(ctx context.Context, q Query) Reference {
	strategies := []scopeStrategy{
		{name: string(ScopeExactZone), run: r.exactZone},
		{name: string(ScopeExpandedZone), run: r.expandedZone},
		{name: string(ScopeCity), run: r.city},
		{name: string(ScopeSimilarCity), run: r.similarCity},
	}

	for _, s := range strategies {
		if ref := s.run(ctx, q); ref != nil {
			zap.L().Debug("pricing reference resolved",
				zap.String("scope", s.name),
				zap.Int("sample_size", ref.SampleSize),
				zap.Int("confidence", ref.ConfidenceScore))
			return *ref
		}
	}
	return r.countryBaseline(q)
}

func (r *Resolver) exactZone(ctx context.Context, q Query) *Reference {
	if q.Zone == nil {
		return nil
	}
	comparables, err := r.store.ComparablesByZone(ctx, q.Zone.ID)
	if err != nil {
		zap.L().Warn("fallback: zone comparables query failed",
			zap.String("zone_id", q.Zone.ID), zap.Error(err))
		return nil
	}
	if len(comparables) < r.rules.Samples.Low {
		return nil
	}
	ref := r.build(comparables, ScopeExactZone)
	ref.ZoneID = q.Zone.ID
	ref.ZoneName = q.Zone.Name
	return ref
}

// expandedZone widens the search around the point, trying each configured
// radius in order.
func (r *Resolver) expandedZone(ctx context.Context, q Query) *Reference {
	if q.Point == nil {
		return nil
	}
	for _, radiusKm := range r.rules.Location.ExpandedRadiiKm {
		box := geo.BoxAround(*q.Point, radiusKm)
		comparables, err := r.store.ComparablesInBox(ctx, box)
		if err != nil {
			zap.L().Warn("fallback: radius comparables query failed",
				zap.Float64("radius_km", radiusKm), zap.Error(err))
			continue
		}
		if len(comparables) < r.rules.Samples.Low {
			continue
		}
		ref := r.build(comparables, ScopeExpandedZone)
		if q.Zone != nil {
			ref.ZoneID = q.Zone.ID
			ref.ZoneName = q.Zone.Name
		} else {
			ref.ZoneName = fmt.Sprintf("%.0fkm radius", radiusKm)
		}
		ref.Warning = fmt.Sprintf(
			"using %.0fkm expanded zone due to limited data in exact location", radiusKm)
		return ref
	}
	return nil
}

func (r *Resolver) city(ctx context.Context, q Query) *Reference {
	if q.Zone == nil || q.Zone.City == "" {
		return nil
	}
	comparables := r.cityComparables(ctx, q.Zone.City)
	if len(comparables) < r.rules.Samples.Low {
		return nil
	}
	ref := r.build(comparables, ScopeCity)
	ref.ZoneName = q.Zone.City
	ref.Warning = fmt.Sprintf(
		"using city-wide average for %s due to limited neighborhood data", q.Zone.City)
	return ref
}

// similarCity tries socioeconomically comparable cities in their configured
// order.
func (r *Resolver) similarCity(ctx context.Context, q Query) *Reference {
	if q.Zone == nil || q.Zone.City == "" {
		return nil
	}
	for _, similar := range r.rules.SimilarTo(q.Zone.City) {
		comparables := r.cityComparables(ctx, similar)
		if len(comparables) < r.rules.Samples.Low {
			continue
		}
		ref := r.build(comparables, ScopeSimilarCity)
		ref.ZoneName = similar
		ref.Warning = fmt.Sprintf(
			"using comparable city (%s) data, limited local data available", similar)
		return ref
	}
	return nil
}

// countryBaseline is the terminal scope and always produces a reference.
func (r *Resolver) countryBaseline(q Query) Reference {
	code := q.MarketCode
	if code == "" {
		code = "global"
	}
	baseline := r.rules.Market(code).BaselineM2

	return Reference{
		ZoneName:        strings.ToUpper(code) + " baseline",
		Scope:           ScopeCountry,
		ConfidenceLevel: ConfidenceVeryLow,
		ConfidenceScore: confidence(0, ScopeCountry),
		SampleSize:      0,
		AvgPriceM2:      baseline,
		PriceRange:      PriceRange{Min: baseline * 0.5, Max: baseline * 2},
		Warning: fmt.Sprintf(
			"no local data available, using %s country baseline estimate", strings.ToUpper(code)),
	}
}

func (r *Resolver) cityComparables(ctx context.Context, city string) []model.Comparable {
	zones, err := r.store.ListZonesByCity(ctx, city)
	if err != nil || len(zones) == 0 {
		if err != nil {
			zap.L().Warn("fallback: city zones query failed",
				zap.String("city", city), zap.Error(err))
		}
		return nil
	}
	ids := make([]string, len(zones))
	for i, z := range zones {
		ids[i] = z.ID
	}
	comparables, err := r.store.ComparablesByZones(ctx, ids)
	if err != nil {
		zap.L().Warn("fallback: city comparables query failed",
			zap.String("city", city), zap.Error(err))
		return nil
	}
	return comparables
}

func (r *Resolver) build(comparables []model.Comparable, scope Scope) *Reference {
	stats := computeStats(comparables)
	score := confidence(len(comparables), scope)
	return &Reference{
		Scope:           scope,
		ConfidenceLevel: level(score),
		ConfidenceScore: score,
		SampleSize:      len(comparables),
		AvgPriceM2:      stats.avg,
		MedianPriceM2:   stats.median,
		PriceRange:      PriceRange{Min: stats.min, Max: stats.max},
	}
}

// confidence combines the sample-size score with the scope multiplier.
func confidence(sampleSize int, scope Scope) int {
	var sampleScore float64
	switch {
	case sampleSize >= 10:
		sampleScore = 100
	case sampleSize >= 5:
		sampleScore = 70 + float64(sampleSize-5)*6
	case sampleSize >= 3:
		sampleScore = 40 + float64(sampleSize-3)*15
	case sampleSize > 0:
		sampleScore = float64(sampleSize) * 13
	}
	return int(math.Round(sampleScore * scopeMultipliers[scope]))
}

func level(score int) ConfidenceLevel {
	switch {
	case score >= 70:
		return ConfidenceHigh
	case score >= 50:
		return ConfidenceMedium
	case score >= 30:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

type priceStats struct {
	avg    float64
	median *float64
	min    float64
	max    float64
}

// computeStats summarizes unit prices. Comparables without a positive area
// contribute nothing.
func computeStats(comparables []model.Comparable) priceStats {
	values := make([]float64, 0, len(comparables))
	for _, c := range comparables {
		if ppm2 := c.PricePerM2(); ppm2 > 0 && !math.IsInf(ppm2, 0) {
			values = append(values, ppm2)
		}
	}
	if len(values) == 0 {
		return priceStats{}
	}

	sort.Float64s(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	median := math.Round(values[len(values)/2])
	return priceStats{
		avg:    math.Round(sum / float64(len(values))),
		median: &median,
		min:    math.Round(values[0]),
		max:    math.Round(values[len(values)-1]),
	}
}
