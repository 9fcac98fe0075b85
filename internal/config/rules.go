package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/pricewaze/ingest-cli/internal/model"
)

//go:embed markets.yaml
var marketsYAML []byte

// Bounds is an inclusive numeric range.
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies inside the bounds.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// MarketRules holds per-market tables keyed by ISO-ish market code.
type MarketRules struct {
	Currency   string  `yaml:"currency"`
	Price      Bounds  `yaml:"price"`       // plausible listing price in local currency
	BaselineM2 float64 `yaml:"baseline_m2"` // country baseline price per m2 (USD equivalent)
}

// LocationThresholds are the fixed distances used by deduplication and the
// expanded-zone fallback search.
type LocationThresholds struct {
	ExactMeters    float64   // same-property distance
	NearbyMeters   float64   // candidate neighborhood distance
	ExpandedRadiiKm []float64 // tried in order by the fallback resolver
}

// SampleThresholds are the minimum comparable counts used for confidence.
type SampleThresholds struct {
	Low    int // minimum usable sample
	Medium int
	High   int
}

// Rules is the immutable rule set constructed once at process start and
// passed explicitly into each component, rather than referenced as ambient
// globals.
type Rules struct {
	Markets       map[string]MarketRules
	SimilarCities map[string][]string

	Location     LocationThresholds
	Samples      SampleThresholds
	PricePerM2   Bounds
	Area         map[model.PropertyType]Bounds
	M2PerBedroom Bounds
	MinYearBuilt int
	ZScoreLimit  float64
}

type marketsFile struct {
	Markets       map[string]MarketRules `yaml:"markets"`
	SimilarCities map[string][]string    `yaml:"similar_cities"`
}

// LoadRules builds the rule set from the embedded market tables.
func LoadRules() (*Rules, error) {
	var mf marketsFile
	if err := yaml.Unmarshal(marketsYAML, &mf); err != nil {
		return nil, eris.Wrap(err, "config: parse market tables")
	}

	r := &Rules{
		Markets:       mf.Markets,
		SimilarCities: mf.SimilarCities,
		Location: LocationThresholds{
			ExactMeters:     10,
			NearbyMeters:    100,
			ExpandedRadiiKm: []float64{2, 5},
		},
		Samples: SampleThresholds{Low: 3, Medium: 5, High: 10},
		// $50/m2 (very rural) to $50K/m2 (luxury NYC/Monaco).
		PricePerM2: Bounds{Min: 50, Max: 50000},
		Area: map[model.PropertyType]Bounds{
			model.TypeApartment:  {Min: 20, Max: 1000},
			model.TypeHouse:      {Min: 40, Max: 5000},
			model.TypeLand:       {Min: 100, Max: 1000000},
			model.TypeCommercial: {Min: 20, Max: 50000},
			model.TypeOffice:     {Min: 10, Max: 10000},
		},
		M2PerBedroom: Bounds{Min: 8, Max: 100},
		MinYearBuilt: 1800,
		ZScoreLimit:  3,
	}

	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Market resolves the rules for a market code, falling back to the global
// table for unrecognized codes.
func (r *Rules) Market(code string) MarketRules {
	if m, ok := r.Markets[strings.ToUpper(code)]; ok {
		return m
	}
	if m, ok := r.Markets[strings.ToLower(code)]; ok {
		return m
	}
	return r.Markets["global"]
}

// SimilarTo returns the ordered list of socioeconomically comparable cities.
func (r *Rules) SimilarTo(city string) []string {
	return r.SimilarCities[city]
}

func (r *Rules) validate() error {
	var errs []string

	if _, ok := r.Markets["global"]; !ok {
		errs = append(errs, "global market table is required")
	}
	for code, m := range r.Markets {
		if m.Price.Min <= 0 || m.Price.Max <= m.Price.Min {
			errs = append(errs, fmt.Sprintf("market %s: invalid price bounds", code))
		}
		if m.BaselineM2 <= 0 {
			errs = append(errs, fmt.Sprintf("market %s: baseline_m2 must be > 0", code))
		}
	}
	if r.Samples.Low <= 0 || r.Samples.Medium < r.Samples.Low || r.Samples.High < r.Samples.Medium {
		errs = append(errs, "sample thresholds must be ordered low <= medium <= high")
	}
	if len(r.Location.ExpandedRadiiKm) == 0 {
		errs = append(errs, "at least one expanded radius is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: rule validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
