// Package outlier validates listing plausibility against market rule tables
// and zone statistics. Validation never rejects a record: it accumulates
// reasons, a trust penalty, and corrective suggestions, and leaves the
// keep-or-quarantine decision to the ingestion pipeline.
package outlier

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pricewaze/ingest-cli/internal/config"
	"github.com/pricewaze/ingest-cli/internal/model"
	"github.com/pricewaze/ingest-cli/internal/store"
)

// Reason codes for outlier flags. The zone deviation check shares the
// price-per-m2 tag with the absolute bounds check.
const (
	ReasonPriceTooLow     = "price_too_low"
	ReasonPriceTooHigh    = "price_too_high"
	ReasonPricePerM2      = "price_per_m2_outlier"
	ReasonAreaTooSmall    = "area_too_small"
	ReasonAreaTooLarge    = "area_too_large"
	ReasonBedroomMismatch = "bedroom_area_mismatch"
	ReasonYearInvalid     = "year_invalid"
)

// Penalty contributions per signal. The accumulated penalty is capped so a
// flagged record always retains a fraction of its trust score.
const (
	penaltyMarketPrice = 0.3
	penaltyPricePerM2  = 0.4
	penaltyArea        = 0.2
	penaltyBedrooms    = 0.15
	penaltyYear        = 0.1
	penaltyZone        = 0.3
	penaltyCap         = 0.9
)

// Suggestion proposes a concrete correction for a flagged field.
type Suggestion struct {
	Field          string  `json:"field"`
	CurrentValue   float64 `json:"current_value"`
	SuggestedValue float64 `json:"suggested_value"`
	Reason         string  `json:"reason"`
}

// Result is the outcome of plausibility validation for one record.
type Result struct {
	IsOutlier   bool         `json:"is_outlier"`
	Reasons     []string     `json:"reasons,omitempty"`
	Penalty     float64      `json:"penalty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// Validator checks records against market rules and, when a zone is known,
// against the zone's price distribution.
type Validator struct {
	rules  *config.Rules
	store  store.Store
	now    func() time.Time
	printf *message.Printer
}

func New(rules *config.Rules, st store.Store) *Validator {
	return &Validator{
		rules:  rules,
		store:  st,
		now:    time.Now,
		printf: message.NewPrinter(language.English),
	}
}

// Validate runs every plausibility check against one record. marketCode
// selects the market rule table; unknown codes use the global table.
func (v *Validator) Validate(ctx context.Context, p *model.Property, marketCode string) Result {
	var res Result

	v.checkMarketPrice(p, marketCode, &res)
	v.checkPricePerM2(p, &res)
	v.checkArea(p, &res)
	v.checkBedroomDensity(p, &res)
	v.checkYearBuilt(p, &res)
	v.checkZoneDeviation(ctx, p, &res)

	if res.Penalty > penaltyCap {
		res.Penalty = penaltyCap
	}
	res.IsOutlier = len(res.Reasons) > 0
	return res
}

func (v *Validator) checkMarketPrice(p *model.Property, marketCode string, res *Result) {
	market := v.rules.Market(marketCode)
	switch {
	case p.Price < market.Price.Min:
		res.flag(ReasonPriceTooLow, penaltyMarketPrice)
	case p.Price > market.Price.Max:
		res.flag(ReasonPriceTooHigh, penaltyMarketPrice)
	}
}

// checkPricePerM2 flags implausible unit prices and recognizes the common
// "price entered in thousands" data-entry error. Any unit price below the
// floor proposes the x1000 correction; the correction is advisory and never
// alters the record, so it is offered even when the corrected value would
// itself be unusual.
func (v *Validator) checkPricePerM2(p *model.Property, res *Result) {
	if p.AreaM2 <= 0 {
		return
	}
	ppm2 := p.Price / p.AreaM2
	if v.rules.PricePerM2.Contains(ppm2) {
		return
	}
	res.flag(ReasonPricePerM2, penaltyPricePerM2)

	corrected := ppm2 * 1000
	switch {
	case ppm2 < 10 && p.Price < 1000:
		res.suggest("price", p.Price, p.Price*1000, v.printf.Sprintf(
			"price of %.0f with %.0f m2 looks like a thousands shorthand; %.0f would give %.0f per m2",
			p.Price, p.AreaM2, p.Price*1000, corrected))
	case ppm2 < v.rules.PricePerM2.Min:
		res.suggest("price", p.Price, p.Price*1000, v.printf.Sprintf(
			"price per m2 of %.0f is below the %.0f floor; a missing x1000 factor would give %.0f per m2",
			ppm2, v.rules.PricePerM2.Min, corrected))
	}
}

func (v *Validator) checkArea(p *model.Property, res *Result) {
	if p.AreaM2 <= 0 {
		return
	}
	bounds, ok := v.rules.Area[p.PropertyType]
	if !ok {
		return
	}
	switch {
	case p.AreaM2 < bounds.Min:
		res.flag(ReasonAreaTooSmall, penaltyArea)
	case p.AreaM2 > bounds.Max:
		res.flag(ReasonAreaTooLarge, penaltyArea)
	}
}

func (v *Validator) checkBedroomDensity(p *model.Property, res *Result) {
	if p.Bedrooms == nil || *p.Bedrooms <= 0 || p.AreaM2 <= 0 {
		return
	}
	perBedroom := p.AreaM2 / float64(*p.Bedrooms)
	if v.rules.M2PerBedroom.Contains(perBedroom) {
		return
	}
	res.flag(ReasonBedroomMismatch, penaltyBedrooms)
	res.suggest("bedrooms", float64(*p.Bedrooms), math.Round(p.AreaM2/30), v.printf.Sprintf(
		"%.0f m2 per bedroom is implausible for %.0f m2", perBedroom, p.AreaM2))
}

func (v *Validator) checkYearBuilt(p *model.Property, res *Result) {
	if p.YearBuilt == nil {
		return
	}
	year := *p.YearBuilt
	if year >= v.rules.MinYearBuilt && year <= v.now().Year()+2 {
		return
	}
	res.flag(ReasonYearInvalid, penaltyYear)
}

// checkZoneDeviation compares the record's unit price against the zone
// distribution. It needs a known zone, a minimum sample, and a non-zero
// spread; a store failure skips the check rather than failing validation.
func (v *Validator) checkZoneDeviation(ctx context.Context, p *model.Property, res *Result) {
	if p.ZoneID == "" || p.AreaM2 <= 0 {
		return
	}
	comparables, err := v.store.ComparablesByZone(ctx, p.ZoneID)
	if err != nil {
		zap.L().Warn("outlier: zone comparables unavailable, skipping deviation check",
			zap.String("zone_id", p.ZoneID), zap.Error(err))
		return
	}

	values := make([]float64, 0, len(comparables))
	for _, c := range comparables {
		if ppm2 := c.PricePerM2(); ppm2 > 0 {
			values = append(values, ppm2)
		}
	}
	if len(values) < v.rules.Samples.Low {
		return
	}

	mean, stdDev := meanStdDev(values)
	if stdDev == 0 {
		return
	}
	z := math.Abs(p.Price/p.AreaM2-mean) / stdDev
	if z <= v.rules.ZScoreLimit {
		return
	}

	res.flag(ReasonPricePerM2, penaltyZone)
	res.suggest("price", p.Price, math.Round(mean*p.AreaM2), v.printf.Sprintf(
		"price per m2 deviates %.1f standard deviations from the zone mean of %.0f (%d comparables)",
		z, mean, len(values)))
}

func meanStdDev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// flag accumulates a penalty and records the reason tag at most once. The
// zone deviation check reuses the bounds tag, so its penalty still counts
// even when the tag is already present.
func (r *Result) flag(reason string, penalty float64) {
	r.Penalty += penalty
	for _, existing := range r.Reasons {
		if existing == reason {
			return
		}
	}
	r.Reasons = append(r.Reasons, reason)
}

func (r *Result) suggest(field string, current, suggested float64, reason string) {
	r.Suggestions = append(r.Suggestions, Suggestion{
		Field:          field,
		CurrentValue:   current,
		SuggestedValue: suggested,
		Reason:         reason,
	})
}
