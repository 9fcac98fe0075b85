// Package trust computes the trust score attached to every ingested listing.
// The score combines the source's base weight, record completeness, age
// decay, a verification bonus, and the outlier penalty, clamped to [0, 1].
package trust

import (
	"math"
	"time"

	"github.com/pricewaze/ingest-cli/internal/model"
)

const (
	// completenessFields is the number of fields contributing to the
	// completeness ratio.
	completenessFields = 10

	// recencyHalfLifeDays halves the recency factor every ~6 months.
	recencyHalfLifeDays = 180

	imageBonus    = 0.15
	documentBonus = 0.10
)

// Score computes the final trust score for a record. penalty is the outlier
// validator's accumulated fraction; hasDocuments reports whether supporting
// documents were verified out of band; now anchors the recency decay.
func Score(p *model.Property, source model.Source, penalty float64, hasDocuments bool, now time.Time) float64 {
	score := model.WeightFor(source) * Completeness(p) * Recency(p.CreatedAt, now)
	if len(p.Images) > 0 {
		score += imageBonus
	}
	if hasDocuments {
		score += documentBonus
	}
	score -= penalty * score

	return math.Max(0, math.Min(1, score))
}

// Completeness is the fraction of informative fields the record fills.
// A field counts when it carries a usable value, not merely a zero value.
func Completeness(p *model.Property) float64 {
	filled := 0
	checks := []bool{
		p.Title != "",
		p.Description != nil && *p.Description != "",
		p.Price > 0,
		p.AreaM2 > 0,
		p.Bedrooms != nil,
		p.Bathrooms != nil,
		p.Address != "",
		p.HasCoordinates(),
		len(p.Images) > 0,
		len(p.Features) > 0,
	}
	for _, ok := range checks {
		if ok {
			filled++
		}
	}
	return float64(filled) / completenessFields
}

// Recency decays exponentially with listing age. A zero CreatedAt means the
// record is being created now and gets full recency.
func Recency(createdAt time.Time, now time.Time) float64 {
	if createdAt.IsZero() || !createdAt.Before(now) {
		return 1
	}
	days := now.Sub(createdAt).Hours() / 24
	return math.Pow(0.5, days/recencyHalfLifeDays)
}
