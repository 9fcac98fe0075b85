package fallback

import (
	"context"

	"github.com/rotisserie/eris"
)

// DataQuality grades how well a zone is covered by active listings.
type DataQuality string

const (
	QualityExcellent DataQuality = "excellent"
	QualityGood      DataQuality = "good"
	QualityFair      DataQuality = "fair"
	QualityPoor      DataQuality = "poor"
	QualityNoData    DataQuality = "no_data"
)

// ZoneHealth reports zone coverage with an operator-facing recommendation.
type ZoneHealth struct {
	ZoneID         string      `json:"zone_id"`
	PropertyCount  int         `json:"property_count"`
	DataQuality    DataQuality `json:"data_quality"`
	Recommendation string      `json:"recommendation"`
}

// Health grades a zone by its active listing count.
func (r *Resolver) Health(ctx context.Context, zoneID string) (*ZoneHealth, error) {
	count, err := r.store.CountByZone(ctx, zoneID)
	if err != nil {
		return nil, eris.Wrapf(err, "fallback: count listings in zone %s", zoneID)
	}

	h := &ZoneHealth{ZoneID: zoneID, PropertyCount: count}
	switch {
	case count >= 20:
		h.DataQuality = QualityExcellent
		h.Recommendation = "high confidence pricing available"
	case count >= 10:
		h.DataQuality = QualityGood
		h.Recommendation = "good pricing reference available"
	case count >= 5:
		h.DataQuality = QualityFair
		h.Recommendation = "consider adding more listings to improve accuracy"
	case count > 0:
		h.DataQuality = QualityPoor
		h.Recommendation = "limited data, pricing estimates have low confidence"
	default:
		h.DataQuality = QualityNoData
		h.Recommendation = "no listings in this zone, contribute data to enable pricing"
	}
	return h, nil
}
