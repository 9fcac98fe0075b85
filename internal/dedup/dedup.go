// Package dedup finds likely duplicate listings using geographic proximity
// plus attribute similarity. Matching is evidence-based: each signal adds a
// weighted contribution and the total confidence decides the match class.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pricewaze/ingest-cli/internal/geo"
	"github.com/pricewaze/ingest-cli/internal/model"
	"github.com/pricewaze/ingest-cli/internal/store"
)

// MatchType classifies how strong a duplicate match is.
type MatchType string

const (
	// MatchExact is near-certain: same location and closely matching fields.
	MatchExact MatchType = "exact"
	// MatchLocation is location-anchored but with weaker field agreement.
	MatchLocation MatchType = "location"
	// MatchSimilar agrees on fields without location evidence.
	MatchSimilar MatchType = "similar"
)

// Evidence labels, one per contributing signal.
const (
	EvidenceExactLocation  = "exact_location"
	EvidenceNearbyLocation = "nearby_location"
	EvidenceExactPrice     = "exact_price"
	EvidenceSimilarPrice   = "similar_price"
	EvidenceExactArea      = "exact_area"
	EvidenceSimilarArea    = "similar_area"
	EvidenceSameType       = "property_type"
	EvidenceExactTitle     = "exact_title"
	EvidenceSimilarTitle   = "similar_title"
	EvidenceExactAddress   = "exact_address"
)

// Confidence contributions and thresholds.
const (
	minConfidence   = 40
	exactThreshold  = 80
	maxConfidence   = 100
	candidateLimit  = 50
	candidateDegree = 0.001 // ~100m bounding box half-width
)

// Match is one candidate duplicate with its supporting evidence.
type Match struct {
	PropertyID string    `json:"property_id"`
	Confidence int       `json:"confidence"`
	MatchType  MatchType `json:"match_type"`
	Evidence   []string  `json:"evidence"`
}

// Deduplicator queries the store for nearby candidates and scores them
// against an incoming record.
type Deduplicator struct {
	store store.Store
}

func New(st store.Store) *Deduplicator {
	return &Deduplicator{store: st}
}

// FindDuplicates returns candidate matches for a record, strongest first.
// Records without coordinates cannot be deduplicated and return no matches.
// A store failure degrades to no matches rather than blocking ingestion;
// a missed duplicate is recoverable, a dropped listing is not.
func (d *Deduplicator) FindDuplicates(ctx context.Context, p *model.Property) []Match {
	if !p.HasCoordinates() {
		return nil
	}

	box := geo.Box{
		MinLat: p.Latitude - candidateDegree,
		MaxLat: p.Latitude + candidateDegree,
		MinLng: p.Longitude - candidateDegree,
		MaxLng: p.Longitude + candidateDegree,
	}
	candidates, err := d.store.QueryBoundingBox(ctx, store.BBoxQuery{
		Box:    box,
		Status: model.StatusActive,
		Limit:  candidateLimit,
	})
	if err != nil {
		zap.L().Warn("dedup: candidate query failed, skipping duplicate check", zap.Error(err))
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if c.ID == p.ID {
			continue
		}
		if m := Score(p, c); m != nil {
			matches = append(matches, *m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches
}

// Score compares two records and returns a match when the accumulated
// evidence clears the minimum confidence, nil otherwise. Scoring is
// symmetric in its inputs.
func Score(a, b *model.Property) *Match {
	confidence := 0
	var evidence []string
	locationEvidence := false

	if a.HasCoordinates() && b.HasCoordinates() {
		dist := geo.HaversineMeters(
			geo.Point{Lat: a.Latitude, Lng: a.Longitude},
			geo.Point{Lat: b.Latitude, Lng: b.Longitude},
		)
		switch {
		case dist <= 10:
			confidence += 40
			evidence = append(evidence, EvidenceExactLocation)
			locationEvidence = true
		case dist <= 100:
			confidence += 25
			evidence = append(evidence, EvidenceNearbyLocation)
			locationEvidence = true
		}
	}

	switch sim := similarity(a.Price, b.Price); {
	case sim >= 0.95:
		confidence += 20
		evidence = append(evidence, EvidenceExactPrice)
	case sim >= 0.90:
		confidence += 10
		evidence = append(evidence, EvidenceSimilarPrice)
	}

	if a.AreaM2 > 0 && b.AreaM2 > 0 {
		switch sim := similarity(a.AreaM2, b.AreaM2); {
		case sim >= 0.95:
			confidence += 20
			evidence = append(evidence, EvidenceExactArea)
		case sim >= 0.90:
			confidence += 10
			evidence = append(evidence, EvidenceSimilarArea)
		}
	}

	if a.PropertyType == b.PropertyType {
		confidence += 10
		evidence = append(evidence, EvidenceSameType)
	}

	ta, tb := normalizeTitle(a.Title), normalizeTitle(b.Title)
	if ta != "" && tb != "" {
		switch {
		case ta == tb:
			confidence += 15
			evidence = append(evidence, EvidenceExactTitle)
		case strings.Contains(ta, tb) || strings.Contains(tb, ta):
			confidence += 8
			evidence = append(evidence, EvidenceSimilarTitle)
		}
	}

	aa, ab := normalizeAddress(a.Address), normalizeAddress(b.Address)
	if aa != "" && aa == ab {
		confidence += 15
		evidence = append(evidence, EvidenceExactAddress)
	}

	if confidence < minConfidence {
		return nil
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	matchType := MatchSimilar
	switch {
	case confidence >= exactThreshold:
		matchType = MatchExact
	case locationEvidence:
		matchType = MatchLocation
	}

	return &Match{
		PropertyID: b.ID,
		Confidence: confidence,
		MatchType:  matchType,
		Evidence:   evidence,
	}
}

// similarity is 1 for equal values, trending to 0 as they diverge.
func similarity(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	max := a
	if b > max {
		max = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return 1 - diff/max
}

// normalizeTitle lowercases and strips everything but letters and digits so
// punctuation and spacing differences do not defeat title comparison.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Addresses compare under the same normalization as titles so punctuation
// and spacing differences do not defeat the match.
func normalizeAddress(addr string) string {
	return normalizeTitle(addr)
}

// SourceTag builds the tracking tag appended to descriptions of ingested
// listings, e.g. "source:scraper:abc-123". sourceName scopes the id space
// per adapter, so same-kind adapters with overlapping ids never collide.
func SourceTag(sourceName, sourceID string) string {
	return fmt.Sprintf("source:%s:%s", sourceName, sourceID)
}

// FindBySourceID locates a previously ingested listing by its source tag.
// Returns "" when the source never submitted this ID before.
func (d *Deduplicator) FindBySourceID(ctx context.Context, sourceName, sourceID string) (string, error) {
	if sourceID == "" {
		return "", nil
	}
	return d.store.FindByDescriptionTag(ctx, SourceTag(sourceName, sourceID))
}

// AddSourceTracking appends the source tag to a description unless it is
// already present, keeping re-ingestion idempotent.
func AddSourceTracking(description, sourceName, sourceID string) string {
	if sourceID == "" {
		return description
	}
	tag := SourceTag(sourceName, sourceID)
	if strings.Contains(description, tag) {
		return description
	}
	if description == "" {
		return tag
	}
	return description + "\n\n---\n" + tag
}
