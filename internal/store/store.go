// Package store persists listings and zones and serves the read queries the
// pipeline components depend on.
package store

import (
	"context"

	"github.com/pricewaze/ingest-cli/internal/geo"
	"github.com/pricewaze/ingest-cli/internal/model"
)

// BBoxQuery selects candidate listings inside a bounding box.
type BBoxQuery struct {
	Box    geo.Box      `json:"box"`
	Status model.Status `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline.
// All reads used by the dedup/outlier/fallback components are here; those
// consumers degrade to safe defaults when a call fails.
type Store interface {
	// Properties
	InsertProperty(ctx context.Context, p *model.Property) (string, error)
	GetProperty(ctx context.Context, id string) (*model.Property, error)
	UpdateProperty(ctx context.Context, p *model.Property) error
	QueryBoundingBox(ctx context.Context, q BBoxQuery) ([]model.Property, error)
	ListingsByZone(ctx context.Context, zoneID string) ([]model.Property, error)
	BulkInsertProperties(ctx context.Context, props []model.Property) (int64, error)

	// Comparables (price + area projections of active, measured listings)
	ComparablesByZone(ctx context.Context, zoneID string) ([]model.Comparable, error)
	ComparablesByZones(ctx context.Context, zoneIDs []string) ([]model.Comparable, error)
	ComparablesInBox(ctx context.Context, box geo.Box) ([]model.Comparable, error)

	// FindByDescriptionTag locates a listing whose description contains the
	// given source tag. Returns "" when no listing matches.
	FindByDescriptionTag(ctx context.Context, tag string) (string, error)

	// Counters for zone health and ingest status reporting.
	CountByZone(ctx context.Context, zoneID string) (int, error)
	CountByStatus(ctx context.Context, status model.Status) (int, error)
	SourceCounts(ctx context.Context) (map[string]int, error)

	// Zones
	GetZone(ctx context.Context, id string) (*model.Zone, error)
	ListZonesByCity(ctx context.Context, city string) ([]model.Zone, error)
	InsertZone(ctx context.Context, z model.Zone) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
