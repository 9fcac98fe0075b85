// Package adapter defines the source adapter contract and its registry.
// Adapters front external listing sources behind a uniform interface so new
// integrations plug in without touching the pipeline.
package adapter

import (
	"context"
	"time"

	"github.com/pricewaze/ingest-cli/internal/model"
)

// MarketStats is a zone-level market summary produced by one source.
type MarketStats struct {
	ZoneID          string    `json:"zone_id"`
	AvgPriceM2      float64   `json:"avg_price_m2"`
	MedianPriceM2   float64   `json:"median_price_m2"`
	TotalListings   int       `json:"total_listings"`
	PriceTrend30d   float64   `json:"price_trend_30d"`
	DaysOnMarketAvg float64   `json:"days_on_market_avg"`
	Source          string    `json:"source"`
	Confidence      float64   `json:"confidence"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SaleRecord is a closed transaction reported by sources that track sales.
type SaleRecord struct {
	PropertyID string    `json:"property_id,omitempty"`
	Address    string    `json:"address"`
	Price      float64   `json:"price"`
	AreaM2     float64   `json:"area_m2"`
	SaleDate   time.Time `json:"sale_date"`
	Source     string    `json:"source"`
}

// PriceHistory is one period of a zone's price series.
type PriceHistory struct {
	Date          time.Time `json:"date"`
	AvgPriceM2    float64   `json:"avg_price_m2"`
	MedianPriceM2 float64   `json:"median_price_m2"`
	SampleSize    int       `json:"sample_size"`
}

// Adapter is the contract every market data source implements. GetListings
// returns raw records for the normalizer; GetMarketStats may return nil when
// the source has no data for the zone.
type Adapter interface {
	Name() string
	Source() model.Source
	Weight() float64
	Enabled() bool

	GetListings(ctx context.Context, zone model.Zone) ([]model.RawProperty, error)
	GetMarketStats(ctx context.Context, zone model.Zone) (*MarketStats, error)
}

// SalesProvider is implemented by sources that publish closed sales.
type SalesProvider interface {
	GetRecentSales(ctx context.Context, zone model.Zone) ([]SaleRecord, error)
}

// HistoryProvider is implemented by sources that publish price series.
type HistoryProvider interface {
	GetHistoricalPrices(ctx context.Context, zone model.Zone, months int) ([]PriceHistory, error)
}
