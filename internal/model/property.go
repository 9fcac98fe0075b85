// Package model holds the canonical domain types shared across the
// ingestion pipeline.
package model

import (
	"math"
	"time"
)

// Source identifies where a listing batch originated. Source kind determines
// the base trust weight before per-record adjustments.
type Source string

const (
	SourceOpenData Source = "opendata"
	SourceAPI      Source = "api"
	SourceScraper  Source = "scraper"
	SourceImport   Source = "import"
	SourceUser     Source = "user"
	SourceSeed     Source = "seed"
)

// SourceWeights maps source kinds to their base trust weight. Official open
// data ranks highest, synthetic seed data lowest.
var SourceWeights = map[Source]float64{
	SourceOpenData: 1.0,
	SourceAPI:      0.95,
	SourceScraper:  0.85,
	SourceImport:   0.8,
	SourceUser:     0.7,
	SourceSeed:     0.5,
}

// WeightFor returns the base trust weight for a source. Unknown sources get
// the seed weight, the most conservative in the table.
func WeightFor(s Source) float64 {
	if w, ok := SourceWeights[s]; ok {
		return w
	}
	return SourceWeights[SourceSeed]
}

// PropertyType is the closed property classification enumeration.
type PropertyType string

const (
	TypeApartment  PropertyType = "apartment"
	TypeHouse      PropertyType = "house"
	TypeLand       PropertyType = "land"
	TypeCommercial PropertyType = "commercial"
	TypeOffice     PropertyType = "office"
)

// Status is the listing lifecycle status.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
)

// RawProperty is the loosely-typed wire shape accepted from source adapters.
// Numeric fields arrive as numbers or formatted strings; everything except
// the fields the normalizer hard-requires is optional.
type RawProperty struct {
	SourceID      string   `json:"source_id,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	PropertyType  string   `json:"property_type,omitempty"`
	Price         any      `json:"price"`
	Currency      string   `json:"currency,omitempty"`
	Area          any      `json:"area,omitempty"`
	AreaUnit      string   `json:"area_unit,omitempty"`
	Bedrooms      any      `json:"bedrooms,omitempty"`
	Bathrooms     any      `json:"bathrooms,omitempty"`
	ParkingSpaces any      `json:"parking_spaces,omitempty"`
	YearBuilt     any      `json:"year_built,omitempty"`
	Address       string   `json:"address,omitempty"`
	Zone          string   `json:"zone,omitempty"`
	City          string   `json:"city,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Images        []string `json:"images,omitempty"`
	Features      []string `json:"features,omitempty"`
}

// Property is the canonical persisted listing record.
type Property struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  *string      `json:"description,omitempty"`
	PropertyType PropertyType `json:"property_type"`
	Price        float64      `json:"price"`
	AreaM2       float64      `json:"area_m2"`
	Bedrooms     *int         `json:"bedrooms,omitempty"`
	Bathrooms    *int         `json:"bathrooms,omitempty"`
	Parking      *int         `json:"parking_spaces,omitempty"`
	YearBuilt    *int         `json:"year_built,omitempty"`
	Address      string       `json:"address"`
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	Images       []string     `json:"images"`
	Features     []string     `json:"features"`
	Status       Status       `json:"status"`
	ZoneID       string       `json:"zone_id,omitempty"`
	TrustScore   float64      `json:"trust_score"`
	CreatedAt    time.Time    `json:"created_at"`
}

// HasCoordinates reports whether the record carries usable coordinates.
// The 0,0 pair is a sentinel for "not geocoded yet", never a real location.
func (p *Property) HasCoordinates() bool {
	return p.Latitude != 0 || p.Longitude != 0
}

// PricePerM2 returns the unit price, or 0 when area is unknown.
func (p *Property) PricePerM2() float64 {
	if p.AreaM2 <= 0 {
		return 0
	}
	return math.Round(p.Price / p.AreaM2)
}

// Zone is a named pricing zone within a city.
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Comparable is the minimal slice of a listing used for market statistics.
type Comparable struct {
	Price  float64 `json:"price"`
	AreaM2 float64 `json:"area_m2"`
}

// PricePerM2 returns the comparable's unit price, or 0 when area is unknown.
func (c Comparable) PricePerM2() float64 {
	if c.AreaM2 <= 0 {
		return 0
	}
	return c.Price / c.AreaM2
}
