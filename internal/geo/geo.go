// Package geo implements the small amount of spherical geometry the pipeline
// needs: great-circle distance for duplicate matching and degree-approximated
// bounding boxes for candidate queries.
package geo

import "math"

const earthRadiusMeters = 6371000

// kmPerDegree is the approximate length of one degree of latitude.
const kmPerDegree = 111.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point is the 0,0 needs-geocoding sentinel.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Box is a latitude/longitude bounding box.
type Box struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*sinLng*sinLng

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoxAround returns a bounding box extending radiusKm in each direction from
// the center, correcting the longitude delta by cos(latitude).
func BoxAround(center Point, radiusKm float64) Box {
	latDelta := radiusKm / kmPerDegree
	lngDelta := radiusKm / (kmPerDegree * math.Cos(center.Lat*math.Pi/180))

	return Box{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLng: center.Lng - lngDelta,
		MaxLng: center.Lng + lngDelta,
	}
}
