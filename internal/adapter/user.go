package adapter

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pricewaze/ingest-cli/internal/model"
	"github.com/pricewaze/ingest-cli/internal/store"
)

// UserAdapter exposes crowdsourced listings already in the store as a market
// data source. Always enabled; the store is the one source that is local.
type UserAdapter struct {
	store store.Store
}

func NewUserAdapter(st store.Store) *UserAdapter {
	return &UserAdapter{store: st}
}

func (a *UserAdapter) Name() string         { return "user" }
func (a *UserAdapter) Source() model.Source { return model.SourceUser }
func (a *UserAdapter) Weight() float64      { return model.WeightFor(model.SourceUser) }
func (a *UserAdapter) Enabled() bool        { return true }

// GetListings re-exports the zone's active listings in raw form, letting
// user data flow through the same pipeline as external sources.
func (a *UserAdapter) GetListings(ctx context.Context, zone model.Zone) ([]model.RawProperty, error) {
	props, err := a.zoneListings(ctx, zone)
	if err != nil {
		return nil, err
	}

	out := make([]model.RawProperty, 0, len(props))
	for i := range props {
		p := &props[i]
		raw := model.RawProperty{
			SourceID:     p.ID,
			Title:        p.Title,
			PropertyType: string(p.PropertyType),
			Price:        p.Price,
			Area:         p.AreaM2,
			AreaUnit:     "m2",
			Address:      p.Address,
			Images:       p.Images,
			Features:     p.Features,
		}
		if p.Description != nil {
			raw.Description = *p.Description
		}
		if p.Bedrooms != nil {
			raw.Bedrooms = *p.Bedrooms
		}
		if p.Bathrooms != nil {
			raw.Bathrooms = *p.Bathrooms
		}
		if p.HasCoordinates() {
			lat, lng := p.Latitude, p.Longitude
			raw.Latitude, raw.Longitude = &lat, &lng
		}
		out = append(out, raw)
	}
	return out, nil
}

// GetMarketStats summarizes the zone's active listings. Confidence grows
// with sample size, saturating at the source weight once ten listings exist.
func (a *UserAdapter) GetMarketStats(ctx context.Context, zone model.Zone) (*MarketStats, error) {
	props, err := a.zoneListings(ctx, zone)
	if err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return nil, nil
	}

	values := make([]float64, 0, len(props))
	for i := range props {
		if ppm2 := props[i].PricePerM2(); ppm2 > 0 {
			values = append(values, ppm2)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	sort.Float64s(values)

	var sum float64
	for _, v := range values {
		sum += v
	}

	return &MarketStats{
		ZoneID:        zone.ID,
		AvgPriceM2:    math.Round(sum / float64(len(values))),
		MedianPriceM2: math.Round(values[len(values)/2]),
		TotalListings: len(props),
		Source:        a.Name(),
		Confidence:    a.Weight() * math.Min(float64(len(props))/10, 1),
		UpdatedAt:     time.Now().UTC(),
	}, nil
}

func (a *UserAdapter) zoneListings(ctx context.Context, zone model.Zone) ([]model.Property, error) {
	props, err := a.store.ListingsByZone(ctx, zone.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "adapter: load zone %s listings", zone.ID)
	}
	return props, nil
}
