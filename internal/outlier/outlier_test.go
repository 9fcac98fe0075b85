package outlier

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewaze/ingest-cli/internal/config"
	"github.com/pricewaze/ingest-cli/internal/model"
	"github.com/pricewaze/ingest-cli/internal/store"
)

type stubStore struct {
	store.Store
	comparables []model.Comparable
	err         error
}

func (s *stubStore) ComparablesByZone(_ context.Context, _ string) ([]model.Comparable, error) {
	return s.comparables, s.err
}

func rules(t *testing.T) *config.Rules {
	t.Helper()
	r, err := config.LoadRules()
	require.NoError(t, err)
	return r
}

func intp(v int) *int { return &v }

func plausible() model.Property {
	return model.Property{
		Title: "Apartamento en Piantini", PropertyType: model.TypeApartment,
		Price: 4500000, AreaM2: 120, Bedrooms: intp(3),
		Latitude: 18.47, Longitude: -69.94, Status: model.StatusActive,
	}
}

func TestValidatePlausibleListing(t *testing.T) {
	v := New(rules(t), &stubStore{})
	res := v.Validate(context.Background(), &model.Property{
		Title: "Apto", PropertyType: model.TypeApartment,
		Price: 4500000, AreaM2: 120, Bedrooms: intp(3), YearBuilt: intp(2015),
	}, "DO")

	assert.False(t, res.IsOutlier)
	assert.Empty(t, res.Reasons)
	assert.Zero(t, res.Penalty)
}

func TestValidateMarketPriceBounds(t *testing.T) {
	v := New(rules(t), &stubStore{})

	low := plausible()
	low.Price = 100000 // below DO minimum of 500K
	res := v.Validate(context.Background(), &low, "DO")
	assert.True(t, res.IsOutlier)
	assert.Contains(t, res.Reasons, ReasonPriceTooLow)

	high := plausible()
	high.Price = 200000000
	res = v.Validate(context.Background(), &high, "DO")
	assert.Contains(t, res.Reasons, ReasonPriceTooHigh)
}

func TestValidateThousandsShorthand(t *testing.T) {
	// 5000 for a 600 m2 villa is 8.3/m2; x1000 gives a plausible 8333/m2.
	p := plausible()
	p.PropertyType = model.TypeHouse
	p.Price = 5000
	p.AreaM2 = 600
	p.Bedrooms = nil

	res := New(rules(t), &stubStore{}).Validate(context.Background(), &p, "global")
	assert.True(t, res.IsOutlier)
	assert.Contains(t, res.Reasons, ReasonPricePerM2)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "price", res.Suggestions[0].Field)
	assert.Equal(t, 5000.0, res.Suggestions[0].CurrentValue)
	assert.Equal(t, 5000000.0, res.Suggestions[0].SuggestedValue)
}

func TestValidateBelowFloorSuggestsCorrection(t *testing.T) {
	// 33/m2 is under the 50/m2 floor; the x1000 correction is proposed even
	// though the corrected unit price is unusual.
	p := plausible()
	p.Price = 5000
	p.AreaM2 = 150
	p.Bedrooms = nil

	res := New(rules(t), &stubStore{}).Validate(context.Background(), &p, "global")
	assert.True(t, res.IsOutlier)
	assert.Contains(t, res.Reasons, ReasonPricePerM2)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "price", res.Suggestions[0].Field)
	assert.Equal(t, 5000000.0, res.Suggestions[0].SuggestedValue)
}

func TestValidateTinyPriceSuggestion(t *testing.T) {
	p := plausible()
	p.Price = 450 // ppm2 well under 10 with price under 1000
	p.AreaM2 = 90

	res := New(rules(t), &stubStore{}).Validate(context.Background(), &p, "global")
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, 450000.0, res.Suggestions[0].SuggestedValue)
}

func TestValidateAreaBounds(t *testing.T) {
	v := New(rules(t), &stubStore{})

	tiny := plausible()
	tiny.AreaM2 = 10 // below apartment minimum of 20
	tiny.Price = 37500 * 10
	tiny.Bedrooms = nil
	res := v.Validate(context.Background(), &tiny, "global")
	assert.Contains(t, res.Reasons, ReasonAreaTooSmall)

	huge := plausible()
	huge.PropertyType = model.TypeHouse
	huge.AreaM2 = 8000
	huge.Price = 1000 * 8000
	huge.Bedrooms = nil
	res = v.Validate(context.Background(), &huge, "global")
	assert.Contains(t, res.Reasons, ReasonAreaTooLarge)
}

func TestValidateBedroomDensity(t *testing.T) {
	p := plausible()
	p.AreaM2 = 120
	p.Price = 1500 * 120
	p.Bedrooms = intp(20) // 6 m2 per bedroom

	res := New(rules(t), &stubStore{}).Validate(context.Background(), &p, "global")
	assert.Contains(t, res.Reasons, ReasonBedroomMismatch)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "bedrooms", res.Suggestions[0].Field)
	assert.Equal(t, 4.0, res.Suggestions[0].SuggestedValue) // round(120/30)
}

func TestValidateYearBuilt(t *testing.T) {
	v := New(rules(t), &stubStore{})

	old := plausible()
	old.Price = 1500 * old.AreaM2
	old.YearBuilt = intp(1700)
	assert.Contains(t, v.Validate(context.Background(), &old, "global").Reasons, ReasonYearInvalid)

	future := plausible()
	future.Price = 1500 * future.AreaM2
	future.YearBuilt = intp(2100)
	assert.Contains(t, v.Validate(context.Background(), &future, "global").Reasons, ReasonYearInvalid)
}

func TestValidateZoneDeviation(t *testing.T) {
	// Zone mean 1500/m2 with tight spread; listing at 6000/m2.
	comparables := []model.Comparable{
		{Price: 150000, AreaM2: 100},
		{Price: 160000, AreaM2: 100},
		{Price: 140000, AreaM2: 100},
		{Price: 155000, AreaM2: 100},
	}
	p := plausible()
	p.ZoneID = "zone-1"
	p.Price = 600000
	p.AreaM2 = 100

	res := New(rules(t), &stubStore{comparables: comparables}).
		Validate(context.Background(), &p, "global")
	assert.Contains(t, res.Reasons, ReasonPricePerM2)
}

func TestValidateZoneDeviationSkipsSmallSample(t *testing.T) {
	p := plausible()
	p.ZoneID = "zone-1"
	p.Price = 600000
	p.AreaM2 = 100

	st := &stubStore{comparables: []model.Comparable{
		{Price: 150000, AreaM2: 100},
		{Price: 160000, AreaM2: 100},
	}}
	res := New(rules(t), st).Validate(context.Background(), &p, "global")
	assert.NotContains(t, res.Reasons, ReasonPricePerM2)
}

func TestValidateZoneDeviationDegradesOnStoreError(t *testing.T) {
	p := plausible()
	p.ZoneID = "zone-1"
	p.Price = 1500 * p.AreaM2

	res := New(rules(t), &stubStore{err: eris.New("timeout")}).
		Validate(context.Background(), &p, "global")
	assert.False(t, res.IsOutlier)
}

func TestPenaltyCap(t *testing.T) {
	// Trip everything at once: absurd price, area, bedrooms, year.
	p := model.Property{
		Title: "???", PropertyType: model.TypeApartment,
		Price: 500, AreaM2: 5000, Bedrooms: intp(1000), YearBuilt: intp(1500),
	}
	res := New(rules(t), &stubStore{}).Validate(context.Background(), &p, "DO")
	assert.True(t, res.IsOutlier)
	assert.LessOrEqual(t, res.Penalty, 0.9)
	assert.GreaterOrEqual(t, len(res.Reasons), 4)
}
