package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewaze/ingest-cli/internal/model"
)

func f64(v float64) *float64 { return &v }

func TestNumber(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  *float64
	}{
		{"plain float", 150000.0, f64(150000)},
		{"int", 42, f64(42)},
		{"thousands comma", "150,000", f64(150000)},
		{"currency prefix", "RD$ 1,500,000", f64(1500000)},
		{"dollar sign", "$250,000.50", f64(250000.50)},
		{"european format", "1.234.567,89", f64(1234567.89)},
		{"decimal comma", "150,5", f64(150.5)},
		{"multiple dots", "1.234.567", f64(1234567)},
		{"euro symbol", "€99.000,00", f64(99000)},
		{"nil", nil, nil},
		{"garbage", "ask for price", nil},
		{"empty string", "", nil},
		{"lone symbol", "$", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Number(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestCount(t *testing.T) {
	assert.Equal(t, 3, *Count("3"))
	assert.Equal(t, 3, *Count(2.5)) // rounds half up
	assert.Nil(t, Count(-1))
	assert.Nil(t, Count(nil))
	assert.Nil(t, Count("n/a"))
}

func TestPropertyType(t *testing.T) {
	tests := []struct {
		input    string
		want     model.PropertyType
		resolved bool
	}{
		{"casa", model.TypeHouse, true},
		{"Apartamento", model.TypeApartment, true},
		{"CONDO", model.TypeApartment, true},
		{"terreno", model.TypeLand, true},
		{"local", model.TypeCommercial, true},
		{"office", model.TypeOffice, true},
		{"", model.TypeApartment, true},
		{"castle", model.TypeApartment, false},
	}
	for _, tt := range tests {
		got, resolved := PropertyType(tt.input)
		assert.Equal(t, tt.want, got, tt.input)
		assert.Equal(t, tt.resolved, resolved, tt.input)
	}
}

func TestArea(t *testing.T) {
	assert.Equal(t, 120.0, Area(120, "m2"))
	assert.Equal(t, 92.9, Area(1000, "sqft"))
	assert.Equal(t, 69.87, Area(100, "varas"))
	assert.Equal(t, 120.0, Area(120, ""))       // defaults to m2
	assert.Equal(t, 120.0, Area(120, "bananas")) // unknown unit treated as m2
	assert.Equal(t, 0.0, Area(-5, "m2"))
}

func TestCoordinates(t *testing.T) {
	p := Coordinates(f64(18.4861234567), f64(-69.9312345678))
	require.NotNil(t, p)
	assert.Equal(t, 18.486123, p.Lat)
	assert.Equal(t, -69.931235, p.Lng)

	assert.Nil(t, Coordinates(f64(0), f64(0)), "0,0 sentinel is not a location")
	assert.Nil(t, Coordinates(f64(91), f64(0)))
	assert.Nil(t, Coordinates(f64(18.5), f64(-181)))
	assert.Nil(t, Coordinates(nil, f64(-69.9)))
}

func TestImages(t *testing.T) {
	got := Images([]string{
		"https://cdn.example.net/1.jpg",
		"http://img.host.com/2.png",
		"https://example.com/fake.jpg",
		"https://cdn.host.com/placeholder.png",
		"ftp://files.host.com/3.jpg",
		"not a url",
		"",
	})
	assert.Equal(t, []string{"https://cdn.example.net/1.jpg", "http://img.host.com/2.png"}, got)
}

func TestImagesCap(t *testing.T) {
	many := make([]string, 30)
	for i := range many {
		many[i] = "https://cdn.host.com/img.jpg"
	}
	assert.Len(t, Images(many), 20)
}

func TestNormalizeValid(t *testing.T) {
	res, err := Normalize(model.RawProperty{
		Title:        "Casa en Naco",
		Price:        "150,000",
		Area:         120,
		PropertyType: "casa",
		Latitude:     f64(18.48),
		Longitude:    f64(-69.93),
	})
	require.NoError(t, err)

	p := res.Property
	assert.Equal(t, "Casa en Naco", p.Title)
	assert.Equal(t, model.TypeHouse, p.PropertyType)
	assert.Equal(t, 150000.0, p.Price)
	assert.Equal(t, 120.0, p.AreaM2)
	assert.Equal(t, 18.48, p.Latitude)
	assert.Equal(t, -69.93, p.Longitude)
	assert.Equal(t, model.StatusActive, p.Status)
	assert.NotEmpty(t, p.Address, "address synthesized from coordinates")
	assert.Contains(t, res.Warnings, WarnAddressFromCoords)
}

func TestNormalizeHardRejections(t *testing.T) {
	base := model.RawProperty{
		Title:     "Apto amueblado",
		Price:     200000,
		Latitude:  f64(18.5),
		Longitude: f64(-69.9),
	}

	t.Run("missing title", func(t *testing.T) {
		raw := base
		raw.Title = "   "
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, ErrMissingTitle)
	})
	t.Run("zero price", func(t *testing.T) {
		raw := base
		raw.Price = 0
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})
	t.Run("unparseable price", func(t *testing.T) {
		raw := base
		raw.Price = "call us"
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})
	t.Run("no location at all", func(t *testing.T) {
		raw := base
		raw.Latitude, raw.Longitude = nil, nil
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, ErrMissingLocation)
	})
	t.Run("address alone suffices", func(t *testing.T) {
		raw := base
		raw.Latitude, raw.Longitude = nil, nil
		raw.Address = "Av. Winston Churchill 25"
		res, err := Normalize(raw)
		require.NoError(t, err)
		assert.Contains(t, res.Warnings, WarnGeocodingRequired)
		assert.False(t, res.Property.HasCoordinates())
	})
}

func TestNormalizeWarnings(t *testing.T) {
	res, err := Normalize(model.RawProperty{
		Title:        "Solar en Bávaro",
		Price:        "95000",
		PropertyType: "weird shed",
		Zone:         "Bávaro",
		City:         "Punta Cana",
	})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, WarnAreaMissing)
	assert.Contains(t, res.Warnings, WarnUnknownPropertyType)
	assert.Contains(t, res.Warnings, WarnGeocodingRequired)
	assert.Equal(t, model.TypeApartment, res.Property.PropertyType)
	assert.Equal(t, "Bávaro, Punta Cana", res.Property.Address)
}

func TestTitleAndDescriptionLimits(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, Title(string(long)), 200)

	assert.Nil(t, Description("   "))
	d := Description("  two   spaces\tcollapsed ")
	require.NotNil(t, d)
	assert.Equal(t, "two spaces collapsed", *d)
}
