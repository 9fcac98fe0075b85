// Package normalize turns untrusted raw listing input into canonical
// records. It is a pure transform: hard failures reject the record, soft
// issues are attached as warnings, and semantic plausibility is left to the
// outlier validator.
package normalize

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pricewaze/ingest-cli/internal/geo"
	"github.com/pricewaze/ingest-cli/internal/model"
)

// Hard validation errors. Only these cross the normalization boundary as
// rejections; everything else is carried as a warning on an accepted record.
var (
	ErrMissingTitle    = eris.New("normalize: title is required")
	ErrInvalidPrice    = eris.New("normalize: valid positive price is required")
	ErrMissingLocation = eris.New("normalize: either coordinates or address is required")
)

// Soft warnings attached to accepted records.
const (
	WarnAreaMissing        = "area is missing or invalid, defaulting to 0"
	WarnAddressFromCoords  = "address missing, using coordinates"
	WarnGeocodingRequired  = "coordinates missing, geocoding required"
	WarnUnknownPropertyType = "property type unrecognized, defaulting to apartment"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 5000
	maxImages         = 20
)

// propertyTypeMap resolves bilingual (Spanish/English) synonyms to the closed
// enumeration.
var propertyTypeMap = map[string]model.PropertyType{
	// Spanish
	"apartamento": model.TypeApartment, "apartamentos": model.TypeApartment,
	"apto": model.TypeApartment, "piso": model.TypeApartment,
	"casa": model.TypeHouse, "casas": model.TypeHouse,
	"villa": model.TypeHouse, "chalet": model.TypeHouse,
	"terreno": model.TypeLand, "solar": model.TypeLand,
	"lote": model.TypeLand, "parcela": model.TypeLand, "finca": model.TypeLand,
	"comercial": model.TypeCommercial, "local": model.TypeCommercial,
	"tienda": model.TypeCommercial, "negocio": model.TypeCommercial,
	"oficina": model.TypeOffice, "oficinas": model.TypeOffice,
	// English
	"apartment": model.TypeApartment, "condo": model.TypeApartment,
	"condominium": model.TypeApartment, "flat": model.TypeApartment,
	"house": model.TypeHouse, "home": model.TypeHouse,
	"single family": model.TypeHouse, "townhouse": model.TypeHouse,
	"land": model.TypeLand, "lot": model.TypeLand, "plot": model.TypeLand,
	"commercial": model.TypeCommercial, "retail": model.TypeCommercial,
	"store": model.TypeCommercial,
	"office": model.TypeOffice,
}

// areaFactors convert area units to square meters.
var areaFactors = map[string]float64{
	"m2":    1,
	"sqm":   1,
	"sqft":  0.092903,
	"sf":    0.092903,
	"varas": 0.6987, // Dominican varas cuadradas
}

// Result is an accepted record plus any soft warnings.
type Result struct {
	Property model.Property `json:"property"`
	Warnings []string       `json:"warnings"`
}

// PropertyType maps a raw type string to the canonical enumeration.
// The second return reports whether the input actually resolved; callers
// surface a warning when it did not.
func PropertyType(raw string) (model.PropertyType, bool) {
	if raw == "" {
		return model.TypeApartment, true
	}
	if t, ok := propertyTypeMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t, true
	}
	return model.TypeApartment, false
}

// Area converts an area value to square meters, rounded to 2 decimals.
// Unknown units are treated as already-m2.
func Area(area float64, unit string) float64 {
	if area <= 0 {
		return 0
	}
	factor, ok := areaFactors[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		factor = 1
	}
	return math.Round(area*factor*100) / 100
}

// currencyClutter strips currency symbols, market prefixes, and whitespace
// before numeric parsing.
var currencyClutter = strings.NewReplacer(
	"$", "", "€", "", "£", "",
	"RD", "", "rd", "", "US", "", "us", "",
	" ", "", "\t", "", " ", "",
)

// Number parses a loosely-typed numeric value. It tolerates thousands
// separators, European decimal commas, and currency prefixes; anything
// ambiguous degrades to nil rather than failing.
func Number(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return finite(float64(v))
	case int64:
		return finite(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return finite(f)
	case string:
		return parseNumericString(v)
	default:
		return nil
	}
}

func parseNumericString(s string) *float64 {
	s = currencyClutter.Replace(strings.TrimSpace(s))
	if s == "" {
		return nil
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")

	switch {
	case hasDot && hasComma:
		// The separator appearing last is the decimal mark; the other is a
		// thousands separator (1.234.567,89 and 1,234,567.89 both work).
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		// A single trailing group of 1-2 digits reads as a European decimal
		// comma; anything else reads as thousands grouping.
		idx := strings.LastIndex(s, ",")
		if strings.Count(s, ",") == 1 && len(s)-idx-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		// Multiple dots are thousands separators (1.234.567).
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return finite(f)
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Count parses a loosely-typed non-negative integer count (bedrooms,
// bathrooms, parking). Negative or unparseable values degrade to nil.
func Count(value any) *int {
	f := Number(value)
	if f == nil || *f < 0 {
		return nil
	}
	n := int(math.Round(*f))
	return &n
}

// Title trims, collapses whitespace, and caps the title length.
func Title(title string) string {
	t := strings.Join(strings.Fields(title), " ")
	if len(t) > maxTitleLen {
		t = t[:maxTitleLen]
	}
	return t
}

// Description cleans the free-text description, or returns nil when empty.
func Description(description string) *string {
	d := strings.Join(strings.Fields(description), " ")
	if d == "" {
		return nil
	}
	if len(d) > maxDescriptionLen {
		d = d[:maxDescriptionLen]
	}
	return &d
}

// Coordinates validates a lat/lng pair. Out-of-range values and the 0,0
// sentinel return nil; callers fall back to the text address and flag
// geocoding as required.
func Coordinates(lat, lng *float64) *geo.Point {
	if lat == nil || lng == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		return nil
	}
	if *lat == 0 && *lng == 0 {
		return nil
	}
	return &geo.Point{
		Lat: math.Round(*lat*1e6) / 1e6,
		Lng: math.Round(*lng*1e6) / 1e6,
	}
}

// Images filters to valid absolute http(s) URLs, drops placeholder and
// example.com entries, and truncates to the image cap.
func Images(images []string) []string {
	out := make([]string, 0, len(images))
	for _, raw := range images {
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "placeholder") || strings.Contains(raw, "example.com") {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		out = append(out, raw)
		if len(out) == maxImages {
			break
		}
	}
	return out
}

// Normalize transforms one raw listing into a canonical record. A missing
// title, an unparseable price, or a missing location is a hard rejection;
// everything else is accepted with warnings.
func Normalize(raw model.RawProperty) (*Result, error) {
	var warnings []string

	title := Title(raw.Title)
	if title == "" {
		return nil, ErrMissingTitle
	}

	price := Number(raw.Price)
	if price == nil || *price <= 0 {
		return nil, ErrInvalidPrice
	}

	coords := Coordinates(raw.Latitude, raw.Longitude)
	if coords == nil && strings.TrimSpace(raw.Address) == "" && raw.City == "" && raw.Zone == "" {
		return nil, ErrMissingLocation
	}

	area := 0.0
	if a := Number(raw.Area); a != nil {
		area = Area(*a, raw.AreaUnit)
	}
	if area == 0 {
		warnings = append(warnings, WarnAreaMissing)
	}

	propType, resolved := PropertyType(raw.PropertyType)
	if !resolved {
		warnings = append(warnings, WarnUnknownPropertyType)
	}

	// Build address from parts when not provided directly.
	address := strings.TrimSpace(raw.Address)
	if address == "" && (raw.City != "" || raw.Zone != "") {
		parts := make([]string, 0, 2)
		if raw.Zone != "" {
			parts = append(parts, raw.Zone)
		}
		if raw.City != "" {
			parts = append(parts, raw.City)
		}
		address = strings.Join(parts, ", ")
	}
	if address == "" && coords != nil {
		address = strconv.FormatFloat(coords.Lat, 'f', 6, 64) + ", " +
			strconv.FormatFloat(coords.Lng, 'f', 6, 64)
		warnings = append(warnings, WarnAddressFromCoords)
	}

	point := geo.Point{}
	if coords != nil {
		point = *coords
	} else {
		warnings = append(warnings, WarnGeocodingRequired)
	}

	p := model.Property{
		Title:        title,
		Description:  Description(raw.Description),
		PropertyType: propType,
		Price:        *price,
		AreaM2:       area,
		Bedrooms:     Count(raw.Bedrooms),
		Bathrooms:    Count(raw.Bathrooms),
		Parking:      Count(raw.ParkingSpaces),
		YearBuilt:    Count(raw.YearBuilt),
		Address:      address,
		Latitude:     point.Lat,
		Longitude:    point.Lng,
		Images:       Images(raw.Images),
		Features:     Features(raw.Description, raw.Features),
		Status:       model.StatusActive,
	}

	return &Result{Property: p, Warnings: warnings}, nil
}
