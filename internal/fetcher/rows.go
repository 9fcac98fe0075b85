package fetcher

import (
	"strconv"
	"strings"

	"github.com/pricewaze/ingest-cli/internal/model"
)

// columnAliases maps recognized header names (Spanish and English) to
// canonical raw fields.
var columnAliases = map[string]string{
	"id": "source_id", "source_id": "source_id", "codigo": "source_id",
	"title": "title", "titulo": "title", "título": "title", "nombre": "title",
	"description": "description", "descripcion": "description", "descripción": "description",
	"type": "property_type", "property_type": "property_type", "tipo": "property_type",
	"price": "price", "precio": "price",
	"currency": "currency", "moneda": "currency",
	"area": "area", "area_m2": "area", "superficie": "area", "metros": "area",
	"area_unit": "area_unit", "unidad": "area_unit",
	"bedrooms": "bedrooms", "habitaciones": "bedrooms", "dormitorios": "bedrooms",
	"bathrooms": "bathrooms", "banos": "bathrooms", "baños": "bathrooms",
	"parking": "parking", "parqueos": "parking",
	"year": "year_built", "year_built": "year_built", "ano": "year_built", "año": "year_built",
	"address": "address", "direccion": "address", "dirección": "address",
	"zone": "zone", "zona": "zone", "sector": "zone", "barrio": "zone",
	"city": "city", "ciudad": "city",
	"lat": "latitude", "latitude": "latitude", "latitud": "latitude",
	"lng": "longitude", "lon": "longitude", "longitude": "longitude", "longitud": "longitude",
	"images": "images", "imagenes": "images", "imágenes": "images", "fotos": "images",
}

// MapRows converts tabular rows into raw listing records using the header to
// locate fields. Unrecognized columns are ignored; numeric parsing is left
// to the normalizer. Rows shorter than the header are padded with blanks.
func MapRows(header []string, rows [][]string) []model.RawProperty {
	fields := make(map[int]string, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.ReplaceAll(key, " ", "_")
		if canonical, ok := columnAliases[key]; ok {
			fields[i] = canonical
		}
	}

	out := make([]model.RawProperty, 0, len(rows))
	for _, row := range rows {
		var raw model.RawProperty
		for i, field := range fields {
			var value string
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			if value == "" {
				continue
			}
			assignField(&raw, field, value)
		}
		out = append(out, raw)
	}
	return out
}

func assignField(raw *model.RawProperty, field, value string) {
	switch field {
	case "source_id":
		raw.SourceID = value
	case "title":
		raw.Title = value
	case "description":
		raw.Description = value
	case "property_type":
		raw.PropertyType = value
	case "price":
		raw.Price = value
	case "currency":
		raw.Currency = value
	case "area":
		raw.Area = value
	case "area_unit":
		raw.AreaUnit = value
	case "bedrooms":
		raw.Bedrooms = value
	case "bathrooms":
		raw.Bathrooms = value
	case "parking":
		raw.ParkingSpaces = value
	case "year_built":
		raw.YearBuilt = value
	case "address":
		raw.Address = value
	case "zone":
		raw.Zone = value
	case "city":
		raw.City = value
	case "latitude":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			raw.Latitude = &f
		}
	case "longitude":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			raw.Longitude = &f
		}
	case "images":
		for _, img := range strings.Split(value, "|") {
			if img = strings.TrimSpace(img); img != "" {
				raw.Images = append(raw.Images, img)
			}
		}
	}
}
