package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeaturesFromDescription(t *testing.T) {
	got := Features("Hermoso apartamento con piscina, gimnasio y vista al mar. Incluye parqueo techado.", nil)
	assert.Equal(t, []string{"garage", "gym", "pool", "sea_view"}, got)
}

func TestFeaturesBilingual(t *testing.T) {
	english := Features("Brand new condo, furnished, with elevator and pets allowed", nil)
	assert.Equal(t, []string{"elevator", "furnished", "new_construction", "pet_friendly"}, english)

	spanish := Features("A estrenar, amueblado, con ascensor, se aceptan mascotas", nil)
	assert.Equal(t, english, spanish)
}

func TestFeaturesExplicitTags(t *testing.T) {
	got := Features("", []string{"Pool", " sea view ", "POOL", "jacuzzi"})
	// unknown tags are dropped, known ones canonicalized and deduplicated
	assert.Equal(t, []string{"pool", "sea_view"}, got)
}

func TestFeaturesIdempotent(t *testing.T) {
	desc := "Casa con jardín, terraza y seguridad 24h"
	first := Features(desc, nil)
	second := Features(desc, first)
	assert.Equal(t, first, second)
}

func TestFeaturesEmpty(t *testing.T) {
	assert.Empty(t, Features("three bedrooms, quiet street", nil))
}
