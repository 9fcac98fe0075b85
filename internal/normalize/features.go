package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// featurePatterns detect amenity mentions in bilingual free text. Tags are
// the closed vocabulary persisted on records; detection is case-insensitive.
var featurePatterns = map[string]*regexp.Regexp{
	"pool":             regexp.MustCompile(`(?i)piscina|pool|alberca`),
	"garage":           regexp.MustCompile(`(?i)garaje|garage|parqueo|parking|estacionamiento`),
	"garden":           regexp.MustCompile(`(?i)jard[ií]n|garden|patio`),
	"terrace":          regexp.MustCompile(`(?i)terraza|terrace|balc[oó]n|balcony`),
	"air_conditioning": regexp.MustCompile(`(?i)aire acondicionado|a/c|\bac\b|air conditioning|clima`),
	"elevator":         regexp.MustCompile(`(?i)ascensor|elevator|elevador`),
	"security":         regexp.MustCompile(`(?i)seguridad|security|vigilancia|gated`),
	"gym":              regexp.MustCompile(`(?i)gimnasio|gym|fitness`),
	"furnished":        regexp.MustCompile(`(?i)amueblado|amoblado|furnished`),
	"sea_view":         regexp.MustCompile(`(?i)vista al mar|sea view|ocean view|frente al mar|beachfront`),
	"new_construction": regexp.MustCompile(`(?i)nueva construcci[oó]n|new construction|a estrenar|brand new`),
	"pet_friendly":     regexp.MustCompile(`(?i)mascotas|pet friendly|pets allowed`),
}

// Features merges explicit feature tags with amenities detected in the
// description. Output is deduplicated, restricted to the known vocabulary,
// and sorted, so re-running over already-normalized input is a no-op.
func Features(description string, explicit []string) []string {
	seen := make(map[string]bool, len(featurePatterns))

	for _, tag := range explicit {
		tag = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), " ", "_")
		if _, known := featurePatterns[tag]; known {
			seen[tag] = true
		}
	}
	for tag, pattern := range featurePatterns {
		if pattern.MatchString(description) {
			seen[tag] = true
		}
	}

	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
