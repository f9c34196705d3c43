// Package rag turns free-text chat messages into structured intents, builds
// retrieval context blocks from the record store, and derives deterministic
// map UI actions.
package rag

import (
	"regexp"
	"sort"
	"strings"

	"github.com/startfranchise/chat-engine/internal/store"
)

// Intent is the structured interpretation of a user message. It is derived
// per request and never persisted.
type Intent struct {
	Brand        *store.Brand
	BrandQuery   string
	City         string
	Category     string
	WantsStats   bool
	WantsNearest bool
	WantsReset   bool
}

// cityGazetteer is the fixed list of recognized Indonesian cities.
var cityGazetteer = []string{
	"jakarta", "surabaya", "bandung", "medan", "semarang", "makassar",
	"palembang", "tangerang", "depok", "bekasi", "bogor", "malang",
	"yogyakarta", "jogja", "solo", "denpasar", "bali", "batam",
	"pekanbaru", "lampung", "pontianak", "banjarmasin", "manado",
	"padang", "cirebon", "surakarta", "balikpapan", "samarinda",
}

// categoryVocabulary is the fixed category matching vocabulary.
var categoryVocabulary = []string{
	"pendidikan", "education", "makanan", "food", "minuman", "beverage",
	"laundry", "salon", "barber", "kecantikan", "beauty", "kesehatan", "health",
}

var (
	quotedBrand    = regexp.MustCompile(`["“”']([^"“”']+)["“”']`)
	brandPrefix    = regexp.MustCompile(`(?i)brand\s+(\w+)`)
	franchiseWord  = regexp.MustCompile(`(?i)franchise\s+(\w+)`)
	statsPattern   = regexp.MustCompile(`(?i)berapa|jumlah|total|how many|count|statistik|data`)
	nearestPattern = regexp.MustCompile(`(?i)terdekat|nearest|closest|paling dekat|near me|sekitar (saya|sini)`)
	resetPattern   = regexp.MustCompile(`(?i)reset|hapus filter|clear filter|tampilkan semua`)
)

// ExtractIntent derives the intent of a message. Known brand names are
// matched case-insensitively, longest first, to avoid partial-substring
// false positives; quoted phrases and "brand X" / "franchise X" patterns
// are the fallback.
func ExtractIntent(message string, brands []store.Brand) Intent {
	lower := strings.ToLower(message)

	intent := Intent{
		WantsStats:   statsPattern.MatchString(lower),
		WantsNearest: nearestPattern.MatchString(lower),
		WantsReset:   resetPattern.MatchString(lower),
	}

	for _, city := range cityGazetteer {
		if strings.Contains(lower, city) {
			intent.City = city
			break
		}
	}

	for _, cat := range categoryVocabulary {
		if strings.Contains(lower, cat) {
			intent.Category = cat
			break
		}
	}

	intent.Brand, intent.BrandQuery = matchBrand(message, lower, brands)

	return intent
}

// matchBrand scans known brand names longest-first, then falls back to
// explicit mention patterns resolved against the brand list.
func matchBrand(message, lower string, brands []store.Brand) (*store.Brand, string) {
	byLength := make([]store.Brand, len(brands))
	copy(byLength, brands)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Name) > len(byLength[j].Name)
	})

	for i := range byLength {
		name := strings.ToLower(byLength[i].Name)
		if name != "" && strings.Contains(lower, name) {
			return &byLength[i], byLength[i].Name
		}
	}

	query := ""
	if m := quotedBrand.FindStringSubmatch(message); m != nil {
		query = m[1]
	} else if m := brandPrefix.FindStringSubmatch(message); m != nil {
		query = m[1]
	} else if m := franchiseWord.FindStringSubmatch(message); m != nil {
		query = m[1]
	}
	if query == "" {
		return nil, ""
	}

	queryLower := strings.ToLower(query)
	for i := range byLength {
		if strings.Contains(strings.ToLower(byLength[i].Name), queryLower) {
			return &byLength[i], query
		}
	}
	return nil, query
}
