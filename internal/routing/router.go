// Package routing classifies message complexity and decides whether a
// request needs domain data retrieval. It is a pure function over the
// message text; no state, no I/O.
package routing

import (
	"regexp"
	"strings"
)

// Complexity is the classified difficulty of a user message.
type Complexity string

const (
	Simple  Complexity = "simple"
	Medium  Complexity = "medium"
	Complex Complexity = "complex"
)

// Tier is the model quality tier a route resolves to.
type Tier string

const (
	TierFlash Tier = "flash"
	TierPro   Tier = "pro"
)

// Route is the routing decision for one message.
type Route struct {
	Complexity Complexity
	NeedsRAG   bool
	Tier       Tier
}

// Scoring policy. Medium deliberately stays on the cheap tier; only
// complex escalates, bounding cost.
const (
	complexScoreThreshold = 3
	mediumScoreThreshold  = 1
	longMessageChars      = 100
	veryLongMessageChars  = 250
	sentenceCountFloor    = 2
)

// complexKeywords indicate analytical or comparative reasoning.
var complexKeywords = []string{
	"analisis", "bandingkan", "compare", "evaluasi", "strategi",
	"mengapa", "why", "bagaimana cara", "how to",
	"pros and cons", "kelebihan dan kekurangan", "potensi",
	"investasi", "modal", "roi", "break even",
	"jelaskan secara detail", "explain in detail",
}

// ragKeywords indicate the message needs brand/outlet data.
var ragKeywords = []string{
	"outlet", "cabang", "lokasi", "alamat", "dimana",
	"where", "berapa", "how many", "jumlah",
	"kota", "wilayah", "daerah", "region",
	"terdekat", "nearest", "closest", "sekitar",
	"brand", "franchise", "merk", "merek",
	"kumon", "luuca", "barber", "laundry",
	"kategori", "category", "jenis",
	"rating", "review", "bintang", "score",
}

// simplePatterns match greetings, acknowledgements and very short messages.
var simplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(hai|halo|hi|hello|hey|selamat|assalamu|good\s*(morning|afternoon|evening))[\s!.]*$`),
	regexp.MustCompile(`^(terima\s*kasih|thanks?|makasih|thx|ok|oke|siap|baik)[\s!.]*$`),
	regexp.MustCompile(`^(ya|tidak|iya|ngga|nggak|bukan|betul|benar)[\s!.]*$`),
	regexp.MustCompile(`^.{0,15}$`),
}

var sentenceSplit = regexp.MustCompile(`[.!?。]+`)

// Classify analyzes a user message and returns its route.
func Classify(message string) Route {
	lower := strings.ToLower(strings.TrimSpace(message))

	for _, p := range simplePatterns {
		if p.MatchString(lower) {
			return Route{Complexity: Simple, NeedsRAG: false, Tier: TierFlash}
		}
	}

	score := 0
	if len(lower) > longMessageChars {
		score++
	}
	if len(lower) > veryLongMessageChars {
		score++
	}
	if countSentences(lower) > sentenceCountFloor {
		score++
	}
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}

	needsRAG := false
	for _, kw := range ragKeywords {
		if strings.Contains(lower, kw) {
			needsRAG = true
			break
		}
	}

	// A data question is never trivially simple.
	if needsRAG && score < mediumScoreThreshold {
		score = mediumScoreThreshold
	}

	switch {
	case score >= complexScoreThreshold:
		return Route{Complexity: Complex, NeedsRAG: needsRAG, Tier: TierPro}
	case score >= mediumScoreThreshold:
		return Route{Complexity: Medium, NeedsRAG: needsRAG, Tier: TierFlash}
	default:
		return Route{Complexity: Simple, NeedsRAG: needsRAG, Tier: TierFlash}
	}
}

func countSentences(text string) int {
	count := 0
	for _, s := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			count++
		}
	}
	return count
}
