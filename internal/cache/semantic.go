package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/startfranchise/chat-engine/internal/chat"
	"github.com/startfranchise/chat-engine/internal/observability"
)

// Semantic cache policy constants. Short queries are not semantically
// matched because similarity scores on tiny token sets are unreliable.
const (
	DefaultMinSimilarity = 0.84
	DefaultMinTokens     = 3
)

var punctuation = regexp.MustCompile(`[` + "`" + `~!@#$%^&*()_+=\[\]{};:'"\\|,.<>/?-]`)

// SemanticCache matches paraphrased repeats of the current user message by
// bag-of-words Jaccard similarity, without an embedding model. Entries are
// only eligible to match when their location-bucket and data-version keys
// are identical.
type SemanticCache struct {
	mu      sync.Mutex
	entries map[string]*semanticEntry

	logger        *observability.Logger
	maxEntries    int
	ttl           time.Duration
	minSimilarity float64
	minTokens     int
	clock         func() time.Time

	hits   int64
	misses int64
}

type semanticEntry struct {
	text        string
	tokens      []string
	response    string
	locationKey string
	versionKey  string
	createdAt   time.Time
	hitCount    int
}

// SemanticConfig holds semantic cache tuning.
type SemanticConfig struct {
	MaxEntries    int
	TTL           time.Duration
	MinSimilarity float64
	MinTokens     int
}

// NewSemanticCache creates the semantic cache tier.
func NewSemanticCache(cfg SemanticConfig, logger *observability.Logger) *SemanticCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 500
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = DefaultMinSimilarity
	}
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = DefaultMinTokens
	}

	return &SemanticCache{
		entries:       make(map[string]*semanticEntry),
		logger:        logger,
		maxEntries:    cfg.MaxEntries,
		ttl:           cfg.TTL,
		minSimilarity: cfg.MinSimilarity,
		minTokens:     cfg.MinTokens,
		clock:         time.Now,
	}
}

// NormalizeText lower-cases a message and strips punctuation, collapsing
// runs of whitespace.
func NormalizeText(text string) string {
	lowered := strings.ToLower(text)
	stripped := punctuation.ReplaceAllString(lowered, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

// Tokenize splits normalized text into unique tokens of length >= 3,
// preserving first-seen order.
func Tokenize(text string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, part := range strings.Fields(text) {
		if len(part) < 3 {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		tokens = append(tokens, part)
	}
	return tokens
}

// Jaccard computes intersection-over-union of two token sets.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}

	setB := make(map[string]struct{}, len(b))
	intersection := 0
	for _, t := range b {
		if _, dup := setB[t]; dup {
			continue
		}
		setB[t] = struct{}{}
		if _, ok := setA[t]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Get looks up a paraphrase match for the current user message. Expired
// entries encountered during the scan are purged lazily.
func (c *SemanticCache) Get(message string, location *chat.LatLng, dataVersion string) (string, bool) {
	normalized := NormalizeText(message)
	if normalized == "" {
		return "", false
	}
	tokens := Tokenize(normalized)
	if len(tokens) < c.minTokens {
		return "", false
	}

	locationKey := locationBucket(location)
	versionKey := versionBucket(dataVersion)
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	var bestKey string
	var bestScore float64

	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.ttl {
			delete(c.entries, key)
			continue
		}
		if entry.locationKey != locationKey || entry.versionKey != versionKey {
			continue
		}
		if score := Jaccard(tokens, entry.tokens); score > bestScore {
			bestScore = score
			bestKey = key
		}
	}

	if bestKey != "" && bestScore >= c.minSimilarity {
		entry := c.entries[bestKey]
		entry.hitCount++
		c.hits++
		c.logger.Debug().Float64("score", bestScore).Int("hits", entry.hitCount).Msg("Semantic cache hit")
		return entry.response, true
	}

	c.misses++
	return "", false
}

// Set stores a response keyed by the normalized message and its buckets.
// Messages below the token minimum are not stored at all.
func (c *SemanticCache) Set(message, response string, location *chat.LatLng, dataVersion string) {
	normalized := NormalizeText(message)
	if normalized == "" {
		return
	}
	tokens := Tokenize(normalized)
	if len(tokens) < c.minTokens {
		return
	}

	locationKey := locationBucket(location)
	versionKey := versionBucket(dataVersion)

	sum := sha256.Sum256([]byte(normalized + "|" + locationKey + "|" + versionKey))
	key := hex.EncodeToString(sum[:16])

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		if oldest := oldestSemanticKey(c.entries); oldest != "" {
			delete(c.entries, oldest)
		}
	}

	c.entries[key] = &semanticEntry{
		text:        normalized,
		tokens:      tokens,
		response:    response,
		locationKey: locationKey,
		versionKey:  versionKey,
		createdAt:   c.clock(),
	}
}

// Stats reports this tier's counters.
func (c *SemanticCache) Stats() TierStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return TierStats{
		Size:    len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate(c.hits, c.misses),
	}
}

// oldestSemanticKey returns the key with the earliest creation time.
func oldestSemanticKey(entries map[string]*semanticEntry) string {
	var oldest string
	var oldestTime time.Time
	for key, entry := range entries {
		if oldest == "" || entry.createdAt.Before(oldestTime) {
			oldest = key
			oldestTime = entry.createdAt
		}
	}
	return oldest
}

// locationBucket rounds a position to three decimals so nearby queries
// share a semantic bucket.
func locationBucket(location *chat.LatLng) string {
	if location == nil {
		return "loc:none"
	}
	return fmt.Sprintf("loc:%.3f,%.3f", location.Lat, location.Lng)
}

func versionBucket(dataVersion string) string {
	if dataVersion == "" {
		return "v:none"
	}
	return "v:" + dataVersion
}
