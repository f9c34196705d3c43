package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/startfranchise/chat-engine/internal/chat"
	"github.com/startfranchise/chat-engine/internal/observability"
)

// DefaultTTL is the response cache lifetime for both tiers.
const DefaultTTL = 30 * time.Minute

// keyMessageWindow is how many trailing messages form the cache fingerprint.
const keyMessageWindow = 2

// ResponseCache is the exact-key cache tier. Keys hash the last two
// conversation messages plus the location bucket and data version, so a
// literal repeat within the TTL window hits without a provider call.
type ResponseCache struct {
	backend Backend
	logger  *observability.Logger
	ttl     time.Duration
	clock   func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// entryEnvelope is the stored representation of a cached response.
type entryEnvelope struct {
	Response string    `json:"response"`
	StoredAt time.Time `json:"stored_at"`
	HitCount int       `json:"hit_count"`
}

// NewResponseCache creates the exact cache tier over the given backend.
func NewResponseCache(backend Backend, ttl time.Duration, logger *observability.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		backend: backend,
		logger:  logger,
		ttl:     ttl,
		clock:   time.Now,
	}
}

// Key derives the deterministic exact-cache key for a conversation.
// The last two messages (lower-cased, trimmed) form the fingerprint; the
// location bucket is rounded to four decimals (~11 m) and the data version
// scalar invalidates the key when the underlying records change.
func Key(messages []chat.Message, location *chat.LatLng, dataVersion string) string {
	start := len(messages) - keyMessageWindow
	if start < 0 {
		start = 0
	}

	parts := make([]string, 0, keyMessageWindow)
	for _, m := range messages[start:] {
		parts = append(parts, m.Role+":"+strings.ToLower(strings.TrimSpace(m.Content)))
	}

	fingerprint := strings.Join(parts, "|")
	if location != nil {
		fingerprint += fmt.Sprintf("|loc:%.4f,%.4f", location.Lat, location.Lng)
	}
	if dataVersion != "" {
		fingerprint += "|v:" + dataVersion
	}

	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:16])
}

// Get looks up a cached response. The age check is enforced here regardless
// of backend, so an entry past the TTL is never returned even if the
// backing store has not yet evicted it.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if err != ErrCacheMiss {
			c.logger.Warn().Err(err).Msg("Exact cache get failed")
		}
		c.misses.Add(1)
		return "", false
	}

	var entry entryEnvelope
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn().Err(err).Msg("Corrupt exact cache entry")
		c.misses.Add(1)
		return "", false
	}

	age := c.clock().Sub(entry.StoredAt)
	if age > c.ttl {
		_ = c.backend.Delete(ctx, key)
		c.misses.Add(1)
		return "", false
	}

	// Best-effort hit counter write-back with the remaining lifetime.
	entry.HitCount++
	if data, err := json.Marshal(entry); err == nil {
		_ = c.backend.Set(ctx, key, data, c.ttl-age)
	}

	c.hits.Add(1)
	c.logger.Debug().Str("key", shortKey(key)).Int("hits", entry.HitCount).Msg("Exact cache hit")
	return entry.Response, true
}

// Set stores a response under the given key.
func (c *ResponseCache) Set(ctx context.Context, key, response string) {
	entry := entryEnvelope{
		Response: response,
		StoredAt: c.clock(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Marshal exact cache entry failed")
		return
	}

	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("Exact cache set failed")
		return
	}

	c.logger.Debug().Str("key", shortKey(key)).Str("backend", c.backend.Name()).Msg("Exact cache stored")
}

// shortKey abbreviates a cache key for log lines.
func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

// Stats reports this tier's counters and backend identity.
func (c *ResponseCache) Stats() TierStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	return TierStats{
		Backend: c.backend.Name(),
		Size:    c.backend.Size(),
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
	}
}

// TierStats describes one cache tier for diagnostics.
type TierStats struct {
	Backend string  `json:"backend,omitempty"`
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats is the combined cache diagnostics payload.
type Stats struct {
	Backend  string    `json:"backend"`
	MaxSize  int       `json:"max_size"`
	Exact    TierStats `json:"exact"`
	Semantic TierStats `json:"semantic"`
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
