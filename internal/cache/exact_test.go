package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startfranchise/chat-engine/internal/chat"
	"github.com/startfranchise/chat-engine/internal/observability"
)

func TestKey_Deterministic(t *testing.T) {
	messages := []chat.Message{
		{Role: "user", Content: "Apa itu franchise Kumon?"},
	}
	loc := &chat.LatLng{Lat: -6.2088, Lng: 106.8456}

	k1 := Key(messages, loc, "1700000000000")
	k2 := Key(messages, loc, "1700000000000")
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)
}

func TestKey_NormalizesCaseAndWhitespace(t *testing.T) {
	a := Key([]chat.Message{{Role: "user", Content: "  Apa itu KUMON?  "}}, nil, "")
	b := Key([]chat.Message{{Role: "user", Content: "apa itu kumon?"}}, nil, "")
	assert.Equal(t, a, b)
}

func TestKey_VariesByLocationAndVersion(t *testing.T) {
	messages := []chat.Message{{Role: "user", Content: "franchise terdekat"}}

	base := Key(messages, nil, "")
	withLoc := Key(messages, &chat.LatLng{Lat: -6.2, Lng: 106.8}, "")
	withVersion := Key(messages, nil, "42")

	assert.NotEqual(t, base, withLoc)
	assert.NotEqual(t, base, withVersion)
	assert.NotEqual(t, withLoc, withVersion)

	// Sub-bucket location jitter rounds away.
	jittered := Key(messages, &chat.LatLng{Lat: -6.20001, Lng: 106.80002}, "")
	assert.Equal(t, withLoc, jittered)
}

func TestKey_UsesLastTwoMessagesOnly(t *testing.T) {
	short := []chat.Message{
		{Role: "assistant", Content: "Halo!"},
		{Role: "user", Content: "brand kopi apa saja?"},
	}
	long := append([]chat.Message{
		{Role: "user", Content: "hai"},
		{Role: "assistant", Content: "Hai juga!"},
	}, short...)

	assert.Equal(t, Key(short, nil, ""), Key(long, nil, ""))
}

func TestResponseCache_GetSet(t *testing.T) {
	c := NewResponseCache(NewMemoryBackend(10), time.Minute, observability.Nop())
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "abcdef1234567890", "Kumon adalah franchise pendidikan.")
	got, ok := c.Get(ctx, "abcdef1234567890")
	require.True(t, ok)
	assert.Equal(t, "Kumon adalah franchise pendidikan.", got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestResponseCache_ShortKey(t *testing.T) {
	c := NewResponseCache(NewMemoryBackend(10), time.Minute, observability.Nop())
	ctx := context.Background()

	c.Set(ctx, "k", "jawaban")
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "jawaban", got)
}

func TestResponseCache_HitDoesNotRefreshEvictionOrder(t *testing.T) {
	backend := NewMemoryBackend(2)
	c := NewResponseCache(backend, time.Hour, observability.Nop())
	ctx := context.Background()

	now := time.Now()
	setClocks := func(tick time.Time) {
		c.clock = func() time.Time { return tick }
		backend.clock = func() time.Time { return tick }
	}

	setClocks(now)
	c.Set(ctx, "keyA5678", "jawaban a")
	setClocks(now.Add(time.Second))
	c.Set(ctx, "keyB5678", "jawaban b")

	// A hit writes the hit counter back, but must not make the entry
	// younger than B for eviction.
	setClocks(now.Add(2 * time.Second))
	_, ok := c.Get(ctx, "keyA5678")
	require.True(t, ok)

	setClocks(now.Add(3 * time.Second))
	c.Set(ctx, "keyC5678", "jawaban c")

	_, ok = c.Get(ctx, "keyA5678")
	assert.False(t, ok, "oldest insertion evicted despite the hit")
	got, ok := c.Get(ctx, "keyB5678")
	require.True(t, ok)
	assert.Equal(t, "jawaban b", got)
}

func TestResponseCache_TTLEnforcedOnRead(t *testing.T) {
	backend := NewMemoryBackend(10)
	c := NewResponseCache(backend, 30*time.Minute, observability.Nop())
	ctx := context.Background()

	now := time.Now()
	c.clock = func() time.Time { return now }
	c.Set(ctx, "abcdef1234567890", "jawaban lama")

	// Entry still physically present but past its lifetime.
	c.clock = func() time.Time { return now.Add(31 * time.Minute) }
	_, ok := c.Get(ctx, "abcdef1234567890")
	assert.False(t, ok)

	// The stale entry was deleted on read.
	_, err := backend.Get(ctx, "abcdef1234567890")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestResponseCache_FreshWithinTTL(t *testing.T) {
	c := NewResponseCache(NewMemoryBackend(10), 30*time.Minute, observability.Nop())
	ctx := context.Background()

	now := time.Now()
	c.clock = func() time.Time { return now }
	c.Set(ctx, "abcdef1234567890", "jawaban")

	c.clock = func() time.Time { return now.Add(29 * time.Minute) }
	got, ok := c.Get(ctx, "abcdef1234567890")
	require.True(t, ok)
	assert.Equal(t, "jawaban", got)
}
