// Package cache provides the two-tier response memo for the chat engine:
// an exact-key tier and a token-similarity semantic tier.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/startfranchise/chat-engine/internal/observability"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Backend is the key-value storage behind the exact cache tier.
type Backend interface {
	// Name identifies the active backend for observability.
	Name() string
	// Get returns the stored value or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Size returns the entry count for in-process backends, -1 otherwise.
	Size() int
	Close() error
}

// RedisBackend stores entries in an external Redis instance. Redis manages
// its own memory, so the size-bound eviction of the memory backend does not
// apply here.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// NewRedisBackend creates a Redis backend, probing connectivity once.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ai:cache:"
	}

	return &RedisBackend{client: client, prefix: prefix}, nil
}

// Name identifies this backend.
func (b *RedisBackend) Name() string { return "redis" }

// Get retrieves a value from Redis.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores a value in Redis with a native TTL.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a key from Redis.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Size is unknown for Redis; the server manages its own memory.
func (b *RedisBackend) Size() int { return -1 }

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// MemoryBackend is a bounded in-process store. When at capacity it evicts
// the single entry with the oldest creation time, a strict
// LRU-by-insertion-time policy rather than access recency.
type MemoryBackend struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	clock      func() time.Time
}

type memoryEntry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

// NewMemoryBackend creates a bounded in-process backend.
func NewMemoryBackend(maxEntries int) *MemoryBackend {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &MemoryBackend{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		clock:      time.Now,
	}
}

// Name identifies this backend.
func (b *MemoryBackend) Name() string { return "memory" }

// Get retrieves a value, treating expired entries as absent.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if b.clock().After(entry.expiresAt) {
		delete(b.entries, key)
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores a value, evicting the oldest entry first when at capacity.
// Overwriting a key keeps its original creation time, so eviction order
// follows insertion, not access.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	existing, exists := b.entries[key]
	if !exists && len(b.entries) >= b.maxEntries {
		if oldest := oldestKey(b.entries); oldest != "" {
			delete(b.entries, oldest)
		}
	}

	createdAt := now
	if exists {
		createdAt = existing.createdAt
	}
	b.entries[key] = memoryEntry{
		value:     value,
		createdAt: createdAt,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Delete removes a key.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

// Size returns the current entry count.
func (b *MemoryBackend) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Close is a no-op for the memory backend.
func (b *MemoryBackend) Close() error { return nil }

// oldestKey returns the key with the earliest creation time.
func oldestKey(entries map[string]memoryEntry) string {
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

// SelectBackend picks the exact-cache backend once at startup. Redis is
// chosen only when configured and reachable; any probe failure falls back
// to the bounded memory backend.
func SelectBackend(driver string, maxEntries int, redisCfg RedisConfig, logger *observability.Logger) Backend {
	if driver == "redis" && redisCfg.Addr != "" {
		backend, err := NewRedisBackend(redisCfg)
		if err == nil {
			logger.Info().Str("addr", redisCfg.Addr).Msg("Response cache using redis backend")
			return backend
		}
		logger.Warn().Err(err).Msg("Redis unavailable, falling back to memory cache")
	}
	return NewMemoryBackend(maxEntries)
}
