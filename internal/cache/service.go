package cache

import (
	"context"
	"time"

	"github.com/startfranchise/chat-engine/internal/chat"
	"github.com/startfranchise/chat-engine/internal/observability"
)

// Service owns both cache tiers. It is constructed once at process start
// and injected into the request handler, so tests can build isolated
// instances.
type Service struct {
	exact    *ResponseCache
	semantic *SemanticCache
	backend  Backend
	max      int
}

// ServiceConfig holds settings for both tiers.
type ServiceConfig struct {
	Driver        string
	MaxEntries    int
	TTL           time.Duration
	MinSimilarity float64
	MinTokens     int
	Redis         RedisConfig
}

// NewService selects the exact-cache backend and builds both tiers.
func NewService(cfg ServiceConfig, logger *observability.Logger) *Service {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 500
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	backend := SelectBackend(cfg.Driver, cfg.MaxEntries, cfg.Redis, logger)

	return &Service{
		exact: NewResponseCache(backend, cfg.TTL, logger),
		semantic: NewSemanticCache(SemanticConfig{
			MaxEntries:    cfg.MaxEntries,
			TTL:           cfg.TTL,
			MinSimilarity: cfg.MinSimilarity,
			MinTokens:     cfg.MinTokens,
		}, logger),
		backend: backend,
		max:     cfg.MaxEntries,
	}
}

// Key derives the exact-cache key for a conversation.
func (s *Service) Key(messages []chat.Message, location *chat.LatLng, dataVersion string) string {
	return Key(messages, location, dataVersion)
}

// GetExact looks up a literal repeat.
func (s *Service) GetExact(ctx context.Context, key string) (string, bool) {
	return s.exact.Get(ctx, key)
}

// GetSemantic looks up a paraphrased repeat of the current user message.
func (s *Service) GetSemantic(message string, location *chat.LatLng, dataVersion string) (string, bool) {
	return s.semantic.Get(message, location, dataVersion)
}

// Store writes a response into both tiers.
func (s *Service) Store(ctx context.Context, key, message, response string, location *chat.LatLng, dataVersion string) {
	s.exact.Set(ctx, key, response)
	s.semantic.Set(message, response, location, dataVersion)
}

// Stats reports combined diagnostics for both tiers.
func (s *Service) Stats() Stats {
	return Stats{
		Backend:  s.backend.Name(),
		MaxSize:  s.max,
		Exact:    s.exact.Stats(),
		Semantic: s.semantic.Stats(),
	}
}

// Close releases the backend.
func (s *Service) Close() error {
	return s.backend.Close()
}
