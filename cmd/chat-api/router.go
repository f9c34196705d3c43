// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/startfranchise/chat-engine/cmd/chat-api/handlers"
	"github.com/startfranchise/chat-engine/cmd/chat-api/middleware"
	"github.com/startfranchise/chat-engine/internal/cache"
	"github.com/startfranchise/chat-engine/internal/config"
	"github.com/startfranchise/chat-engine/internal/observability"
	"github.com/startfranchise/chat-engine/internal/provider"
	"github.com/startfranchise/chat-engine/internal/rag"
	"github.com/startfranchise/chat-engine/internal/store"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config) (http.Handler, func() error, error) {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"chat-engine"}`))
	})

	reader, err := store.NewClient(store.Config{
		BaseURL: cfg.Store.BaseURL,
		Timeout: cfg.Store.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	cacheSvc := cache.NewService(cache.ServiceConfig{
		Driver:        cfg.Cache.Driver,
		TTL:           cfg.Cache.TTL,
		MaxEntries:    cfg.Cache.MaxEntries,
		MinSimilarity: cfg.Cache.MinSimilarity,
		MinTokens:     cfg.Cache.MinTokens,
		Redis: cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		},
	}, logger)

	ragBuilder := rag.NewBuilder(reader, logger.WithComponent("rag"))

	// The shared orchestrator keeps one rotation cursor across requests.
	// Per-request provider overrides get their own throwaway instance.
	defaultPool := provider.BuildProviders(cfg.Providers, nil)
	shared := provider.NewOrchestrator(defaultPool, cfg.Providers.AttemptTimeout, logger.WithComponent("provider"))
	generators := func(override *provider.Override) handlers.Generator {
		if override == nil {
			return shared
		}
		pool := provider.BuildProviders(cfg.Providers, override)
		return provider.NewOrchestrator(pool, cfg.Providers.AttemptTimeout, logger.WithComponent("provider"))
	}

	chatHandler := handlers.NewChatHandler(logger.WithComponent("chat"), reader, cacheSvc, ragBuilder, generators)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", chatHandler.Chat)
		r.Get("/chat", chatHandler.Status)
	})

	return r, cacheSvc.Close, nil
}
