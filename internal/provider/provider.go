// Package provider manages the pool of LLM backends and the fallback
// orchestration across them.
package provider

import (
	"strings"

	"github.com/startfranchise/chat-engine/internal/config"
	"github.com/startfranchise/chat-engine/internal/routing"
)

// Known provider names, in default priority order.
const (
	NameGoogle     = "google"
	NameOpenRouter = "openrouter"
	NameGroq       = "groq"
	NameLocal      = "local"
)

// Provider is one configured LLM backend with its model tiers.
type Provider struct {
	Name       string
	APIKey     string
	BaseURL    string
	FlashModel string
	ProModel   string
}

// Model resolves the model identifier for a tier, falling back to the
// flash model when the provider has no dedicated pro model.
func (p Provider) Model(tier routing.Tier) string {
	if tier == routing.TierPro && p.ProModel != "" {
		return p.ProModel
	}
	return p.FlashModel
}

// HasPro reports whether the provider exposes a distinct pro-tier model.
func (p Provider) HasPro() bool {
	return p.ProModel != "" && p.ProModel != p.FlashModel
}

// Override requests a specific provider be tried first, optionally with a
// caller-supplied credential.
type Override struct {
	Name   string
	APIKey string
}

// BuildProviders assembles the provider pool from configuration. A provider
// participates purely because its credential is present; the local backend
// is keyed on its base URL instead since local inference servers often run
// unauthenticated. An override promotes the named provider to the front of
// the pool.
func BuildProviders(cfg config.ProvidersConfig, override *Override) []Provider {
	var pool []Provider

	if cfg.Google.APIKey != "" {
		pool = append(pool, Provider{
			Name:       NameGoogle,
			APIKey:     cfg.Google.APIKey,
			FlashModel: cfg.Google.FlashModel,
			ProModel:   cfg.Google.ProModel,
		})
	}

	if cfg.OpenRouter.APIKey != "" {
		pool = append(pool, Provider{
			Name:       NameOpenRouter,
			APIKey:     cfg.OpenRouter.APIKey,
			BaseURL:    cfg.OpenRouter.BaseURL,
			FlashModel: cfg.OpenRouter.FlashModel,
			ProModel:   cfg.OpenRouter.ProModel,
		})
	}

	if cfg.Groq.APIKey != "" {
		pool = append(pool, Provider{
			Name:       NameGroq,
			APIKey:     cfg.Groq.APIKey,
			BaseURL:    cfg.Groq.BaseURL,
			FlashModel: cfg.Groq.FlashModel,
			ProModel:   cfg.Groq.ProModel,
		})
	}

	if cfg.Local.BaseURL != "" {
		pool = append(pool, Provider{
			Name:       NameLocal,
			APIKey:     cfg.Local.APIKey,
			BaseURL:    cfg.Local.BaseURL,
			FlashModel: cfg.Local.FlashModel,
			ProModel:   cfg.Local.ProModel,
		})
	}

	if override == nil || override.Name == "" {
		return pool
	}

	name := strings.ToLower(strings.TrimSpace(override.Name))
	for i, p := range pool {
		if p.Name != name {
			continue
		}
		if override.APIKey != "" {
			p.APIKey = override.APIKey
		}
		promoted := append([]Provider{p}, append(pool[:i:i], pool[i+1:]...)...)
		return promoted
	}

	return pool
}
