// Package handlers provides HTTP handlers for the chat API.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/startfranchise/chat-engine/internal/cache"
	"github.com/startfranchise/chat-engine/internal/chat"
	"github.com/startfranchise/chat-engine/internal/observability"
	"github.com/startfranchise/chat-engine/internal/prompt"
	"github.com/startfranchise/chat-engine/internal/provider"
	"github.com/startfranchise/chat-engine/internal/rag"
	"github.com/startfranchise/chat-engine/internal/routing"
	"github.com/startfranchise/chat-engine/internal/store"
)

// Polite Indonesian fallbacks for error responses.
const (
	replyBadRequest  = "Maaf, aku belum menerima pertanyaanmu. Coba ketik ulang ya."
	replyNoProviders = "Maaf, layanan AI sedang tidak tersedia. Coba lagi beberapa saat lagi ya."
	replyFailure     = "Maaf, aku lagi kesulitan menjawab. Coba lagi sebentar lagi ya."
)

// wantsAllBrands matches full-catalog questions that the database answers
// directly without spending an LLM call.
var wantsAllBrands = regexp.MustCompile(`(?i)\b(semua|seluruh|daftar|list|sebutkan)\b[^?.!]*\b(brand|merek)\b|\b(semua|seluruh)\b[^?.!]*\bfranchise\b|\b(brand|merek|franchise)\b[^?]*\bapa\s+saja\b`)

// Generator is the LLM orchestration surface the handler depends on.
type Generator interface {
	Generate(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (provider.Result, error)
	GenerateStream(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (<-chan provider.Chunk, provider.Result, error)
	Providers() []provider.Provider
}

// GeneratorFactory builds a Generator for a per-request provider override.
// A nil override must return the shared default generator.
type GeneratorFactory func(override *provider.Override) Generator

// ChatHandler serves the conversational endpoint.
type ChatHandler struct {
	logger     *observability.Logger
	store      store.Reader
	cache      *cache.Service
	rag        *rag.Builder
	generators GeneratorFactory
}

// NewChatHandler creates the chat handler.
func NewChatHandler(logger *observability.Logger, reader store.Reader, cacheSvc *cache.Service, ragBuilder *rag.Builder, generators GeneratorFactory) *ChatHandler {
	return &ChatHandler{
		logger:     logger,
		store:      reader,
		cache:      cacheSvc,
		rag:        ragBuilder,
		generators: generators,
	}
}

// ChatRequestDTO is the POST /chat request body.
type ChatRequestDTO struct {
	Messages         []chat.Message       `json:"messages"`
	UserLocation     *chat.LatLng         `json:"userLocation,omitempty"`
	ProviderOverride *ProviderOverrideDTO `json:"providerOverride,omitempty"`
	Stream           bool                 `json:"stream,omitempty"`
}

// ProviderOverrideDTO forces a specific provider for one request, with an
// optional caller-supplied key replacing the configured one.
type ProviderOverrideDTO struct {
	Name   string `json:"name"`
	APIKey string `json:"apiKey,omitempty"`
}

// ChatResponseDTO is the POST /chat response body.
type ChatResponseDTO struct {
	Reply      string       `json:"reply"`
	Actions    []rag.Action `json:"actions"`
	Cached     bool         `json:"cached"`
	CacheType  string       `json:"cacheType,omitempty"`
	Provider   string       `json:"provider,omitempty"`
	Model      string       `json:"model,omitempty"`
	Complexity string       `json:"complexity,omitempty"`
	Stats      cache.Stats  `json:"stats"`
}

// StatusResponseDTO is the GET /chat response body.
type StatusResponseDTO struct {
	Status    string      `json:"status"`
	Providers []string    `json:"providers"`
	Cache     cache.Stats `json:"cache"`
}

// Chat handles POST /api/v1/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := observability.ContextWithTraceID(r.Context(), uuid.NewString())
	logger := h.logger.WithContext(ctx)

	var req ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, replyBadRequest, "invalid request body")
		return
	}

	message := chat.LastUserContent(req.Messages)
	if strings.TrimSpace(message) == "" {
		h.writeError(w, http.StatusBadRequest, replyBadRequest, "messages must contain user content")
		return
	}

	var override *provider.Override
	if req.ProviderOverride != nil && req.ProviderOverride.Name != "" {
		override = &provider.Override{Name: req.ProviderOverride.Name, APIKey: req.ProviderOverride.APIKey}
	}
	generator := h.generators(override)
	if len(generator.Providers()) == 0 {
		h.writeError(w, http.StatusServiceUnavailable, replyNoProviders, "no LLM providers configured")
		return
	}

	// Data version scopes cache entries to the current dataset. Failure to
	// read it degrades to an unversioned key rather than an error.
	dataVersion, err := h.store.DataVersion(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Data version lookup failed")
		dataVersion = ""
	}

	exactKey := h.cache.Key(req.Messages, req.UserLocation, dataVersion)
	if reply, ok := h.cache.GetExact(ctx, exactKey); ok {
		logger.Info().Str("cache", "exact").Msg("Serving cached reply")
		h.respond(w, req.Stream, ChatResponseDTO{
			Reply:     reply,
			Actions:   h.rag.SuggestedActions(ctx, message, req.UserLocation),
			Cached:    true,
			CacheType: "exact",
		})
		return
	}

	if reply, ok := h.cache.GetSemantic(message, req.UserLocation, dataVersion); ok {
		logger.Info().Str("cache", "semantic").Msg("Serving cached reply")
		h.respond(w, req.Stream, ChatResponseDTO{
			Reply:     reply,
			Actions:   h.rag.SuggestedActions(ctx, message, req.UserLocation),
			Cached:    true,
			CacheType: "semantic",
		})
		return
	}

	route := routing.Classify(message)
	logger.Info().
		Str("complexity", string(route.Complexity)).
		Str("tier", string(route.Tier)).
		Bool("needs_rag", route.NeedsRAG).
		Msg("Message routed")

	if wantsAllBrands.MatchString(message) {
		if reply, ok := h.allBrandsReply(ctx); ok {
			h.cache.Store(ctx, exactKey, message, reply, req.UserLocation, dataVersion)
			h.respond(w, req.Stream, ChatResponseDTO{
				Reply:      reply,
				Actions:    h.rag.SuggestedActions(ctx, message, req.UserLocation),
				Provider:   "db",
				Model:      "direct",
				Complexity: string(route.Complexity),
			})
			return
		}
	}

	system := prompt.SimpleSystem
	if route.Complexity != routing.Simple {
		system = prompt.System
	}
	if route.NeedsRAG {
		rc := h.rag.RelevantContext(ctx, message, req.UserLocation)
		if rc.Text != "" {
			system = prompt.WithContext(system, rc.Text)
			logger.Debug().Strs("sources", rc.Sources).Msg("Context attached")
		}
	}

	if req.Stream {
		h.chatStream(ctx, w, logger, generator, route, system, req, exactKey, message, dataVersion)
		return
	}

	result, err := generator.Generate(ctx, route.Tier, system, req.Messages)
	if err != nil {
		logger.Error().Err(err).Msg("All providers failed")
		h.writeError(w, http.StatusInternalServerError, replyFailure, err.Error())
		return
	}

	h.cache.Store(ctx, exactKey, message, result.Text, req.UserLocation, dataVersion)
	h.respond(w, false, ChatResponseDTO{
		Reply:      result.Text,
		Actions:    h.rag.SuggestedActions(ctx, message, req.UserLocation),
		Provider:   result.Provider,
		Model:      result.Model,
		Complexity: string(route.Complexity),
	})
}

// chatStream serves the SSE variant: delta events while the model talks,
// then a final event carrying actions and attribution. The accumulated
// text is cached exactly like a non-streamed reply.
func (h *ChatHandler) chatStream(ctx context.Context, w http.ResponseWriter, logger *observability.Logger, generator Generator, route routing.Route, system string, req ChatRequestDTO, exactKey, message, dataVersion string) {
	chunks, result, err := generator.GenerateStream(ctx, route.Tier, system, req.Messages)
	if err != nil {
		logger.Error().Err(err).Msg("All providers failed")
		h.writeError(w, http.StatusInternalServerError, replyFailure, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, replyFailure, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var full strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			logger.Warn().Err(chunk.Err).Msg("Stream interrupted")
			writeSSE(w, map[string]any{"error": replyFailure})
			flusher.Flush()
			return
		}
		full.WriteString(chunk.Text)
		writeSSE(w, map[string]any{"delta": chunk.Text})
		flusher.Flush()
	}

	reply := full.String()
	if strings.TrimSpace(reply) != "" {
		h.cache.Store(ctx, exactKey, message, reply, req.UserLocation, dataVersion)
	}

	writeSSE(w, ChatResponseDTO{
		Reply:      reply,
		Actions:    h.rag.SuggestedActions(ctx, message, req.UserLocation),
		Provider:   result.Provider,
		Model:      result.Model,
		Complexity: string(route.Complexity),
		Stats:      h.cache.Stats(),
	})
	flusher.Flush()
}

// Status handles GET /api/v1/chat.
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	generator := h.generators(nil)
	names := make([]string, 0, len(generator.Providers()))
	for _, p := range generator.Providers() {
		names = append(names, p.Name)
	}

	status := "ok"
	if len(names) == 0 {
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponseDTO{
		Status:    status,
		Providers: names,
		Cache:     h.cache.Stats(),
	})
}

// allBrandsReply renders the full catalog grouped by category straight
// from the store.
func (h *ChatHandler) allBrandsReply(ctx context.Context) (string, bool) {
	brands, err := h.store.ListBrands(ctx)
	if err != nil || len(brands) == 0 {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Saat ini ada %d brand franchise di Map Start Franchise Indonesia:\n", len(brands)))
	for _, grp := range rag.GroupByCategory(brands) {
		sb.WriteString(fmt.Sprintf("\n**%s:**\n", grp.Category))
		for _, b := range grp.Brands {
			if b.TotalOutlets > 0 {
				sb.WriteString(fmt.Sprintf("- %s (%d outlet)\n", b.Name, b.TotalOutlets))
			} else {
				sb.WriteString(fmt.Sprintf("- %s\n", b.Name))
			}
		}
	}
	sb.WriteString("\nMau tahu lebih banyak tentang salah satu brand di atas?")
	return sb.String(), true
}

// respond writes a JSON response, or a two-event SSE stream when the
// client asked for streaming but the reply was resolved without a model.
// Every success reply carries a cache stats snapshot.
func (h *ChatHandler) respond(w http.ResponseWriter, stream bool, resp ChatResponseDTO) {
	resp.Stats = h.cache.Stats()
	if stream {
		flusher, ok := w.(http.Flusher)
		if ok {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			writeSSE(w, map[string]any{"delta": resp.Reply})
			writeSSE(w, resp)
			flusher.Flush()
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ChatHandler) writeError(w http.ResponseWriter, status int, reply, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"reply": reply,
		"error": detail,
	}
	json.NewEncoder(w).Encode(resp)
}

func writeSSE(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
