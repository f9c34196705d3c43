package provider

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/startfranchise/chat-engine/internal/chat"
	"github.com/startfranchise/chat-engine/internal/observability"
	"github.com/startfranchise/chat-engine/internal/routing"
)

const maxRetries = 2

var retryBackoff = []time.Duration{300 * time.Millisecond, 800 * time.Millisecond}

// ErrNoProviders is returned when the pool is empty.
var ErrNoProviders = errors.New("no LLM providers configured")

// Result is a successful generation with its attribution.
type Result struct {
	Text     string
	Provider string
	Model    string
	Tier     routing.Tier
}

// AggregateError carries every classified failure from an exhausted
// fallback chain.
type AggregateError struct {
	Attempts []ErrorInfo
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.String()
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// Errors returns the individual attempt failures.
func (e *AggregateError) Errors() []ErrorInfo {
	return e.Attempts
}

// clientFor builds the per-provider transport. Swapped in tests.
type clientFor func(p Provider) attemptClient

type attemptClient interface {
	Generate(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (string, int, error)
	Stream(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (<-chan Chunk, int, error)
}

// Orchestrator walks the provider pool until one attempt succeeds. Each
// request starts at a rotating cursor position so load spreads across
// providers; within a provider the requested tier is tried before the
// flash fallback, and transient failures are retried with backoff.
type Orchestrator struct {
	providers []Provider
	newClient clientFor
	cursor    atomic.Uint64
	sleep     func(time.Duration)
	logger    *observability.Logger
}

// NewOrchestrator creates an orchestrator over the given pool.
func NewOrchestrator(providers []Provider, attemptTimeout time.Duration, logger *observability.Logger) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		newClient: func(p Provider) attemptClient { return NewClient(p, attemptTimeout) },
		sleep:     time.Sleep,
		logger:    logger,
	}
}

// Providers returns the configured pool order.
func (o *Orchestrator) Providers() []Provider {
	return o.providers
}

// attemptPlan is one provider and tier pairing in fallback order.
type attemptPlan struct {
	provider Provider
	tier     routing.Tier
}

// plan builds the full fallback chain for a request. The rotation cursor
// is best-effort fairness, not a strict round-robin guarantee.
func (o *Orchestrator) plan(tier routing.Tier) []attemptPlan {
	n := len(o.providers)
	if n == 0 {
		return nil
	}
	start := int(o.cursor.Add(1)-1) % n

	var plans []attemptPlan
	for i := 0; i < n; i++ {
		p := o.providers[(start+i)%n]
		if tier == routing.TierPro && p.HasPro() {
			plans = append(plans, attemptPlan{provider: p, tier: routing.TierPro})
		}
		plans = append(plans, attemptPlan{provider: p, tier: routing.TierFlash})
	}
	return plans
}

// Generate runs the fallback chain for a non-streaming completion.
func (o *Orchestrator) Generate(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (Result, error) {
	plans := o.plan(tier)
	if plans == nil {
		return Result{}, ErrNoProviders
	}

	var failures []ErrorInfo
	for _, plan := range plans {
		text, info, ok := o.tryGenerate(ctx, plan, system, messages)
		if ok {
			return Result{
				Text:     text,
				Provider: plan.provider.Name,
				Model:    plan.provider.Model(plan.tier),
				Tier:     plan.tier,
			}, nil
		}
		failures = append(failures, info)

		if ctx.Err() != nil {
			break
		}
	}

	return Result{}, &AggregateError{Attempts: failures}
}

// tryGenerate runs one provider+tier attempt with retries. The returned
// ErrorInfo is the last failure when ok is false.
func (o *Orchestrator) tryGenerate(ctx context.Context, plan attemptPlan, system string, messages []chat.Message) (string, ErrorInfo, bool) {
	client := o.newClient(plan.provider)
	var last ErrorInfo

	for try := 0; try <= maxRetries; try++ {
		if try > 0 {
			o.sleep(retryBackoff[try-1])
		}

		text, status, err := client.Generate(ctx, plan.tier, system, messages)
		if err == nil && strings.TrimSpace(text) != "" {
			o.logger.Info().
				Str("provider", plan.provider.Name).
				Str("tier", string(plan.tier)).
				Int("attempt", try+1).
				Msg("LLM generation succeeded")
			return text, ErrorInfo{}, true
		}

		if err == nil {
			last = ErrorInfo{
				Provider: plan.provider.Name,
				Tier:     plan.tier,
				Message:  "empty response text",
				Category: CategoryUnknown,
			}
		} else {
			last = Classify(plan.provider.Name, plan.tier, status, err)
		}

		o.logger.Warn().
			Str("provider", plan.provider.Name).
			Str("tier", string(plan.tier)).
			Str("category", string(last.Category)).
			Int("status", last.Status).
			Int("attempt", try+1).
			Msg("LLM attempt failed")

		if !last.Retryable || ctx.Err() != nil {
			break
		}
	}
	return "", last, false
}

// GenerateStream runs the fallback chain for a streaming completion.
// Only errors establishing the stream trigger fallback; once chunks are
// flowing the stream is committed.
func (o *Orchestrator) GenerateStream(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (<-chan Chunk, Result, error) {
	plans := o.plan(tier)
	if plans == nil {
		return nil, Result{}, ErrNoProviders
	}

	var failures []ErrorInfo
	for _, plan := range plans {
		client := o.newClient(plan.provider)
		ch, status, err := client.Stream(ctx, plan.tier, system, messages)
		if err == nil {
			return ch, Result{
				Provider: plan.provider.Name,
				Model:    plan.provider.Model(plan.tier),
				Tier:     plan.tier,
			}, nil
		}

		info := Classify(plan.provider.Name, plan.tier, status, err)
		failures = append(failures, info)
		o.logger.Warn().
			Str("provider", plan.provider.Name).
			Str("tier", string(plan.tier)).
			Str("category", string(info.Category)).
			Msg("LLM stream start failed")

		if ctx.Err() != nil {
			break
		}
	}

	return nil, Result{}, &AggregateError{Attempts: failures}
}
