package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startfranchise/chat-engine/internal/chat"
	"github.com/startfranchise/chat-engine/internal/observability"
	"github.com/startfranchise/chat-engine/internal/routing"
)

// attemptRecord is one generation attempt observed by the fake client.
type attemptRecord struct {
	provider string
	tier     routing.Tier
}

// scriptedClient fails or succeeds per provider+tier according to a script.
type scriptedClient struct {
	provider Provider
	script   map[string][]attemptOutcome
	calls    *[]attemptRecord
}

type attemptOutcome struct {
	text   string
	status int
	err    error
}

func (c *scriptedClient) key(tier routing.Tier) string {
	return c.provider.Name + ":" + string(tier)
}

func (c *scriptedClient) Generate(_ context.Context, tier routing.Tier, _ string, _ []chat.Message) (string, int, error) {
	*c.calls = append(*c.calls, attemptRecord{provider: c.provider.Name, tier: tier})

	outcomes := c.script[c.key(tier)]
	if len(outcomes) == 0 {
		return "", 0, errors.New("no scripted outcome")
	}
	out := outcomes[0]
	if len(outcomes) > 1 {
		c.script[c.key(tier)] = outcomes[1:]
	}
	return out.text, out.status, out.err
}

func (c *scriptedClient) Stream(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (<-chan Chunk, int, error) {
	text, status, err := c.Generate(ctx, tier, system, messages)
	if err != nil {
		return nil, status, err
	}
	ch := make(chan Chunk, 1)
	ch <- Chunk{Text: text}
	close(ch)
	return ch, status, nil
}

// newScriptedOrchestrator builds an orchestrator whose clients replay the
// script and whose backoff sleeps are recorded instead of slept.
func newScriptedOrchestrator(providers []Provider, script map[string][]attemptOutcome) (*Orchestrator, *[]attemptRecord, *[]time.Duration) {
	calls := &[]attemptRecord{}
	sleeps := &[]time.Duration{}

	o := NewOrchestrator(providers, time.Second, observability.Nop())
	o.newClient = func(p Provider) attemptClient {
		return &scriptedClient{provider: p, script: script, calls: calls}
	}
	o.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return o, calls, sleeps
}

func testPool() []Provider {
	return []Provider{
		{Name: NameGoogle, FlashModel: "g-flash", ProModel: "g-pro"},
		{Name: NameGroq, FlashModel: "llama"},
	}
}

var testMessages = []chat.Message{{Role: "user", Content: "halo"}}

func TestOrchestrator_FirstAttemptSucceeds(t *testing.T) {
	o, calls, sleeps := newScriptedOrchestrator(testPool(), map[string][]attemptOutcome{
		"google:flash": {{text: "jawaban", status: 200}},
	})

	result, err := o.Generate(context.Background(), routing.TierFlash, "", testMessages)
	require.NoError(t, err)
	assert.Equal(t, "jawaban", result.Text)
	assert.Equal(t, NameGoogle, result.Provider)
	assert.Equal(t, "g-flash", result.Model)
	assert.Len(t, *calls, 1)
	assert.Empty(t, *sleeps)
}

func TestOrchestrator_NoProviders(t *testing.T) {
	o, _, _ := newScriptedOrchestrator(nil, nil)

	_, err := o.Generate(context.Background(), routing.TierFlash, "", testMessages)
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestOrchestrator_AuthErrorNotRetried(t *testing.T) {
	o, calls, sleeps := newScriptedOrchestrator(testPool(), map[string][]attemptOutcome{
		"google:flash": {{status: 401, err: errors.New("api returned status 401: bad key")}},
		"groq:flash":   {{text: "dari groq", status: 200}},
	})

	result, err := o.Generate(context.Background(), routing.TierFlash, "", testMessages)
	require.NoError(t, err)
	assert.Equal(t, NameGroq, result.Provider)
	// One google attempt, no retries, then groq.
	assert.Equal(t, []attemptRecord{
		{provider: NameGoogle, tier: routing.TierFlash},
		{provider: NameGroq, tier: routing.TierFlash},
	}, *calls)
	assert.Empty(t, *sleeps)
}

func TestOrchestrator_ServerErrorRetriedWithBackoff(t *testing.T) {
	o, calls, sleeps := newScriptedOrchestrator(testPool(), map[string][]attemptOutcome{
		"google:flash": {
			{status: 500, err: errors.New("api returned status 500")},
			{status: 502, err: errors.New("api returned status 502")},
			{text: "akhirnya", status: 200},
		},
	})

	result, err := o.Generate(context.Background(), routing.TierFlash, "", testMessages)
	require.NoError(t, err)
	assert.Equal(t, "akhirnya", result.Text)
	assert.Len(t, *calls, 3)
	assert.Equal(t, []time.Duration{300 * time.Millisecond, 800 * time.Millisecond}, *sleeps)
}

func TestOrchestrator_ProModelErrorFallsToFlashSameProvider(t *testing.T) {
	o, calls, _ := newScriptedOrchestrator(testPool(), map[string][]attemptOutcome{
		"google:pro":   {{status: 404, err: errors.New("api error: model not found")}},
		"google:flash": {{text: "flash jawab", status: 200}},
	})

	result, err := o.Generate(context.Background(), routing.TierPro, "", testMessages)
	require.NoError(t, err)
	assert.Equal(t, NameGoogle, result.Provider)
	assert.Equal(t, "g-flash", result.Model)
	assert.Equal(t, routing.TierFlash, result.Tier)
	assert.Equal(t, []attemptRecord{
		{provider: NameGoogle, tier: routing.TierPro},
		{provider: NameGoogle, tier: routing.TierFlash},
	}, *calls)
}

func TestOrchestrator_EmptyTextIsFailure(t *testing.T) {
	o, calls, _ := newScriptedOrchestrator(testPool(), map[string][]attemptOutcome{
		"google:flash": {{text: "   ", status: 200}},
		"groq:flash":   {{text: "isi beneran", status: 200}},
	})

	result, err := o.Generate(context.Background(), routing.TierFlash, "", testMessages)
	require.NoError(t, err)
	assert.Equal(t, NameGroq, result.Provider)
	assert.Len(t, *calls, 2)
}

func TestOrchestrator_AllFailAggregates(t *testing.T) {
	o, _, _ := newScriptedOrchestrator(testPool(), map[string][]attemptOutcome{
		"google:flash": {{status: 429, err: errors.New("api returned status 429")}},
		"groq:flash":   {{status: 401, err: errors.New("api returned status 401")}},
	})

	_, err := o.Generate(context.Background(), routing.TierFlash, "", testMessages)
	require.Error(t, err)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errors(), 2)
	assert.Contains(t, err.Error(), "google:flash:rate_limit:429")
	assert.Contains(t, err.Error(), "groq:flash:auth:401")
}

func TestOrchestrator_RotationSpreadsLoad(t *testing.T) {
	script := map[string][]attemptOutcome{
		"google:flash": {{text: "a", status: 200}},
		"groq:flash":   {{text: "b", status: 200}},
	}
	// Keep the script replaying forever by never consuming the single entry.
	o, calls, _ := newScriptedOrchestrator(testPool(), script)

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		result, err := o.Generate(context.Background(), routing.TierFlash, "", testMessages)
		require.NoError(t, err)
		seen[result.Provider] = true
	}

	assert.True(t, seen[NameGoogle])
	assert.True(t, seen[NameGroq])
	assert.Len(t, *calls, 4)
}

func TestOrchestrator_GenerateStream(t *testing.T) {
	o, _, _ := newScriptedOrchestrator(testPool(), map[string][]attemptOutcome{
		"google:flash": {{status: 500, err: errors.New("api returned status 500")}},
		"groq:flash":   {{text: "streamed", status: 200}},
	})

	chunks, result, err := o.GenerateStream(context.Background(), routing.TierFlash, "", testMessages)
	require.NoError(t, err)
	assert.Equal(t, NameGroq, result.Provider)

	var full string
	for c := range chunks {
		require.NoError(t, c.Err)
		full += c.Text
	}
	assert.Equal(t, "streamed", full)
}
