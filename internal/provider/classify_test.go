package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/startfranchise/chat-engine/internal/routing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		err       error
		category  Category
		retryable bool
	}{
		{"unauthorized", 401, errors.New("api returned status 401: invalid key"), CategoryAuth, false},
		{"forbidden", 403, errors.New("api returned status 403"), CategoryAuth, false},
		{"rate limited status", 429, errors.New("api returned status 429"), CategoryRateLimit, false},
		{"quota wording", 200, errors.New("api error: quota exceeded for this project"), CategoryRateLimit, false},
		{"model not found status", 404, errors.New("api returned status 404"), CategoryModel, false},
		{"model not found wording", 400, errors.New("api error: model not found: gemini-9000"), CategoryModel, false},
		{"deadline", 0, context.DeadlineExceeded, CategoryTimeout, true},
		{"timeout wording", 0, errors.New("request timed out after 60s"), CategoryTimeout, true},
		{"connection reset", 0, errors.New("read tcp: connection reset by peer"), CategoryNetwork, true},
		{"no such host", 0, errors.New("dial tcp: lookup api.example: no such host"), CategoryNetwork, true},
		{"server error", 500, errors.New("api returned status 500"), CategoryServer, true},
		{"bad gateway", 502, errors.New("api returned status 502"), CategoryServer, true},
		{"unknown", 400, errors.New("api returned status 400: bad request"), CategoryUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Classify("groq", routing.TierFlash, tt.status, tt.err)
			assert.Equal(t, tt.category, info.Category)
			assert.Equal(t, tt.retryable, info.Retryable)
			assert.Equal(t, "groq", info.Provider)
			assert.Equal(t, routing.TierFlash, info.Tier)
		})
	}
}

func TestErrorInfo_String(t *testing.T) {
	withStatus := ErrorInfo{Provider: "google", Tier: routing.TierPro, Category: CategoryRateLimit, Status: 429}
	assert.Equal(t, "google:pro:rate_limit:429", withStatus.String())

	noStatus := ErrorInfo{Provider: "local", Tier: routing.TierFlash, Category: CategoryNetwork}
	assert.Equal(t, "local:flash:network", noStatus.String())
}

func TestAggregateError_Format(t *testing.T) {
	err := &AggregateError{Attempts: []ErrorInfo{
		{Provider: "google", Tier: routing.TierPro, Category: CategoryRateLimit, Status: 429},
		{Provider: "groq", Tier: routing.TierFlash, Category: CategoryServer, Status: 500},
	}}

	assert.Equal(t, "all providers failed: google:pro:rate_limit:429; groq:flash:server:500", err.Error())
	assert.Len(t, err.Errors(), 2)
}

func TestClassify_MessagePassthrough(t *testing.T) {
	info := Classify("openrouter", routing.TierFlash, 503, fmt.Errorf("api returned status 503: overloaded"))
	assert.Equal(t, "api returned status 503: overloaded", info.Message)
	assert.Equal(t, CategoryServer, info.Category)
}
