package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/startfranchise/chat-engine/internal/routing"
)

// Category buckets a provider failure so the orchestrator knows whether
// retrying, switching tier, or switching provider is the right response.
type Category string

const (
	CategoryRateLimit Category = "rate_limit"
	CategoryAuth      Category = "auth"
	CategoryModel     Category = "model"
	CategoryNetwork   Category = "network"
	CategoryTimeout   Category = "timeout"
	CategoryServer    Category = "server"
	CategoryUnknown   Category = "unknown"
)

// ErrorInfo is one classified attempt failure.
type ErrorInfo struct {
	Provider  string
	Tier      routing.Tier
	Message   string
	Status    int
	Category  Category
	Retryable bool
}

// String renders the compact provider:tier:category[:status] form used in
// logs and aggregate errors.
func (e ErrorInfo) String() string {
	s := fmt.Sprintf("%s:%s:%s", e.Provider, e.Tier, e.Category)
	if e.Status > 0 {
		s += fmt.Sprintf(":%d", e.Status)
	}
	return s
}

// Classify maps a raw attempt failure onto a category. Status takes
// precedence; body and error wording break ties for providers that hide
// real failures behind 200s or generic messages.
func Classify(p string, tier routing.Tier, status int, err error) ErrorInfo {
	info := ErrorInfo{
		Provider: p,
		Tier:     tier,
		Status:   status,
		Category: CategoryUnknown,
	}
	if err != nil {
		info.Message = err.Error()
	}
	lower := strings.ToLower(info.Message)

	switch {
	case status == 401 || status == 403:
		info.Category = CategoryAuth
	case status == 429 || strings.Contains(lower, "quota") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit"):
		info.Category = CategoryRateLimit
	case status == 404 || strings.Contains(lower, "model not found") || strings.Contains(lower, "model_not_found") || strings.Contains(lower, "does not exist"):
		info.Category = CategoryModel
	case isTimeout(err, lower):
		info.Category = CategoryTimeout
	case isNetwork(err, lower):
		info.Category = CategoryNetwork
	case status >= 500:
		info.Category = CategoryServer
	}

	switch info.Category {
	case CategoryServer, CategoryNetwork, CategoryTimeout:
		info.Retryable = true
	}

	return info
}

func isTimeout(err error, lower string) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") || strings.Contains(lower, "deadline exceeded")
}

func isNetwork(err error, lower string) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "econnreset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "broken pipe")
}
