package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ProviderError is returned when a provider answers with a failure status.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// providerError builds a ProviderError from a non-200 response body.
func providerError(provider string, code int, body []byte) *ProviderError {
	msg := strings.TrimSpace(string(body))
	return &ProviderError{Provider: provider, Message: truncate(msg, maxErrorBody), Code: code}
}

const maxErrorBody = 512

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// IsTransient reports whether err looks like a temporary upstream condition:
// rate limiting, overload or unavailability. Such failures are worth handing
// to another provider or answering with a fallback notice.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case http.StatusTooManyRequests, 529:
			return true
		}
		if provErr.Code >= 500 {
			return true
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "timeout")
}
