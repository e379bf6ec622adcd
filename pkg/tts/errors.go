package tts

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNoAPIKey   = errors.New("tts: API key required")
	ErrNoVoiceID  = errors.New("tts: voice ID required")
	ErrEmptyText  = errors.New("tts: empty text")
	ErrEmptyAudio = errors.New("tts: empty audio")
)

// APIError is a non-200 answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	status := fmt.Sprint(e.StatusCode)
	if e.Code != "" {
		status += " " + e.Code
	}
	return fmt.Sprintf("tts %s: %s: %s", e.Provider, status, e.Message)
}

func (e *APIError) IsRateLimited() bool  { return e.StatusCode == http.StatusTooManyRequests }
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

// IsRetryable is true for server errors and plain rate limits. A 429 that
// mentions a quota stays exhausted until the account is topped up.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode >= 500 {
		return true
	}
	return e.IsRateLimited() && !mentionsQuota(e.Message)
}

// ProviderError tags err with the provider that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string { return "tts " + e.Provider + ": " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// IsQuotaError separates failures tied to one account (spent quota, bad
// key) from ones a backup provider would hit too.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.IsUnauthorized() || apiErr.IsRateLimited()) {
		return true
	}
	return mentionsQuota(err.Error())
}

func mentionsQuota(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range [...]string{"quota", "limit", "credits", "exceeded", "401", "unauthorized"} {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
