package inference

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey      = errors.New("inference: missing API key")
	ErrNoImage       = errors.New("inference: vision request without an image")
	ErrEmptyResponse = errors.New("inference: model returned no text")

	// ErrProviderUnavailable means the responder has no model to ask.
	ErrProviderUnavailable = errors.New("inference: no model configured")
)

// APIError is a non-2xx answer from a model endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string // provider error code or status, e.g. RESOURCE_EXHAUSTED
	Message    string
}

func (e *APIError) Error() string {
	status := fmt.Sprint(e.StatusCode)
	if e.Code != "" {
		status += " " + e.Code
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, status, e.Message)
}

func (e *APIError) IsRateLimited() bool  { return e.StatusCode == http.StatusTooManyRequests }
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

// IsRetryable reports whether the same request may succeed later.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.StatusCode >= http.StatusInternalServerError
}

// ProviderError tags a transport or decoding failure with the provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string { return e.Provider + ": " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError tags err with provider. A nil err stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
