package ai

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfiguration means the gateway credential is missing.
	ErrConfiguration = errors.New("ai gateway credential not configured")
	// ErrRateLimited maps an upstream 429.
	ErrRateLimited = errors.New("ai gateway rate limited")
	// ErrQuotaExceeded maps an upstream 402.
	ErrQuotaExceeded = errors.New("ai gateway quota exceeded")
	// ErrUpstream covers every other upstream or transport failure.
	ErrUpstream = errors.New("ai gateway upstream error")
	// ErrStreamIdle is returned by Pipe when the upstream stops sending.
	ErrStreamIdle = errors.New("ai gateway stream idle timeout")
)

const maxLoggedBodyBytes = 700

// GatewayHTTPError is a non-2xx upstream response. Message holds the
// (truncated) upstream body and must not be shown to callers.
type GatewayHTTPError struct {
	StatusCode int
	Message    string
}

func (e *GatewayHTTPError) Error() string {
	return fmt.Sprintf("ai gateway status %d: %s", e.StatusCode, e.Message)
}

func (e *GatewayHTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrQuotaExceeded
	default:
		return ErrUpstream
	}
}

func truncateBody(body []byte) string {
	if len(body) > maxLoggedBodyBytes {
		body = body[:maxLoggedBodyBytes]
	}
	return string(body)
}
