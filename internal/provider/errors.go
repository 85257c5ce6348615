package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies upstream failures. Only unavailable, timeout and
// rate-limit errors are retryable; the rest abort the request immediately.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication_error"
	KindRateLimit      ErrorKind = "rate_limit_error"
	KindUnavailable    ErrorKind = "provider_unavailable"
	KindTimeout        ErrorKind = "timeout_error"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindParse          ErrorKind = "response_parsing_error"
)

// Error carries a classified upstream failure.
type Error struct {
	Provider Name
	Kind     ErrorKind
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, message, e.Cause)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the failure may clear on a retry or another
// provider in the fallback chain.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindUnavailable, KindTimeout, KindRateLimit:
		return true
	}
	return false
}

// HTTPStatus maps the error kind to a downstream response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusBadGateway
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindParse:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

// IsRetryable reports whether err is a retryable provider error.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// AsError extracts a provider error from an error chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	ok := errors.As(err, &pe)
	return pe, ok
}

// classifyHTTPError maps an upstream status code to the error taxonomy.
func classifyHTTPError(name Name, status int, body string) *Error {
	detail := strings.TrimSpace(body)
	if len(detail) > 200 {
		detail = detail[:200]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Provider: name, Kind: KindAuthentication, Message: fmt.Sprintf("upstream rejected credentials (%d): %s", status, detail)}
	case status == http.StatusTooManyRequests:
		return &Error{Provider: name, Kind: KindRateLimit, Message: fmt.Sprintf("upstream rate limit exceeded: %s", detail)}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &Error{Provider: name, Kind: KindInvalidRequest, Message: fmt.Sprintf("upstream rejected request (%d): %s", status, detail)}
	case status >= 500:
		return &Error{Provider: name, Kind: KindUnavailable, Message: fmt.Sprintf("upstream unavailable (%d): %s", status, detail)}
	default:
		return &Error{Provider: name, Kind: KindUnavailable, Message: fmt.Sprintf("unexpected upstream status %d: %s", status, detail)}
	}
}

// classifyTransportError maps a transport failure (timeout, connection reset)
// to the error taxonomy.
func classifyTransportError(name Name, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Provider: name, Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Provider: name, Kind: KindTimeout, Message: "request canceled", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Provider: name, Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	return &Error{Provider: name, Kind: KindUnavailable, Message: "transport failure", Cause: err}
}
