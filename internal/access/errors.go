package access

import (
	"fmt"
	"net/http"
	"strings"
)

// AuthErrorCode classifies authentication failures.
type AuthErrorCode string

const (
	AuthErrorCodeNoCredentials     AuthErrorCode = "no_credentials"
	AuthErrorCodeInvalidCredential AuthErrorCode = "invalid_credential"
	AuthErrorCodeNotHandled        AuthErrorCode = "not_handled"
	AuthErrorCodeInternal          AuthErrorCode = "internal_error"
)

// AuthError carries authentication failure details and HTTP status.
type AuthError struct {
	Code       AuthErrorCode
	Message    string
	StatusCode int
	Cause      error
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = "authentication error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", message, e.Cause)
	}
	return message
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// HTTPStatusCode returns a safe fallback for missing status codes.
func (e *AuthError) HTTPStatusCode() int {
	if e == nil || e.StatusCode <= 0 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

func NewNoCredentialsError() *AuthError {
	return &AuthError{Code: AuthErrorCodeNoCredentials, Message: "Missing API key", StatusCode: http.StatusUnauthorized}
}

func NewInvalidCredentialError() *AuthError {
	return &AuthError{Code: AuthErrorCodeInvalidCredential, Message: "Invalid API key", StatusCode: http.StatusUnauthorized}
}

func NewNotHandledError() *AuthError {
	return &AuthError{Code: AuthErrorCodeNotHandled, Message: "authentication provider did not handle request"}
}

func NewInternalAuthError(message string, cause error) *AuthError {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "Authentication service error"
	}
	return &AuthError{Code: AuthErrorCodeInternal, Message: message, StatusCode: http.StatusInternalServerError, Cause: cause}
}

func IsAuthErrorCode(authErr *AuthError, code AuthErrorCode) bool {
	return authErr != nil && authErr.Code == code
}
