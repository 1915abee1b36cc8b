package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code so wrapped copies compare equal to the
// predefined values.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Err:     err,
	}
}

// Error codes
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeConflict           = "CONFLICT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeAccountDisabled    = "ACCOUNT_DISABLED"
	CodeEmailUnverified    = "EMAIL_UNVERIFIED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeEmailUndeliverable = "EMAIL_UNDELIVERABLE"
	CodeAssertionInvalid   = "EXTERNAL_ASSERTION_INVALID"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeUnavailable        = "SERVICE_UNAVAILABLE"
)

// Predefined domain errors
var (
	// Input errors
	ErrValidation         = NewDomainError(CodeValidation, "invalid input")
	ErrPasswordTooLong    = NewDomainError(CodeValidation, "password must be at most 72 bytes")
	ErrEmailUndeliverable = NewDomainError(CodeEmailUndeliverable, "email address cannot receive mail")

	// Account errors
	ErrEmailExists = NewDomainError(CodeEmailExists, "email already registered")
	ErrConflict    = NewDomainError(CodeConflict, "resource already exists")

	// Authentication errors
	ErrInvalidCredentials = NewDomainError(CodeInvalidCredentials, "invalid email or password")
	ErrUnauthorized       = NewDomainError(CodeUnauthorized, "unauthorized")
	ErrSessionExpired     = NewDomainError(CodeSessionExpired, "session expired, please log in again")
	ErrAccountDisabled    = NewDomainError(CodeAccountDisabled, "account is disabled")
	ErrEmailUnverified    = NewDomainError(CodeEmailUnverified, "please verify your email before logging in")
	ErrAssertionInvalid   = NewDomainError(CodeAssertionInvalid, "invalid identity assertion")

	// Verification token errors
	ErrInvalidToken = NewDomainError(CodeInvalidToken, "invalid verification token")
	ErrTokenExpired = NewDomainError(CodeTokenExpired, "verification token has expired")

	// Throttling
	ErrRateLimited = NewDomainError(CodeRateLimited, "too many requests")

	// System errors
	ErrInternal           = NewDomainError(CodeInternal, "internal server error")
	ErrServiceUnavailable = NewDomainError(CodeUnavailable, "service unavailable")
)

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// ToHTTPStatus maps domain errors to HTTP status codes
// This should only be used in the handler/presentation layer
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErrorToHTTPStatus(domainErr)
	}

	// Default to internal server error for unknown errors
	return http.StatusInternalServerError
}

func domainErrorToHTTPStatus(err *DomainError) int {
	switch err.Code {
	// 400 Bad Request
	case CodeValidation, CodeInvalidToken, CodeTokenExpired, CodeEmailUndeliverable:
		return http.StatusBadRequest

	// 401 Unauthorized
	case CodeUnauthorized, CodeInvalidCredentials, CodeSessionExpired, CodeAssertionInvalid:
		return http.StatusUnauthorized

	// 403 Forbidden
	case CodeAccountDisabled, CodeEmailUnverified:
		return http.StatusForbidden

	// 409 Conflict
	case CodeEmailExists, CodeConflict:
		return http.StatusConflict

	// 429 Too Many Requests
	case CodeRateLimited:
		return http.StatusTooManyRequests

	// 503 Service Unavailable
	case CodeUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetErrorMessage returns the client-safe message. Non-domain errors never
// leak their text.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}

	return ErrInternal.Message
}

// GetErrorCode returns the machine-readable code for err.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	return CodeInternal
}
