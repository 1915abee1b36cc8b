package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", ErrValidation, http.StatusBadRequest},
		{"invalid token", ErrInvalidToken, http.StatusBadRequest},
		{"token expired", ErrTokenExpired, http.StatusBadRequest},
		{"undeliverable", ErrEmailUndeliverable, http.StatusBadRequest},
		{"credentials", ErrInvalidCredentials, http.StatusUnauthorized},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"session expired", ErrSessionExpired, http.StatusUnauthorized},
		{"assertion", ErrAssertionInvalid, http.StatusUnauthorized},
		{"disabled", ErrAccountDisabled, http.StatusForbidden},
		{"unverified", ErrEmailUnverified, http.StatusForbidden},
		{"email exists", ErrEmailExists, http.StatusConflict},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"wrapped", fmt.Errorf("outer: %w", WrapError(ErrConflict, errors.New("dup"))), http.StatusConflict},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.err))
		})
	}
}

func TestWrapErrorMatchesByCode(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := WrapError(ErrInternal, cause)

	assert.True(t, errors.Is(err, ErrInternal))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, "internal server error: pq: connection refused", err.Error())
}

func TestGetErrorMessageHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "", GetErrorMessage(nil))
	assert.Equal(t, "invalid email or password", GetErrorMessage(ErrInvalidCredentials))
	assert.Equal(t, "internal server error", GetErrorMessage(errors.New("select * from accounts failed")))
	assert.Equal(t, CodeInternal, GetErrorCode(errors.New("x")))
	assert.Equal(t, CodeTokenExpired, GetErrorCode(ErrTokenExpired))
}
