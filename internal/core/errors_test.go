// AngelaMos | 2026
// errors_test.go

package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindStorage, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
		{Kind(0), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.HTTPStatus(), tt.kind.String())
	}
}

func TestFromError_SentinelMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err      error
		wantKind Kind
		wantCode string
	}{
		{ErrNotFound, KindNotFound, "NOT_FOUND"},
		{ErrDuplicateKey, KindConflict, "DUPLICATE"},
		{ErrUnauthorized, KindUnauthorized, "UNAUTHORIZED"},
		{ErrForbidden, KindForbidden, "FORBIDDEN"},
		{ErrTokenExpired, KindUnauthorized, "TOKEN_EXPIRED"},
		{ErrTokenRevoked, KindUnauthorized, "TOKEN_REVOKED"},
		{ErrTokenInvalid, KindUnauthorized, "TOKEN_INVALID"},
		{ErrInvalidInput, KindValidation, "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		wrapped := fmt.Errorf("somewhere deep: %w", tt.err)
		appErr := FromError(wrapped)
		assert.Equal(t, tt.wantKind, appErr.Kind, tt.wantCode)
		assert.Equal(t, tt.wantCode, appErr.Code)
	}
}

func TestFromError_UnknownBecomesInternal(t *testing.T) {
	t.Parallel()

	appErr := FromError(errors.New("pq: connection refused"))
	assert.Equal(t, KindInternal, appErr.Kind)
	assert.Equal(t, "internal server error", appErr.Message)
}

func TestFromError_PreservesAppError(t *testing.T) {
	t.Parallel()

	original := ValidationError("email is required", nil)
	wrapped := fmt.Errorf("handler: %w", original)

	appErr := FromError(wrapped)
	assert.Same(t, original, appErr)
}

func TestAppError_UnwrapChain(t *testing.T) {
	t.Parallel()

	appErr := TokenRevokedError()
	require.ErrorIs(t, appErr, ErrTokenRevoked)

	cause := errors.New("row gone")
	withCause := NewAppError(KindStorage, "STORAGE", "query failed").
		WithCause(cause)
	require.ErrorIs(t, withCause, cause)
	assert.Contains(t, withCause.Error(), "row gone")
}

func TestTokenInvalidError_UniformMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		"invalid or expired refresh token",
		TokenInvalidError().Message,
	)
}
