// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/monostack/internal/core"
)

type fakeVerifier struct {
	claims *AccessTokenClaims
	err    error
}

func (f *fakeVerifier) VerifyAccessToken(
	_ context.Context,
	_ string,
) (*AccessTokenClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

type fakeDenyChecker struct {
	denied map[string]bool
}

func (f *fakeDenyChecker) IsAccessTokenDenied(
	_ context.Context,
	tokenID string,
) bool {
	return f.denied[tokenID]
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", ""},
		{"bearer token", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"mixed case scheme", "BeArEr abc123", "abc123"},
		{"wrong scheme", "Basic abc123", ""},
		{"scheme only", "Bearer", ""},
		{"trailing whitespace trimmed", "Bearer abc123  ", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, ExtractToken(r))
		})
	}
}

func authedRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()

	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.False(t, envelope.Success)
	return envelope.Error.Code
}

func TestAuthenticator_Success(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{claims: &AccessTokenClaims{
		UserID:    "u1",
		Email:     "a@b.com",
		Role:      "admin",
		TokenID:   "jti-1",
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}}

	var gotUserID, gotRole string
	var gotClaims *AccessTokenClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotRole = GetUserRole(r.Context())
		gotClaims = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	Authenticator(verifier, nil)(next).ServeHTTP(rec, authedRequest("sometoken"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", gotUserID)
	assert.Equal(t, "admin", gotRole)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "jti-1", gotClaims.TokenID)
}

func TestAuthenticator_MissingToken(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{claims: &AccessTokenClaims{UserID: "u1"}}
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a token")
	})

	rec := httptest.NewRecorder()
	Authenticator(verifier, nil)(next).ServeHTTP(rec, authedRequest(""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec.Body.Bytes()))
}

func TestAuthenticator_VerifierErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"expired", core.ErrTokenExpired, "TOKEN_EXPIRED"},
		{"revoked", core.ErrTokenRevoked, "TOKEN_REVOKED"},
		{"garbage", assert.AnError, "TOKEN_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			verifier := &fakeVerifier{err: tt.err}
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not run on verification failure")
			})

			rec := httptest.NewRecorder()
			Authenticator(verifier, nil)(next).ServeHTTP(rec, authedRequest("x"))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec.Body.Bytes()))
		})
	}
}

func TestAuthenticator_DeniedToken(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{claims: &AccessTokenClaims{
		UserID:  "u1",
		TokenID: "jti-denied",
	}}
	denied := &fakeDenyChecker{denied: map[string]bool{"jti-denied": true}}

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run for a denylisted token")
	})

	rec := httptest.NewRecorder()
	Authenticator(verifier, denied)(next).ServeHTTP(rec, authedRequest("x"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(t, rec.Body.Bytes()))
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	handler := RequireRole("admin")(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	))

	t.Run("no role in context", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(r.Context(), UserRoleKey, "user")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r.WithContext(ctx))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("matching role", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(r.Context(), UserRoleKey, "admin")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r.WithContext(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestContextHelpers_EmptyContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, GetUserID(ctx))
	assert.Empty(t, GetUserRole(ctx))
	assert.Nil(t, GetClaims(ctx))
	assert.False(t, IsAuthenticated(ctx))
	assert.False(t, IsAdmin(ctx))
}
