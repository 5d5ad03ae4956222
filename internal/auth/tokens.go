// AngelaMos | 2026
// tokens.go

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/angelamos/monostack/internal/config"
	"github.com/angelamos/monostack/internal/core"
	"github.com/angelamos/monostack/internal/middleware"
)

const (
	DefaultAccessExpiry  = 7 * 24 * time.Hour
	DefaultRefreshExpiry = 30 * 24 * time.Hour
)

var expiryPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseExpiry parses the compact lifetime grammar "<int><s|m|h|d>". An
// unrecognized value returns the fallback with ok=false; the fallback is a
// policy default, not a parse error.
func ParseExpiry(s string, fallback time.Duration) (time.Duration, bool) {
	m := expiryPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return fallback, false
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return fallback, false
	}

	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}

	return time.Duration(n) * unit, true
}

// TokenIssuer mints HS256-signed access tokens and opaque refresh tokens,
// persisting each refresh record through the token store.
type TokenIssuer struct {
	key           jwk.Key
	issuer        string
	audience      string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	store         Repository
}

func NewTokenIssuer(
	cfg config.JWTConfig,
	store Repository,
	logger *slog.Logger,
) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	key, err := jwk.Import([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	accessExpiry, ok := ParseExpiry(cfg.AccessExpiry, DefaultAccessExpiry)
	if !ok && logger != nil {
		logger.Warn("unparseable access token lifetime, using default",
			"value", cfg.AccessExpiry,
			"default", DefaultAccessExpiry.String(),
		)
	}

	refreshExpiry, ok := ParseExpiry(cfg.RefreshExpiry, DefaultRefreshExpiry)
	if !ok && logger != nil {
		logger.Warn("unparseable refresh token lifetime, using default",
			"value", cfg.RefreshExpiry,
			"default", DefaultRefreshExpiry.String(),
		)
	}

	return &TokenIssuer{
		key:           key,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		store:         store,
	}, nil
}

func (i *TokenIssuer) AccessExpiry() time.Duration {
	return i.accessExpiry
}

// IssueAccessToken signs a short-lived bearer token for the given identity.
// It carries subject, email, and role; verification happens purely by
// signature, never by storage lookup.
func (i *TokenIssuer) IssueAccessToken(
	userID, email, role string,
) (string, error) {
	now := time.Now()

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(i.issuer).
		Audience([]string{i.audience}).
		Subject(userID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(i.accessExpiry)).
		Claim("email", email).
		Claim("role", role).
		Claim("type", "access").
		Build()
	if err != nil {
		return "", fmt.Errorf("build access token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), i.key))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return string(signed), nil
}

// IssueRefreshToken generates a fresh opaque value, persists its record with
// expiry now+refreshExpiry, and returns both the record and the plaintext
// value. The plaintext exists only in the return value.
func (i *TokenIssuer) IssueRefreshToken(
	ctx context.Context,
	userID string,
	meta SessionMeta,
) (*RefreshToken, string, error) {
	value, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, "", fmt.Errorf("issue refresh token: %w", err)
	}

	record := &RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: core.HashToken(value),
		ExpiresAt: time.Now().Add(i.refreshExpiry),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}

	if err := i.store.Create(ctx, record); err != nil {
		return nil, "", fmt.Errorf("store refresh token: %w", err)
	}

	return record, value, nil
}

// IssueTokenPair composes an access token and a freshly persisted refresh
// token for one identity.
func (i *TokenIssuer) IssueTokenPair(
	ctx context.Context,
	user *UserInfo,
	meta SessionMeta,
) (*TokenResponse, error) {
	accessToken, err := i.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	_, refreshValue, err := i.IssueRefreshToken(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		TokenType:    "Bearer",
		ExpiresIn:    int(i.accessExpiry / time.Second),
		ExpiresAt:    now.Add(i.accessExpiry),
	}, nil
}

// VerifyAccessToken validates signature, issuer, audience, lifetime, and the
// token type claim. Used by the HTTP authentication middleware.
func (i *TokenIssuer) VerifyAccessToken(
	ctx context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), i.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
	)
	if err != nil {
		if isExpiryValidationError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil || tokenType != "access" {
		return nil, fmt.Errorf(
			"verify token: wrong token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	var email string
	if err := token.Get("email", &email); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing email claim: %w",
			core.ErrTokenInvalid,
		)
	}

	var role string
	if err := token.Get("role", &role); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing role claim: %w",
			core.ErrTokenInvalid,
		)
	}

	jti, _ := token.JwtID()
	expiresAt, _ := token.Expiration()

	return &middleware.AccessTokenClaims{
		UserID:    subject,
		Email:     email,
		Role:      role,
		TokenID:   jti,
		ExpiresAt: expiresAt,
	}, nil
}

func isExpiryValidationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "exp") && strings.Contains(msg, "not satisfied")
}
