// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelamos/monostack/internal/core"
	"github.com/angelamos/monostack/internal/middleware"
)

const denylistPrefix = "denylist:"

// Service drives the session lifecycle: establishing sessions at login and
// registration, rotating refresh tokens, and terminating sessions one at a
// time or all at once. It owns no token state itself; every decision reads
// through the verifier, the issuer, and the token store.
type Service struct {
	verifier *CredentialVerifier
	issuer   *TokenIssuer
	tokens   Repository
	users    UserProvider
	denylist redis.Cmdable
	logger   *slog.Logger
}

func NewService(
	verifier *CredentialVerifier,
	issuer *TokenIssuer,
	tokens Repository,
	users UserProvider,
	denylist redis.Cmdable,
	logger *slog.Logger,
) *Service {
	return &Service{
		verifier: verifier,
		issuer:   issuer,
		tokens:   tokens,
		users:    users,
		denylist: denylist,
		logger:   logger,
	}
}

// Login verifies the credentials and, on success, establishes a new session
// by issuing a token pair. A stale password hash is transparently upgraded;
// failure to persist the upgrade is logged and never fails the login.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	meta SessionMeta,
) (*AuthResponse, error) {
	user, rehash, err := s.verifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	if rehash != "" {
		if err := s.users.UpdatePassword(ctx, user.ID, rehash); err != nil {
			s.logger.Warn("failed to persist upgraded password hash",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	tokens, err := s.issuer.IssueTokenPair(ctx, user, meta)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return &AuthResponse{
		User:   toUserResponse(user),
		Tokens: *tokens,
	}, nil
}

// Register creates the account and immediately establishes a session for it.
func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	meta SessionMeta,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(
		ctx,
		req.Email,
		passwordHash,
		req.FirstName,
		req.LastName,
	)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, fmt.Errorf("register: %w", ErrEmailExists)
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	tokens, err := s.issuer.IssueTokenPair(ctx, user, meta)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return &AuthResponse{
		User:   toUserResponse(user),
		Tokens: *tokens,
	}, nil
}

// Refresh redeems a refresh token for a new token pair bound to the same
// identity, revoking the presented token in the same motion. A value that is
// unknown, expired, revoked, or already claimed by a concurrent redemption
// fails with a distinct internal sentinel; the transport layer collapses
// them all into one uniform response.
func (s *Service) Refresh(
	ctx context.Context,
	refreshValue string,
	meta SessionMeta,
) (*AuthResponse, error) {
	record, err := s.tokens.FindByValue(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	// Constant-time re-check of the presented value against the stored
	// digest; the lookup alone does not prove possession.
	if !core.CompareTokenHash(refreshValue, record.TokenHash) {
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
	}

	if record.IsRevoked() {
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	}
	if record.IsExpired() {
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	// Claim the active-to-revoked transition before issuing anything.
	// Under concurrent redemption of the same value exactly one caller
	// wins the claim; the rest land here with claimed=false.
	claimed, err := s.tokens.RevokeActive(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh: revoke presented token: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("refresh: load token owner: %w", err)
	}

	tokens, err := s.issuer.IssueTokenPair(ctx, user, meta)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	return &AuthResponse{
		User:   toUserResponse(user),
		Tokens: *tokens,
	}, nil
}

// Logout revokes the presented refresh token. Unknown, expired, and
// already-revoked values succeed silently; logout is idempotent and leaks
// nothing about token state.
func (s *Service) Logout(ctx context.Context, refreshValue string) error {
	record, err := s.tokens.FindByValue(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("logout: %w", err)
	}

	if err := s.tokens.Revoke(ctx, record.ID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

// RevokeAllUserTokens terminates every active session the user has. Used on
// explicit logout-everywhere and after password changes.
func (s *Service) RevokeAllUserTokens(
	ctx context.Context,
	userID string,
) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	s.logger.Info("revoked all refresh tokens", "user_id", userID)
	return nil
}

// GetActiveSessions lists the user's currently redeemable refresh tokens.
func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) (*SessionsResponse, error) {
	records, err := s.tokens.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(records))
	for _, r := range records {
		sessions = append(sessions, SessionInfo{
			ID:        r.ID,
			UserAgent: r.UserAgent,
			IPAddress: r.IPAddress,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
		})
	}

	return &SessionsResponse{Sessions: sessions}, nil
}

// RevokeSession revokes a single session by record ID. Sessions belonging to
// other users are reported as not found rather than forbidden, so session
// IDs cannot be probed across accounts.
func (s *Service) RevokeSession(
	ctx context.Context,
	userID, sessionID string,
) error {
	record, err := s.tokens.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("revoke session: %w", core.ErrNotFound)
		}
		return fmt.Errorf("revoke session: %w", err)
	}

	if record.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrNotFound)
	}

	if err := s.tokens.Revoke(ctx, record.ID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

// GetMe returns the authenticated user's own profile.
func (s *Service) GetMe(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get me: %w", err)
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// ChangePassword verifies the current password, stores the new hash, and
// terminates every session so stolen refresh tokens die with the old
// password.
func (s *Service) ChangePassword(
	ctx context.Context,
	userID string,
	req ChangePasswordRequest,
) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	valid, err := core.VerifyPassword(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !valid {
		return fmt.Errorf("change password: %w", ErrInvalidCredentials)
	}

	newHash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return s.RevokeAllUserTokens(ctx, userID)
}

// DenyAccessToken places the token's ID on the denylist until its natural
// expiry, so a signed access token can be cut off before it expires.
func (s *Service) DenyAccessToken(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
) error {
	if s.denylist == nil || claims.TokenID == "" {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	key := denylistPrefix + claims.TokenID
	if err := s.denylist.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("deny access token: %w", err)
	}

	return nil
}

// IsAccessTokenDenied reports whether the token ID is on the denylist. A
// denylist backend failure fails open and is logged; refusing every request
// during a cache outage is worse than honoring a recently revoked token.
func (s *Service) IsAccessTokenDenied(
	ctx context.Context,
	tokenID string,
) bool {
	if s.denylist == nil || tokenID == "" {
		return false
	}

	n, err := s.denylist.Exists(ctx, denylistPrefix+tokenID).Result()
	if err != nil {
		s.logger.Warn("denylist check failed", "error", err)
		return false
	}

	return n > 0
}
