// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/angelamos/monostack/internal/core"
)

// Repository is the refresh token store. Records are only ever inserted or
// revoked; normal operation never deletes them, so redeemed and expired
// tokens stay behind for audit and replay detection.
type Repository interface {
	// Create inserts the record. A token hash collision surfaces as
	// core.ErrDuplicateKey rather than overwriting the existing row.
	Create(ctx context.Context, token *RefreshToken) error

	// FindByValue looks up the record for a presented opaque value.
	// Returns core.ErrNotFound when no record matches.
	FindByValue(ctx context.Context, value string) (*RefreshToken, error)

	FindByID(ctx context.Context, id string) (*RefreshToken, error)

	// Revoke sets revoked_at if it is currently null. Missing or
	// already-revoked records are a silent no-op.
	Revoke(ctx context.Context, id string) error

	// RevokeActive is the claiming variant of Revoke: it reports whether
	// this call performed the active-to-revoked transition. Rotation uses
	// it so that concurrent redemptions of one value have a single winner.
	RevokeActive(ctx context.Context, id string) (bool, error)

	// RevokeAllForUser revokes every active record owned by the user in
	// one statement.
	RevokeAllForUser(ctx context.Context, userID string) error

	ActiveForUser(ctx context.Context, userID string) ([]RefreshToken, error)

	// DeleteExpired removes records whose expiry is older than the given
	// retention window. Maintenance only; never called on request paths.
	DeleteExpired(
		ctx context.Context,
		retention time.Duration,
	) (int64, error)
}

type repository struct {
	db  core.DBTX
	obs core.QueryObserver
}

func NewRepository(db core.DBTX, obs core.QueryObserver) Repository {
	if obs == nil {
		obs = core.NopQueryObserver{}
	}
	return &repository{db: db, obs: obs}
}

func (r *repository) Create(
	ctx context.Context,
	token *RefreshToken,
) (err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "refresh_token", "create", start, err) }()

	query := `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, expires_at, user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING created_at`

	err = r.db.GetContext(ctx, &token.CreatedAt, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.UserAgent,
		token.IPAddress,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create refresh token: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *repository) FindByValue(
	ctx context.Context,
	value string,
) (token *RefreshToken, err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "refresh_token", "find_by_value", start, err) }()

	return r.findWhere(ctx, "token_hash = $1", core.HashToken(value))
}

func (r *repository) FindByID(
	ctx context.Context,
	id string,
) (token *RefreshToken, err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "refresh_token", "find_by_id", start, err) }()

	return r.findWhere(ctx, "id = $1", id)
}

func (r *repository) findWhere(
	ctx context.Context,
	cond string,
	arg any,
) (*RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked_at,
		       user_agent, ip_address, created_at
		FROM refresh_tokens
		WHERE ` + cond

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

func (r *repository) Revoke(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "refresh_token", "revoke", start, err) }()

	_, err = r.revokeActive(ctx, id)
	return err
}

func (r *repository) RevokeActive(
	ctx context.Context,
	id string,
) (claimed bool, err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "refresh_token", "revoke_active", start, err) }()

	return r.revokeActive(ctx, id)
}

func (r *repository) revokeActive(
	ctx context.Context,
	id string,
) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}

	return rows > 0, nil
}

func (r *repository) RevokeAllForUser(
	ctx context.Context,
	userID string,
) (err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "refresh_token", "revoke_all", start, err) }()

	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL`

	if _, err = r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("revoke all user tokens: %w", err)
	}

	return nil
}

func (r *repository) ActiveForUser(
	ctx context.Context,
	userID string,
) (tokens []RefreshToken, err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "refresh_token", "active_for_user", start, err) }()

	query := `
		SELECT id, user_id, token_hash, expires_at, revoked_at,
		       user_agent, ip_address, created_at
		FROM refresh_tokens
		WHERE user_id = $1
			AND revoked_at IS NULL
			AND expires_at > NOW()
		ORDER BY created_at DESC`

	if err = r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	return tokens, nil
}

func (r *repository) DeleteExpired(
	ctx context.Context,
	retention time.Duration,
) (purged int64, err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "refresh_token", "delete_expired", start, err) }()

	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1`

	cutoff := time.Now().Add(-retention)

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	purged, err = result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return purged, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
