// AngelaMos | 2026
// verifier.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelamos/monostack/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
)

// UserInfo is the account view the auth package needs from the user store.
type UserInfo struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserProvider is implemented by the user service.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email, passwordHash, firstName, lastName string,
	) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// CredentialVerifier resolves an account by email and checks a plaintext
// password against its stored hash. It performs no writes: when the stored
// hash should be upgraded to current parameters, the replacement hash is
// returned for the caller to persist.
//
// The verifier deliberately does not check IsActive; session-level policy
// belongs to the caller.
type CredentialVerifier struct {
	users UserProvider
}

func NewCredentialVerifier(users UserProvider) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify returns the matched account on success. Unknown emails and wrong
// passwords both take the full hashing cost, so callers stay safe to map
// either case to the same client-facing failure.
func (v *CredentialVerifier) Verify(
	ctx context.Context,
	email, password string,
) (*UserInfo, string, error) {
	user, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // burn the hashing cost to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
			return nil, "", fmt.Errorf("verify: %w", ErrInvalidCredentials)
		}
		return nil, "", fmt.Errorf("get user by email: %w", err)
	}

	valid, rehash, err := core.VerifyPasswordTimingSafe(
		password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, "", fmt.Errorf("verify: %w", ErrInvalidCredentials)
	}

	return user, rehash, nil
}
