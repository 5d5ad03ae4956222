// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// RefreshToken is one issued refresh credential. The opaque value handed to
// the client is never stored; only its SHA-256 digest is. RevokedAt is a
// one-way transition: once set it is never cleared, and the record is kept
// for audit rather than deleted.
type RefreshToken struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	UserAgent string     `db:"user_agent"`
	IPAddress string     `db:"ip_address"`
	CreatedAt time.Time  `db:"created_at"`
}

func (t *RefreshToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive reports whether the record can still be redeemed: not revoked and
// not past its expiry.
func (t *RefreshToken) IsActive() bool {
	return !t.IsRevoked() && !t.IsExpired()
}
