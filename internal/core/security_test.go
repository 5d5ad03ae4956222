// AngelaMos | 2026
// security_test.go

package core

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct-horse-battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	valid, err := VerifyPassword("correct-horse-battery", hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = VerifyPassword("wrong-guess", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestHashPassword_SaltedHashesDiffer(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("same-password")
	require.NoError(t, err)
	h2, err := HashPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	t.Parallel()

	_, err := VerifyPassword("anything", "not-a-phc-string")
	require.Error(t, err)
}

func TestVerifyPasswordWithRehash_CurrentParams(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct-horse-battery")
	require.NoError(t, err)

	valid, newHash, err := VerifyPasswordWithRehash(
		"correct-horse-battery", hash,
	)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Empty(t, newHash, "current params need no rehash")
}

func TestVerifyPasswordWithRehash_OutdatedParams(t *testing.T) {
	t.Parallel()

	old := defaultHashParams
	old.memory = 32 * 1024
	hash, err := hashPassword("correct-horse-battery", old)
	require.NoError(t, err)

	valid, newHash, err := VerifyPasswordWithRehash(
		"correct-horse-battery", hash,
	)
	require.NoError(t, err)
	assert.True(t, valid)
	require.NotEmpty(t, newHash, "outdated params must trigger a rehash")

	valid, err = VerifyPassword("correct-horse-battery", newHash)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestVerifyPasswordWithRehash_WrongPasswordNoRehash(t *testing.T) {
	t.Parallel()

	old := defaultHashParams
	old.memory = 32 * 1024
	hash, err := hashPassword("correct-horse-battery", old)
	require.NoError(t, err)

	valid, newHash, err := VerifyPasswordWithRehash("wrong-guess", hash)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Empty(t, newHash)
}

func TestVerifyPasswordTimingSafe_NilHash(t *testing.T) {
	t.Parallel()

	valid, newHash, err := VerifyPasswordTimingSafe("anything", nil)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Empty(t, newHash)
}

func TestVerifyPasswordTimingSafe_RealHash(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct-horse-battery")
	require.NoError(t, err)

	valid, _, err := VerifyPasswordTimingSafe("correct-horse-battery", &hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, _, err = VerifyPasswordTimingSafe("wrong-guess", &hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestGenerateRefreshToken(t *testing.T) {
	t.Parallel()

	token, err := GenerateRefreshToken()
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.Len(t, decoded, refreshTokenBytes)

	other, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestHashToken_DeterministicHexDigest(t *testing.T) {
	t.Parallel()

	h := HashToken("some-opaque-value")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("some-opaque-value"))
	assert.NotEqual(t, h, HashToken("other-value"))
}

func TestCompareTokenHash(t *testing.T) {
	t.Parallel()

	stored := HashToken("some-opaque-value")
	assert.True(t, CompareTokenHash("some-opaque-value", stored))
	assert.False(t, CompareTokenHash("other-value", stored))
}
