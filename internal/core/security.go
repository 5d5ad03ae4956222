// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters. Changing any of these triggers a transparent rehash
// on the next successful login.
type hashParams struct {
	memory  uint32
	time    uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

var defaultHashParams = hashParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	saltLen: 16,
	keyLen:  32,
}

var errMalformedHash = errors.New("malformed password hash")

func HashPassword(password string) (string, error) {
	return hashPassword(password, defaultHashParams)
}

func hashPassword(password string, p hashParams) (string, error) {
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func VerifyPassword(password, encoded string) (bool, error) {
	p, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey(
		[]byte(password),
		salt,
		p.time,
		p.memory,
		p.threads,
		p.keyLen,
	)

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// VerifyPasswordWithRehash verifies the password and, when it matches a hash
// produced with outdated parameters, returns a fresh hash the caller should
// persist. The returned hash is empty when no upgrade is needed.
func VerifyPasswordWithRehash(password, encoded string) (bool, string, error) {
	valid, err := VerifyPassword(password, encoded)
	if err != nil || !valid {
		return valid, "", err
	}

	p, _, key, parseErr := parseHash(encoded)
	if parseErr == nil &&
		p.memory == defaultHashParams.memory &&
		p.time == defaultHashParams.time &&
		p.threads == defaultHashParams.threads &&
		uint32(len(key)) == defaultHashParams.keyLen {
		return true, "", nil
	}

	newHash, hashErr := HashPassword(password)
	if hashErr != nil {
		// password already verified; a failed upgrade is non-fatal
		return true, "", nil
	}

	return true, newHash, nil
}

var dummyHash string

func init() {
	h, err := HashPassword("monostack.timing.equalizer")
	if err != nil {
		panic(fmt.Sprintf("core: dummy hash generation failed: %v", err))
	}
	dummyHash = h
}

// VerifyPasswordTimingSafe always performs a full argon2id verification even
// when no account matched, so a login probe cannot distinguish "unknown
// email" from "wrong password" by response time.
func VerifyPasswordTimingSafe(
	password string,
	encoded *string,
) (bool, string, error) {
	target := dummyHash
	if encoded != nil && *encoded != "" {
		target = *encoded
	}

	valid, newHash, err := VerifyPasswordWithRehash(password, target)

	if encoded == nil || *encoded == "" {
		return false, "", nil
	}

	return valid, newHash, err
}

func parseHash(encoded string) (hashParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return hashParams{}, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return hashParams{}, nil, nil, fmt.Errorf("parse hash version: %w", err)
	}
	if version != argon2.Version {
		return hashParams{}, nil, nil, fmt.Errorf(
			"unsupported argon2 version %d", version,
		)
	}

	var p hashParams
	if _, err := fmt.Sscanf(
		parts[3],
		"m=%d,t=%d,p=%d",
		&p.memory,
		&p.time,
		&p.threads,
	); err != nil {
		return hashParams{}, nil, nil, fmt.Errorf("parse hash params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return hashParams{}, nil, nil, fmt.Errorf("decode salt: %w", err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return hashParams{}, nil, nil, fmt.Errorf("decode key: %w", err)
	}

	//nolint:gosec // G115: key length is bounded by the encoded hash
	p.keyLen = uint32(len(key))
	p.saltLen = uint32(len(salt))

	return p, salt, key, nil
}

const refreshTokenBytes = 32

// GenerateRefreshToken returns a new opaque refresh credential. The value is
// handed to the client exactly once; only its digest is stored.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}

func CompareTokenHash(token, storedHash string) bool {
	return subtle.ConstantTimeCompare(
		[]byte(HashToken(token)),
		[]byte(storedHash),
	) == 1
}
