package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// TokenByteLength is the entropy of reset/verification tokens (256 bits)
	TokenByteLength = 32

	PasswordResetTokenTTL     = 1 * time.Hour
	EmailVerificationTokenTTL = 24 * time.Hour
)

// SecureToken pairs the plaintext secret handed to the end user with the
// digest stored server-side. Only the digest is ever persisted.
type SecureToken struct {
	Token       string
	HashedToken string
	ExpiresAt   time.Time
}

// GenerateSecureToken returns byteLength cryptographically random bytes,
// hex-encoded (2*byteLength characters).
func GenerateSecureToken(byteLength int) (string, error) {
	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GeneratePasswordResetToken issues a single-use reset token. The token
// has full entropy and is short-lived, so a fast SHA-256 digest is enough
// for storage; the adaptive hash is reserved for passwords.
func GeneratePasswordResetToken() (*SecureToken, error) {
	return generateToken(PasswordResetTokenTTL)
}

// GenerateEmailVerificationToken issues a verification token with a
// 24 hour lifetime.
func GenerateEmailVerificationToken() (*SecureToken, error) {
	return generateToken(EmailVerificationTokenTTL)
}

func generateToken(ttl time.Duration) (*SecureToken, error) {
	token, err := GenerateSecureToken(TokenByteLength)
	if err != nil {
		return nil, err
	}
	return &SecureToken{
		Token:       token,
		HashedToken: HashToken(token),
		ExpiresAt:   time.Now().Add(ttl),
	}, nil
}

// HashToken computes the storage digest for a plaintext token.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}

// VerifyTokenDigest re-digests the presented token and compares it to the
// stored hash in constant time. Expiry and single-use invalidation are the
// caller's responsibility: it holds the persisted record, this function is
// pure digest equality.
func VerifyTokenDigest(presentedToken, storedHash string) bool {
	computed := HashToken(presentedToken)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
