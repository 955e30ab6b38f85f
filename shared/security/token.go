package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// TokenPurpose scopes a single-use token to one flow.
type TokenPurpose string

const (
	PurposePasswordReset TokenPurpose = "password_reset"
	PurposeEmailVerify   TokenPurpose = "email_verify"
)

// DefaultTokenTTL is the lifetime of an issued token.
const DefaultTokenTTL = 600 * time.Second

const tokenBytes = 32

// IssuedToken is the result of Issue. Only Digest and ExpiresAt may be stored;
// Plaintext goes to the user out of band.
type IssuedToken struct {
	Purpose   TokenPurpose
	Plaintext string
	Digest    string
	ExpiresAt time.Time
}

// TokenIssuer mints and validates single-use, time-boxed tokens.
type TokenIssuer struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// TokenIssuerOption customizes a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) TokenIssuerOption {
	return func(i *TokenIssuer) {
		i.now = now
	}
}

// WithRandom sets the entropy source used for new tokens.
func WithRandom(r io.Reader) TokenIssuerOption {
	return func(i *TokenIssuer) {
		i.random = r
	}
}

// NewTokenIssuer creates a TokenIssuer. A zero ttl falls back to DefaultTokenTTL.
func NewTokenIssuer(ttl time.Duration, opts ...TokenIssuerOption) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	issuer := &TokenIssuer{
		ttl:    ttl,
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(issuer)
	}

	return issuer
}

// TTL returns the token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue generates a new random token for purpose.
func (i *TokenIssuer) Issue(purpose TokenPurpose) (IssuedToken, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(i.random, buf); err != nil {
		return IssuedToken{}, fmt.Errorf("read token: %w", err)
	}

	plaintext := hex.EncodeToString(buf)

	return IssuedToken{
		Purpose:   purpose,
		Plaintext: plaintext,
		Digest:    DigestToken(purpose, plaintext),
		ExpiresAt: i.now().Add(i.ttl),
	}, nil
}

// Validate reports whether presented matches storedDigest and expiresAt is
// still in the future. Every failure looks the same to the caller.
func (i *TokenIssuer) Validate(purpose TokenPurpose, presented, storedDigest string, expiresAt *time.Time) bool {
	if storedDigest == "" || expiresAt == nil {
		return false
	}

	digest := DigestToken(purpose, presented)
	match := subtle.ConstantTimeCompare([]byte(digest), []byte(storedDigest)) == 1
	live := i.now().Before(*expiresAt)

	return match && live
}

// DigestToken returns the hex SHA-256 of the token bound to its purpose.
func DigestToken(purpose TokenPurpose, plaintext string) string {
	h := sha256.New()
	h.Write([]byte(purpose))
	h.Write([]byte{0})
	h.Write([]byte(plaintext))
	return hex.EncodeToString(h.Sum(nil))
}
