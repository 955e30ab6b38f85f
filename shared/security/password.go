package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordAlgorithm names the hashing scheme used for new password hashes.
type PasswordAlgorithm string

const (
	AlgorithmBcrypt   PasswordAlgorithm = "bcrypt"
	AlgorithmArgon2id PasswordAlgorithm = "argon2id"
)

// DefaultBcryptCost is used when PasswordConfig.BcryptCost is zero.
const DefaultBcryptCost = 12

// MinBcryptCost is the lowest work factor accepted for new hashes.
const MinBcryptCost = 10

var (
	ErrPasswordTooLong      = errors.New("password exceeds the maximum length supported by the hasher")
	ErrUnsupportedAlgorithm = errors.New("unsupported password hashing algorithm")
	ErrWorkFactorTooLow     = errors.New("password hashing work factor is too low")
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	HashPassword(plaintext string) (string, error)
	VerifyPassword(candidate, storedHash string) bool
}

// PasswordConfig holds the work factor settings for password hashing.
type PasswordConfig struct {
	Algorithm       PasswordAlgorithm
	BcryptCost      int
	Argon2TimeCost  uint32
	Argon2MemoryKiB uint32
}

// CredentialManager hashes passwords with the configured algorithm and verifies
// hashes produced by any supported algorithm.
type CredentialManager struct {
	algorithm  PasswordAlgorithm
	bcryptCost int
	argon2Cfg  argon2.Config
}

// NewCredentialManager creates a CredentialManager from the given configuration.
func NewCredentialManager(cfg PasswordConfig) (*CredentialManager, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmBcrypt
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}

	argonCfg := argon2.DefaultConfig()
	if cfg.Argon2TimeCost != 0 {
		argonCfg.TimeCost = cfg.Argon2TimeCost
	}
	if cfg.Argon2MemoryKiB != 0 {
		argonCfg.MemoryCost = cfg.Argon2MemoryKiB
	}

	switch cfg.Algorithm {
	case AlgorithmBcrypt:
		if cfg.BcryptCost < MinBcryptCost || cfg.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("%w: bcrypt cost %d", ErrWorkFactorTooLow, cfg.BcryptCost)
		}
	case AlgorithmArgon2id:
		if argonCfg.TimeCost < 1 || argonCfg.MemoryCost < 8*1024 {
			return nil, fmt.Errorf("%w: argon2id t=%d m=%d", ErrWorkFactorTooLow, argonCfg.TimeCost, argonCfg.MemoryCost)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}

	return &CredentialManager{
		algorithm:  cfg.Algorithm,
		bcryptCost: cfg.BcryptCost,
		argon2Cfg:  argonCfg,
	}, nil
}

// Algorithm returns the algorithm used for new hashes.
func (m *CredentialManager) Algorithm() PasswordAlgorithm {
	return m.algorithm
}

// HashPassword returns a salted one-way hash of plaintext.
func (m *CredentialManager) HashPassword(plaintext string) (string, error) {
	switch m.algorithm {
	case AlgorithmArgon2id:
		encoded, err := m.argon2Cfg.HashEncoded([]byte(plaintext))
		if err != nil {
			return "", fmt.Errorf("argon2id hash: %w", err)
		}
		return string(encoded), nil
	default:
		hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), m.bcryptCost)
		if err != nil {
			if errors.Is(err, bcrypt.ErrPasswordTooLong) {
				return "", ErrPasswordTooLong
			}
			return "", fmt.Errorf("bcrypt hash: %w", err)
		}
		return string(hash), nil
	}
}

// VerifyPassword reports whether candidate matches storedHash. The algorithm is
// taken from the hash prefix, so hashes written under an older configuration
// keep verifying. A malformed hash never matches.
func (m *CredentialManager) VerifyPassword(candidate, storedHash string) bool {
	switch {
	case isBcryptHash(storedHash):
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate)) == nil
	case strings.HasPrefix(storedHash, "$argon2"):
		ok, err := argon2.VerifyEncoded([]byte(candidate), []byte(storedHash))
		return err == nil && ok
	default:
		return false
	}
}

// PasswordChangedAfter reports whether the password was changed strictly after
// the given token issuance time (unix seconds).
func PasswordChangedAfter(changedAt *time.Time, issuedAtUnix int64) bool {
	if changedAt == nil {
		return false
	}
	return changedAt.Unix() > issuedAtUnix
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}
