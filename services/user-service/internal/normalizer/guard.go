// Package normalizer enforces the invariants every user write must satisfy
// before it reaches the store.
package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/model"
	"github.com/vasapolrittideah/userbase-api/shared/security"
)

// ErrHashingFailure is returned when the password could not be hashed. The
// write must be aborted.
var ErrHashingFailure = errors.New("password hashing failed")

// passwordChangeSkew back-dates passwordChangedAt so a session token issued in
// the same second as the change still counts as older than it.
const passwordChangeSkew = time.Second

// Guard normalizes user change sets. It is the single place where derived
// fields, role pinning and token invalidation are decided, for creation,
// partial updates and full saves alike.
type Guard struct {
	hasher security.PasswordHasher
	now    func() time.Time
}

// NewGuard creates a Guard. A nil now uses time.Now.
func NewGuard(hasher security.PasswordHasher, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{hasher: hasher, now: now}
}

// Normalize returns the normalized form of changes. current is the stored
// record the changes apply to, or nil when the record is being created.
// Normalizing an already normalized change set returns it unchanged.
func (g *Guard) Normalize(changes model.UserChanges, current *model.User) (model.UserChanges, error) {
	out := changes
	isNew := current == nil

	if out.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*out.Email))
		out.Email = &email
	}

	// The slug is only ever derived from the username in the same write.
	if out.Username != nil {
		slug := strings.ToLower(*out.Username)
		out.UsernameSlug = &slug
	} else {
		out.UsernameSlug = nil
	}

	// No write path grants admin.
	role := model.RoleUser
	out.Role = &role

	if !resultingEmailVerified(out, current) {
		disabled := false
		out.TwoFactorEnabled = &disabled
	}

	// A password change on an existing record revokes any pending reset.
	if out.HasPassword() && !isNew {
		if out.PasswordChangedAt == nil {
			changedAt := g.now().Add(-passwordChangeSkew)
			out.PasswordChangedAt = &changedAt
		}
		out.ClearPasswordReset = true
		out.PasswordResetTokenHash = nil
		out.PasswordResetExpires = nil
	}

	if out.IsEmailVerified != nil && !isNew {
		out.ClearEmailVerify = true
		out.EmailVerifyTokenHash = nil
		out.EmailVerifyExpires = nil
	}

	if out.Password != nil {
		hash, err := g.hasher.HashPassword(*out.Password)
		if err != nil {
			return model.UserChanges{}, fmt.Errorf("%w: %w", ErrHashingFailure, err)
		}
		out.PasswordHash = &hash
		out.Password = nil
	}

	return out, nil
}

func resultingEmailVerified(changes model.UserChanges, current *model.User) bool {
	if changes.IsEmailVerified != nil {
		return *changes.IsEmailVerified
	}
	return current != nil && current.IsEmailVerified
}
