package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/normalizer"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrUniqueness     = errors.New("already taken")
	ErrUserNotFound   = errors.New("user not found")
	ErrTokenInvalid   = errors.New("invalid or expired token")
	ErrAuthFailed     = errors.New("invalid email or password")
	ErrSessionStale   = errors.New("session token is no longer valid")
	ErrHashingFailure = normalizer.ErrHashingFailure
)

// ValidationError reports malformed input fields. It unwraps to ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UniquenessError reports a conflict on a unique field. It unwraps to
// ErrUniqueness.
type UniquenessError struct {
	Field string
}

func (e *UniquenessError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, ErrUniqueness.Error())
}

func (e *UniquenessError) Unwrap() error { return ErrUniqueness }
