package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/config"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/model"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/repository"
	"github.com/vasapolrittideah/userbase-api/shared/auth"
	"github.com/vasapolrittideah/userbase-api/shared/security"
)

// AuthUsecase defines credential checks against stored users.
type AuthUsecase interface {
	// VerifyLogin returns the user when password matches the stored hash.
	// Unknown email and wrong password both yield ErrAuthFailed.
	VerifyLogin(ctx context.Context, email, password string) (*model.User, error)

	// CheckSessionToken validates a signed session token and rejects it with
	// ErrSessionStale if the password changed after it was issued.
	CheckSessionToken(ctx context.Context, token string) (*model.User, error)
}

type authUsecase struct {
	logger         *zerolog.Logger
	userRepo       repository.UserRepository
	hasher         security.PasswordHasher
	jwtAuth        auth.JWTAuthenticator
	userServiceCfg *config.UserServiceConfig

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthUsecase creates a new instance of AuthUsecase.
func NewAuthUsecase(
	logger *zerolog.Logger,
	userRepo repository.UserRepository,
	hasher security.PasswordHasher,
	userServiceCfg *config.UserServiceConfig,
) AuthUsecase {
	return &authUsecase{
		logger:         logger,
		userRepo:       userRepo,
		hasher:         hasher,
		jwtAuth:        auth.NewJWTAuthenticator(userServiceCfg.Token.Audience, userServiceCfg.Token.Issuer),
		userServiceCfg: userServiceCfg,
	}
}

func (u *authUsecase) VerifyLogin(ctx context.Context, email, password string) (*model.User, error) {
	user, err := u.userRepo.GetUserByEmailWithSecrets(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Spend the same hashing work as a real check.
			u.hasher.VerifyPassword(password, u.dummy())
			return nil, ErrAuthFailed
		}
		return nil, err
	}

	if !u.hasher.VerifyPassword(password, user.PasswordHash) {
		u.logger.Warn().Str("user_id", user.ID.Hex()).Msg("login rejected")
		return nil, ErrAuthFailed
	}

	return user.Redacted(), nil
}

func (u *authUsecase) dummy() string {
	u.dummyOnce.Do(func() {
		hash, err := u.hasher.HashPassword("dummy-password-for-timing")
		if err != nil {
			u.logger.Error().Err(err).Msg("failed to build dummy password hash")
			return
		}
		u.dummyHash = hash
	})
	return u.dummyHash
}

func (u *authUsecase) CheckSessionToken(ctx context.Context, token string) (*model.User, error) {
	subject, issuedAt, err := u.jwtAuth.SessionClaims(token, u.userServiceCfg.Token.SessionSecret)
	if err != nil {
		return nil, ErrAuthFailed
	}

	user, err := u.userRepo.GetUser(ctx, subject)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAuthFailed
		}
		return nil, err
	}

	if security.PasswordChangedAfter(user.PasswordChangedAt, issuedAt) {
		return nil, ErrSessionStale
	}

	return user, nil
}
