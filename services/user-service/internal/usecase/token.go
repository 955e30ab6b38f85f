package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/config"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/model"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/normalizer"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/repository"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/validation"
	"github.com/vasapolrittideah/userbase-api/shared/mailer"
	"github.com/vasapolrittideah/userbase-api/shared/security"
)

// TokenUsecase defines the business logic for password reset and email
// verification tokens.
type TokenUsecase interface {
	// IssuePasswordResetToken stores the digest of a new reset token on the
	// user and returns the plaintext token for delivery.
	IssuePasswordResetToken(ctx context.Context, id string) (string, error)

	// IssueEmailVerifyToken stores the digest of a new verification token on
	// the user and returns the plaintext token for delivery.
	IssueEmailVerifyToken(ctx context.Context, id string) (string, error)

	// RedeemPasswordResetToken sets a new password if token is the live reset
	// token of the user.
	RedeemPasswordResetToken(ctx context.Context, id, token, newPassword string) error

	// RedeemEmailVerifyToken marks the email as verified if token is the live
	// verification token of the user.
	RedeemEmailVerifyToken(ctx context.Context, id, token string) error

	// RequestPasswordReset issues a reset token and mails it. Unknown emails
	// are silently ignored.
	RequestPasswordReset(ctx context.Context, email string) error

	// RequestEmailVerification issues a verification token and mails it.
	RequestEmailVerification(ctx context.Context, id string) error
}

type tokenUsecase struct {
	logger         *zerolog.Logger
	userRepo       repository.UserRepository
	writer         *userWriter
	tokens         *security.TokenIssuer
	mailer         mailer.Sender
	userServiceCfg *config.UserServiceConfig
}

// NewTokenUsecase creates a new instance of TokenUsecase.
func NewTokenUsecase(
	logger *zerolog.Logger,
	userRepo repository.UserRepository,
	guard *normalizer.Guard,
	validator *validation.Validator,
	tokens *security.TokenIssuer,
	mailer mailer.Sender,
	userServiceCfg *config.UserServiceConfig,
) TokenUsecase {
	return &tokenUsecase{
		logger:         logger,
		userRepo:       userRepo,
		writer:         newUserWriter(userRepo, guard, validator),
		tokens:         tokens,
		mailer:         mailer,
		userServiceCfg: userServiceCfg,
	}
}

func (u *tokenUsecase) IssuePasswordResetToken(ctx context.Context, id string) (string, error) {
	user, err := u.writer.load(ctx, id)
	if err != nil {
		return "", err
	}
	return u.issue(ctx, user, security.PurposePasswordReset)
}

func (u *tokenUsecase) IssueEmailVerifyToken(ctx context.Context, id string) (string, error) {
	user, err := u.writer.load(ctx, id)
	if err != nil {
		return "", err
	}
	return u.issue(ctx, user, security.PurposeEmailVerify)
}

// issue overwrites any previous token of the same purpose, so at most one is
// live per user.
func (u *tokenUsecase) issue(ctx context.Context, user *model.User, purpose security.TokenPurpose) (string, error) {
	token, err := u.tokens.Issue(purpose)
	if err != nil {
		return "", err
	}

	var changes model.UserChanges
	switch purpose {
	case security.PurposePasswordReset:
		changes.PasswordResetTokenHash = &token.Digest
		changes.PasswordResetExpires = &token.ExpiresAt
	case security.PurposeEmailVerify:
		changes.EmailVerifyTokenHash = &token.Digest
		changes.EmailVerifyExpires = &token.ExpiresAt
	default:
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}

	if _, err := u.writer.update(ctx, user, repository.UpdateUserParams{Changes: changes}); err != nil {
		return "", err
	}

	u.logger.Info().
		Str("user_id", user.ID.Hex()).
		Str("purpose", string(purpose)).
		Time("expires_at", token.ExpiresAt).
		Msg("token issued")

	return token.Plaintext, nil
}

func (u *tokenUsecase) RedeemPasswordResetToken(ctx context.Context, id, token, newPassword string) error {
	user, err := u.redeemable(ctx, id, token, security.PurposePasswordReset)
	if err != nil {
		return err
	}

	changes := model.UserChanges{Password: &newPassword}
	if err := u.writer.validate(changes); err != nil {
		return err
	}

	_, err = u.writer.update(ctx, user, repository.UpdateUserParams{
		Changes:                        changes,
		ExpectedPasswordResetTokenHash: user.PasswordResetTokenHash,
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	u.logger.Info().Str("user_id", id).Msg("password reset completed")
	return nil
}

func (u *tokenUsecase) RedeemEmailVerifyToken(ctx context.Context, id, token string) error {
	user, err := u.redeemable(ctx, id, token, security.PurposeEmailVerify)
	if err != nil {
		return err
	}

	verified := true
	_, err = u.writer.update(ctx, user, repository.UpdateUserParams{
		Changes:                      model.UserChanges{IsEmailVerified: &verified},
		ExpectedEmailVerifyTokenHash: user.EmailVerifyTokenHash,
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	u.logger.Info().Str("user_id", id).Msg("email verified")
	return nil
}

// redeemable loads the user and checks token against the stored digest. A
// missing user, a wrong token and an expired token all yield ErrTokenInvalid.
func (u *tokenUsecase) redeemable(
	ctx context.Context,
	id, token string,
	purpose security.TokenPurpose,
) (*model.User, error) {
	user, err := u.writer.load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	var ok bool
	switch purpose {
	case security.PurposePasswordReset:
		ok = u.tokens.Validate(purpose, token, user.PasswordResetTokenHash, user.PasswordResetExpires)
	case security.PurposeEmailVerify:
		ok = u.tokens.Validate(purpose, token, user.EmailVerifyTokenHash, user.EmailVerifyExpires)
	}
	if !ok {
		return nil, ErrTokenInvalid
	}

	return user, nil
}

func (u *tokenUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := u.userRepo.GetUserByEmailWithSecrets(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// To prevent email enumeration, do not reveal that the email does not exist.
			return nil
		}
		return err
	}

	token, err := u.issue(ctx, user, security.PurposePasswordReset)
	if err != nil {
		return err
	}

	link := tokenLink(u.userServiceCfg.AppPasswordResetURL, user.ID.Hex(), token)
	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>We received a request to reset the password for your account.</p>
		<p>If you made this request, please click the link below to create a new password:</p>

		<p><a href="%s">%s</a></p>

		<p>This link will expire in %s for your security.</p>
		<p>If you did not request a password reset, you can safely ignore this email.</p>
	`, user.Username, link, link, u.tokens.TTL())

	return u.mailer.SendHTML([]string{user.Email}, "Password Reset Request", htmlBody)
}

func (u *tokenUsecase) RequestEmailVerification(ctx context.Context, id string) error {
	user, err := u.writer.load(ctx, id)
	if err != nil {
		return err
	}

	token, err := u.issue(ctx, user, security.PurposeEmailVerify)
	if err != nil {
		return err
	}

	link := tokenLink(u.userServiceCfg.AppEmailVerifyURL, user.ID.Hex(), token)
	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Please confirm your email address by clicking the link below:</p>

		<p><a href="%s">%s</a></p>

		<p>This link will expire in %s.</p>
	`, user.Username, link, link, u.tokens.TTL())

	return u.mailer.SendHTML([]string{user.Email}, "Verify your email", htmlBody)
}

func tokenLink(base, id, token string) string {
	q := url.Values{}
	q.Set("id", id)
	q.Set("token", token)
	return base + "?" + q.Encode()
}
