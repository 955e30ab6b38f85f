package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/config"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/repository"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/usecase"
	"github.com/vasapolrittideah/userbase-api/shared/auth"
)

const sessionTTL = 24 * time.Hour

var errUnknownCommand = errors.New("unknown command")

type app struct {
	cfg    *config.UserServiceConfig
	users  usecase.UserUsecase
	tokens usecase.TokenUsecase
	auth   usecase.AuthUsecase
	out    io.Writer
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "create":
		return a.create(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "get":
		return a.get(ctx, args)
	case "list":
		return a.list(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	case "request-reset":
		return a.requestReset(ctx, args)
	case "reset":
		return a.reset(ctx, args)
	case "request-verify":
		return a.requestVerify(ctx, args)
	case "verify":
		return a.verify(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "check-session":
		return a.checkSession(ctx, args)
	default:
		return fmt.Errorf("%w %q", errUnknownCommand, cmd)
	}
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// optional returns a pointer to the flag value if the flag was given.
func optional[T any](fs *flag.FlagSet, name string, v *T) *T {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	if !set {
		return nil
	}
	return v
}

func requireFlags(fs *flag.FlagSet, names ...string) error {
	for _, name := range names {
		if fs.Lookup(name).Value.String() == "" {
			return fmt.Errorf("-%s is required", name)
		}
	}
	return nil
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	displayName := fs.String("display-name", "", "display name")
	about := fs.String("about", "", "about text")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.users.CreateUser(ctx, usecase.CreateUserParams{
		Email:       *email,
		Username:    *username,
		Password:    *password,
		DisplayName: optional(fs, "display-name", displayName),
		About:       optional(fs, "about", about),
	})
	if err != nil {
		return err
	}
	return a.print(user)
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	id := fs.String("id", "", "user id")
	email := fs.String("email", "", "email address")
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "new password")
	displayName := fs.String("display-name", "", "display name")
	about := fs.String("about", "", "about text")
	avatar := fs.String("avatar", "", "avatar image")
	banner := fs.String("banner", "", "banner image")
	verified := fs.Bool("verified", false, "email verified flag")
	twoFactor := fs.Bool("two-factor", false, "two factor flag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "id"); err != nil {
		return err
	}

	user, err := a.users.UpdateUser(ctx, *id, usecase.UpdateUserParams{
		Email:            optional(fs, "email", email),
		Username:         optional(fs, "username", username),
		Password:         optional(fs, "password", password),
		DisplayName:      optional(fs, "display-name", displayName),
		About:            optional(fs, "about", about),
		AvatarImage:      optional(fs, "avatar", avatar),
		BannerImage:      optional(fs, "banner", banner),
		IsEmailVerified:  optional(fs, "verified", verified),
		TwoFactorEnabled: optional(fs, "two-factor", twoFactor),
	})
	if err != nil {
		return err
	}
	return a.print(user)
}

func (a *app) get(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	id := fs.String("id", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "id"); err != nil {
		return err
	}

	user, err := a.users.GetUser(ctx, *id)
	if err != nil {
		return err
	}
	return a.print(user)
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	email := fs.String("email", "", "filter by email")
	verified := fs.Bool("verified", false, "filter by email verified flag")
	limit := fs.Uint64("limit", 10, "page size")
	offset := fs.Uint64("offset", 0, "page offset")
	sortBy := fs.String("sort", "", "sort field (created_at or email)")
	desc := fs.Bool("desc", false, "sort descending")
	if err := fs.Parse(args); err != nil {
		return err
	}

	users, err := a.users.ListUsers(ctx, repository.FilterUsersParams{
		Email:           optional(fs, "email", email),
		IsEmailVerified: optional(fs, "verified", verified),
		Limit:           *limit,
		Offset:          *offset,
		SortBy:          optional(fs, "sort", sortBy),
		SortDesc:        *desc,
	})
	if err != nil {
		return err
	}
	return a.print(users)
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.String("id", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "id"); err != nil {
		return err
	}

	user, err := a.users.DeleteUser(ctx, *id)
	if err != nil {
		return err
	}
	return a.print(user)
}

func (a *app) requestReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("request-reset", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "email"); err != nil {
		return err
	}

	if err := a.tokens.RequestPasswordReset(ctx, *email); err != nil {
		return err
	}
	return a.print(map[string]string{"message": "if the email exists, a reset link has been sent"})
}

func (a *app) reset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	id := fs.String("id", "", "user id")
	token := fs.String("token", "", "reset token")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "id", "token", "password"); err != nil {
		return err
	}

	if err := a.tokens.RedeemPasswordResetToken(ctx, *id, *token, *password); err != nil {
		return err
	}
	return a.print(map[string]string{"message": "password updated"})
}

func (a *app) requestVerify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("request-verify", flag.ContinueOnError)
	id := fs.String("id", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "id"); err != nil {
		return err
	}

	if err := a.tokens.RequestEmailVerification(ctx, *id); err != nil {
		return err
	}
	return a.print(map[string]string{"message": "verification link sent"})
}

func (a *app) verify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	id := fs.String("id", "", "user id")
	token := fs.String("token", "", "verification token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "id", "token"); err != nil {
		return err
	}

	if err := a.tokens.RedeemEmailVerifyToken(ctx, *id, *token); err != nil {
		return err
	}
	return a.print(map[string]string{"message": "email verified"})
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.auth.VerifyLogin(ctx, *email, *password)
	if err != nil {
		return err
	}

	out := map[string]any{"user": user}
	if a.cfg.Token.SessionSecret != "" {
		token, err := a.sessionToken(user.ID.Hex())
		if err != nil {
			return err
		}
		out["session_token"] = token
	}
	return a.print(out)
}

func (a *app) sessionToken(subject string) (string, error) {
	now := time.Now()
	jwtAuth := auth.NewJWTAuthenticator(a.cfg.Token.Audience, a.cfg.Token.Issuer)
	return jwtAuth.GenerateToken(jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.cfg.Token.Issuer,
		Audience:  jwt.ClaimStrings{a.cfg.Token.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}, a.cfg.Token.SessionSecret)
}

func (a *app) checkSession(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check-session", flag.ContinueOnError)
	token := fs.String("token", "", "session token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "token"); err != nil {
		return err
	}

	user, err := a.auth.CheckSessionToken(ctx, *token)
	if err != nil {
		return err
	}
	return a.print(user)
}
