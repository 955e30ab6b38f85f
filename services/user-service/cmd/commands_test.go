package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/config"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/normalizer"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/repository"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/usecase"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/validation"
	"github.com/vasapolrittideah/userbase-api/shared/mailer"
	"github.com/vasapolrittideah/userbase-api/shared/security"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()

	logger := zerolog.New(io.Discard)
	cfg := &config.UserServiceConfig{
		Token: config.TokenConfig{
			TTL:           security.DefaultTokenTTL,
			SessionSecret: "cli-secret",
			Issuer:        "userbase",
			Audience:      "userbase",
		},
	}

	hasher, err := security.NewCredentialManager(security.PasswordConfig{
		Algorithm:  security.AlgorithmBcrypt,
		BcryptCost: security.MinBcryptCost,
	})
	require.NoError(t, err)
	validator, err := validation.New()
	require.NoError(t, err)

	repo := repository.NewUserMemoryRepository(time.Now)
	guard := normalizer.NewGuard(hasher, time.Now)
	out := &bytes.Buffer{}

	return &app{
		cfg:   cfg,
		users: usecase.NewUserUsecase(&logger, repo, guard, validator),
		tokens: usecase.NewTokenUsecase(&logger, repo, guard, validator,
			security.NewTokenIssuer(cfg.Token.TTL), mailer.NewLogSender(&logger), cfg),
		auth: usecase.NewAuthUsecase(&logger, repo, hasher, cfg),
		out:  out,
	}, out
}

func TestRun_CreateGetLogin(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.run(ctx, "create", []string{
		"-email", "alice@example.com", "-username", "Alice_99", "-password", "Abcdef1!",
	}))
	var created map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &created))
	assert.Equal(t, "alice_99", created["username_slug"])
	assert.NotContains(t, created, "password_hash")
	id := created["id"].(string)

	out.Reset()
	require.NoError(t, a.run(ctx, "update", []string{"-id", id, "-about", "hello", "-two-factor"}))
	var updated map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &updated))
	assert.Equal(t, "hello", updated["about"])
	assert.Equal(t, false, updated["two_factor_enabled"])

	out.Reset()
	require.NoError(t, a.run(ctx, "login", []string{"-email", "alice@example.com", "-password", "Abcdef1!"}))
	var login struct {
		SessionToken string `json:"session_token"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &login))
	require.NotEmpty(t, login.SessionToken)

	out.Reset()
	require.NoError(t, a.run(ctx, "check-session", []string{"-token", login.SessionToken}))
	assert.Contains(t, out.String(), id)
}

func TestRun_Errors(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	require.ErrorIs(t, a.run(ctx, "frobnicate", nil), errUnknownCommand)
	require.Error(t, a.run(ctx, "get", nil))
	require.ErrorIs(t, a.run(ctx, "login", []string{"-email", "x@example.com", "-password", "Abcdef1!"}), usecase.ErrAuthFailed)
	require.ErrorIs(t, a.run(ctx, "reset", []string{"-id", "nope", "-token", "t", "-password", "Abcdef1!"}), usecase.ErrTokenInvalid)
}
