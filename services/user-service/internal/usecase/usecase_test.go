package usecase

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/config"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/model"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/normalizer"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/repository"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/validation"
	"github.com/vasapolrittideah/userbase-api/shared/security"
)

const testSessionSecret = "session-secret-for-tests"

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type sentMail struct {
	to      []string
	subject string
	body    string
}

type recordingSender struct {
	sent []sentMail
}

func (s *recordingSender) SendHTML(to []string, subject, htmlBody string) error {
	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

var linkTokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

func (s *recordingSender) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.sent)
	m := linkTokenPattern.FindStringSubmatch(s.sent[len(s.sent)-1].body)
	require.Len(t, m, 2, "mail body carries no token link")
	return m[1]
}

type fixture struct {
	clock  *testClock
	repo   repository.UserRepository
	sender *recordingSender
	users  UserUsecase
	tokens TokenUsecase
	auth   AuthUsecase
	cfg    *config.UserServiceConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zerolog.New(io.Discard)
	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}

	cfg := &config.UserServiceConfig{
		Token: config.TokenConfig{
			TTL:           security.DefaultTokenTTL,
			SessionSecret: testSessionSecret,
			Issuer:        "userbase",
			Audience:      "userbase",
		},
		AppPasswordResetURL: "http://localhost:3000/reset-password",
		AppEmailVerifyURL:   "http://localhost:3000/verify-email",
	}

	hasher, err := security.NewCredentialManager(security.PasswordConfig{
		Algorithm:  security.AlgorithmBcrypt,
		BcryptCost: security.MinBcryptCost,
	})
	require.NoError(t, err)

	validator, err := validation.New()
	require.NoError(t, err)

	repo := repository.NewUserMemoryRepository(clock.Now)
	guard := normalizer.NewGuard(hasher, clock.Now)
	issuer := security.NewTokenIssuer(cfg.Token.TTL, security.WithClock(clock.Now))
	sender := &recordingSender{}

	return &fixture{
		clock:  clock,
		repo:   repo,
		sender: sender,
		users:  NewUserUsecase(&logger, repo, guard, validator),
		tokens: NewTokenUsecase(&logger, repo, guard, validator, issuer, sender, cfg),
		auth:   NewAuthUsecase(&logger, repo, hasher, cfg),
		cfg:    cfg,
	}
}

func (f *fixture) createAlice(t *testing.T) *model.User {
	t.Helper()
	user, err := f.users.CreateUser(context.Background(), CreateUserParams{
		Email:    "Alice@Example.com",
		Username: "Alice_99",
		Password: "Abcdef1!",
	})
	require.NoError(t, err)
	return user
}

// stored returns the persisted record including secrets.
func (f *fixture) stored(t *testing.T, id string) *model.User {
	t.Helper()
	user, err := f.repo.GetUserWithSecrets(context.Background(), id)
	require.NoError(t, err)
	return user
}

func ptr[T any](v T) *T { return &v }
