package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vasapolrittideah/userbase-api/shared/security"
)

func TestIssuePasswordResetToken_StoresDigestOnly(t *testing.T) {
	f := newFixture(t)
	alice := f.createAlice(t)
	id := alice.ID.Hex()

	token, err := f.tokens.IssuePasswordResetToken(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	stored := f.stored(t, id)
	assert.NotEqual(t, token, stored.PasswordResetTokenHash)
	assert.Equal(t, security.DigestToken(security.PurposePasswordReset, token), stored.PasswordResetTokenHash)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.True(t, stored.PasswordResetExpires.Equal(f.clock.Now().Add(security.DefaultTokenTTL)))
	assert.Nil(t, stored.EmailVerifyExpires, "reset expiry must not land on the verification field")
	assert.Empty(t, stored.EmailVerifyTokenHash)
}

func TestIssueToken_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.tokens.IssuePasswordResetToken(context.Background(), bson.NewObjectID().Hex())
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.tokens.IssueEmailVerifyToken(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRedeemPasswordResetToken(t *testing.T) {
	f := newFixture(t)
	alice := f.createAlice(t)
	id := alice.ID.Hex()

	token, err := f.tokens.IssuePasswordResetToken(context.Background(), id)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.tokens.RedeemPasswordResetToken(context.Background(), id, token, "NewPass1!"))

	stored := f.stored(t, id)
	assert.Empty(t, stored.PasswordResetTokenHash)
	assert.Nil(t, stored.PasswordResetExpires)
	require.NotNil(t, stored.PasswordChangedAt)
	assert.True(t, stored.PasswordChangedAt.Equal(f.clock.Now().Add(-time.Second)))

	_, err = f.auth.VerifyLogin(context.Background(), "alice@example.com", "NewPass1!")
	require.NoError(t, err)

	err = f.tokens.RedeemPasswordResetToken(context.Background(), id, token, "Other1!pass")
	require.ErrorIs(t, err, ErrTokenInvalid, "a redeemed token cannot be used twice")
}

func TestRedeemPasswordResetToken_Rejections(t *testing.T) {
	f := newFixture(t)
	alice := f.createAlice(t)
	id := alice.ID.Hex()

	token, err := f.tokens.IssuePasswordResetToken(context.Background(), id)
	require.NoError(t, err)
	verifyToken, err := f.tokens.IssueEmailVerifyToken(context.Background(), id)
	require.NoError(t, err)

	tests := []struct {
		name  string
		id    string
		token string
	}{
		{"wrong token", id, "deadbeef"},
		{"empty token", id, ""},
		{"token of another purpose", id, verifyToken},
		{"unknown user", bson.NewObjectID().Hex(), token},
		{"malformed id", "nope", token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.tokens.RedeemPasswordResetToken(context.Background(), tt.id, tt.token, "NewPass1!")
			require.ErrorIs(t, err, ErrTokenInvalid)
		})
	}

	assert.Nil(t, f.stored(t, id).PasswordChangedAt, "rejected redemptions must not touch the password")
}

func TestRedeemPasswordResetToken_Expired(t *testing.T) {
	f := newFixture(t)
	alice := f.createAlice(t)
	id := alice.ID.Hex()

	token, err := f.tokens.IssuePasswordResetToken(context.Background(), id)
	require.NoError(t, err)

	f.clock.Advance(601 * time.Second)
	err = f.tokens.RedeemPasswordResetToken(context.Background(), id, token, "NewPass1!")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRedeemPasswordResetToken_WeakPassword(t *testing.T) {
	f := newFixture(t)
	alice := f.createAlice(t)
	id := alice.ID.Hex()

	token, err := f.tokens.IssuePasswordResetToken(context.Background(), id)
	require.NoError(t, err)

	err = f.tokens.RedeemPasswordResetToken(context.Background(), id, token, "weak")
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.tokens.RedeemPasswordResetToken(context.Background(), id, token, "NewPass1!"),
		"a rejected password must leave the token live")
}

func TestReissueInvalidatesPreviousToken(t *testing.T) {
	f := newFixture(t)
	alice := f.createAlice(t)
	id := alice.ID.Hex()

	first, err := f.tokens.IssuePasswordResetToken(context.Background(), id)
	require.NoError(t, err)
	second, err := f.tokens.IssuePasswordResetToken(context.Background(), id)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	err = f.tokens.RedeemPasswordResetToken(context.Background(), id, first, "NewPass1!")
	require.ErrorIs(t, err, ErrTokenInvalid)
	require.NoError(t, f.tokens.RedeemPasswordResetToken(context.Background(), id, second, "NewPass1!"))
}

func TestRedeemEmailVerifyToken(t *testing.T) {
	f := newFixture(t)
	alice := f.createAlice(t)
	id := alice.ID.Hex()

	token, err := f.tokens.IssueEmailVerifyToken(context.Background(), id)
	require.NoError(t, err)
	before := f.stored(t, id)
	require.NotNil(t, before.EmailVerifyExpires)
	assert.Nil(t, before.PasswordResetExpires)

	require.NoError(t, f.tokens.RedeemEmailVerifyToken(context.Background(), id, token))

	after := f.stored(t, id)
	assert.True(t, after.IsEmailVerified)
	assert.Empty(t, after.EmailVerifyTokenHash)
	assert.Nil(t, after.EmailVerifyExpires)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)

	require.ErrorIs(t, f.tokens.RedeemEmailVerifyToken(context.Background(), id, token), ErrTokenInvalid)
}

func TestRedeemEmailVerifyToken_Expired(t *testing.T) {
	f := newFixture(t)
	alice := f.createAlice(t)
	id := alice.ID.Hex()

	token, err := f.tokens.IssueEmailVerifyToken(context.Background(), id)
	require.NoError(t, err)

	f.clock.Advance(security.DefaultTokenTTL)
	require.ErrorIs(t, f.tokens.RedeemEmailVerifyToken(context.Background(), id, token), ErrTokenInvalid)
	assert.False(t, f.stored(t, id).IsEmailVerified)
}

func TestRequestPasswordReset(t *testing.T) {
	f := newFixture(t)
	alice := f.createAlice(t)

	require.NoError(t, f.tokens.RequestPasswordReset(context.Background(), " ALICE@example.com"))
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, []string{"alice@example.com"}, f.sender.sent[0].to)
	assert.Contains(t, f.sender.sent[0].body, f.cfg.AppPasswordResetURL)
	assert.Contains(t, f.sender.sent[0].body, "id="+alice.ID.Hex())

	token := f.sender.lastToken(t)
	require.NoError(t, f.tokens.RedeemPasswordResetToken(context.Background(), alice.ID.Hex(), token, "NewPass1!"))
}

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	f.createAlice(t)

	require.NoError(t, f.tokens.RequestPasswordReset(context.Background(), "nobody@example.com"))
	assert.Empty(t, f.sender.sent)
}

func TestRequestEmailVerification(t *testing.T) {
	f := newFixture(t)
	alice := f.createAlice(t)

	require.NoError(t, f.tokens.RequestEmailVerification(context.Background(), alice.ID.Hex()))
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].body, f.cfg.AppEmailVerifyURL)

	token := f.sender.lastToken(t)
	require.NoError(t, f.tokens.RedeemEmailVerifyToken(context.Background(), alice.ID.Hex(), token))
	assert.True(t, f.stored(t, alice.ID.Hex()).IsEmailVerified)

	err := f.tokens.RequestEmailVerification(context.Background(), bson.NewObjectID().Hex())
	require.ErrorIs(t, err, ErrUserNotFound)
}
