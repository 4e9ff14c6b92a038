package authenticator

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wishdoc/internal/config"
	"wishdoc/internal/services/user"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := New(&config.Config{SUPER_SECRET: "test-secret"})
	require.NoError(t, err)
	return a
}

func TestIssueAndVerify(t *testing.T) {
	a := newTestAuthenticator(t)

	token, err := a.IssueToken(user.Resolved{ID: "alice", ScreenName: "al", Role: user.RoleMember})
	require.NoError(t, err)

	resolved, err := a.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", resolved.ID)
	assert.Equal(t, "al", resolved.ScreenName)
	assert.Equal(t, user.RoleMember, resolved.Role)
}

func TestVerifyRejectsEmptyAndGarbage(t *testing.T) {
	a := newTestAuthenticator(t)
	ctx := context.Background()

	_, err := a.Verify(ctx, "")
	assert.Error(t, err)

	_, err = a.Verify(ctx, "not-a-token")
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a := newTestAuthenticator(t)

	other, err := New(&config.Config{SUPER_SECRET: "different-secret"})
	require.NoError(t, err)

	token, err := other.IssueToken(user.Resolved{ID: "alice"})
	require.NoError(t, err)

	_, err = a.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	a := newTestAuthenticator(t)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		UserID: "alice",
	})
	token, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = a.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	a := newTestAuthenticator(t)
	ctx := context.Background()

	token, err := a.IssueToken(user.Resolved{ID: "alice"})
	require.NoError(t, err)

	_, err = a.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, a.Revoke(ctx, token))

	_, err = a.Verify(ctx, token)
	assert.Error(t, err)

	// Other tokens stay valid.
	other, err := a.IssueToken(user.Resolved{ID: "bob"})
	require.NoError(t, err)
	_, err = a.Verify(ctx, other)
	assert.NoError(t, err)
}

func TestStateSignAndVerify(t *testing.T) {
	a := newTestAuthenticator(t)

	encoded, err := a.signState(OAuthState{
		CSRF:      "csrf-token",
		Redirect:  "/docs",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	})
	require.NoError(t, err)

	state, err := a.VerifyState(encoded)
	require.NoError(t, err)
	assert.Equal(t, "csrf-token", state.CSRF)
	assert.Equal(t, "/docs", state.Redirect)
}

func TestVerifyStateRejectsTampering(t *testing.T) {
	a := newTestAuthenticator(t)

	encoded, err := a.signState(OAuthState{
		CSRF:      "csrf-token",
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = a.VerifyState("x" + encoded[1:])
	assert.Error(t, err)

	_, err = a.VerifyState("garbage!!!")
	assert.Error(t, err)
}

func TestVerifyStateRejectsExpired(t *testing.T) {
	a := newTestAuthenticator(t)

	encoded, err := a.signState(OAuthState{
		CSRF:      "csrf-token",
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = a.VerifyState(encoded)
	assert.Error(t, err)
}

func TestOAuthDisabledWithoutConfig(t *testing.T) {
	a := newTestAuthenticator(t)

	assert.False(t, a.OAuthEnabled())

	_, err := a.LoginURL("/")
	assert.Error(t, err)
}
