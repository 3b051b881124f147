package auth_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobboard-serverless/internal/auth"
)

// Session is the one place bootstrap code asks "who is logged in"; whatever
// is wrong with the token, the answer is nil, never an error.
func TestSessionNeverFails(t *testing.T) {
	f := newServiceFixture(t)

	require.Nil(t, f.service.Session(""))
	require.Nil(t, f.service.Session("   "))
	require.Nil(t, f.service.Session("garbage"))
	require.Nil(t, f.service.Session("a.b.c"))

	expired := signTestToken(t, testSecret, auth.TokenKindAccess, time.Now().UTC().Add(-time.Minute))
	require.Nil(t, f.service.Session(expired))

	// A refresh token is not a session, no matter how fresh.
	refresh := signTestToken(t, testSecret, auth.TokenKindRefresh, time.Now().UTC().Add(time.Hour))
	require.Nil(t, f.service.Session(refresh))

	forged := signTestToken(t, "some-other-secret", auth.TokenKindAccess, time.Now().UTC().Add(time.Hour))
	require.Nil(t, f.service.Session(forged))
}

func TestSessionResolvesValidToken(t *testing.T) {
	f := newServiceFixture(t)
	principal := f.register(t)

	pair, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	session := f.service.Session(pair.AccessToken)
	require.NotNil(t, session)
	require.Equal(t, principal.ID, session.ID)
	require.Equal(t, principal.Email, session.Email)
	require.Equal(t, principal.Role, session.Role)

	// Safe to call redundantly; the answer does not drift.
	again := f.service.Session(pair.AccessToken)
	require.Equal(t, session, again)
}

func TestSessionFromRequest(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t)

	pair, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/auth/me", nil)
	require.Nil(t, f.service.SessionFromRequest(r))

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	require.Nil(t, f.service.SessionFromRequest(r))

	r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	require.NotNil(t, f.service.SessionFromRequest(r))
}
