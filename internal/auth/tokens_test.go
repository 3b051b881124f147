package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"jobboard-serverless/internal/auth"
)

const testSecret = "test-secret-0123456789"

func testPrincipal() auth.Principal {
	return auth.Principal{
		ID:     "0192aa7e-1111-7abc-9def-0123456789ab",
		Email:  "dev@example.com",
		Role:   "member",
		Active: true,
	}
}

// signTestToken crafts a token outside the issuer so expiry and kind can be
// forced.
func signTestToken(t *testing.T, secret, kind string, expiresAt time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   testPrincipal().ID,
		"email": testPrincipal().Email,
		"role":  "member",
		"iat":   time.Now().UTC().Add(-time.Hour).Unix(),
		"exp":   expiresAt.Unix(),
		"typ":   kind,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestIssueAndParse(t *testing.T) {
	issuer := auth.NewIssuer(testSecret, time.Minute, time.Hour)

	pair, err := issuer.Issue(testPrincipal())
	require.NoError(t, err)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, int64(60), pair.ExpiresIn)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := issuer.Parse(pair.AccessToken, auth.TokenKindAccess)
	require.NoError(t, err)
	require.Equal(t, testPrincipal().ID, claims.Subject)
	require.Equal(t, testPrincipal().Email, claims.Email)
	require.Equal(t, "member", claims.Role)

	claims, err = issuer.Parse(pair.RefreshToken, auth.TokenKindRefresh)
	require.NoError(t, err)
	require.Equal(t, auth.TokenKindRefresh, claims.Kind)
}

func TestTokenKindIsolation(t *testing.T) {
	issuer := auth.NewIssuer(testSecret, time.Minute, time.Hour)

	pair, err := issuer.Issue(testPrincipal())
	require.NoError(t, err)

	_, err = issuer.Parse(pair.AccessToken, auth.TokenKindRefresh)
	require.ErrorIs(t, err, auth.ErrWrongTokenKind)

	_, err = issuer.Parse(pair.RefreshToken, auth.TokenKindAccess)
	require.ErrorIs(t, err, auth.ErrWrongTokenKind)
}

func TestParseExpiredToken(t *testing.T) {
	issuer := auth.NewIssuer(testSecret, time.Minute, time.Hour)

	expired := signTestToken(t, testSecret, auth.TokenKindAccess, time.Now().UTC().Add(-time.Minute))
	_, err := issuer.Parse(expired, auth.TokenKindAccess)
	require.ErrorIs(t, err, auth.ErrTokenExpired)

	expiredRefresh := signTestToken(t, testSecret, auth.TokenKindRefresh, time.Now().UTC().Add(-time.Minute))
	_, err = issuer.Parse(expiredRefresh, auth.TokenKindRefresh)
	require.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestParseRejectsForgedTokens(t *testing.T) {
	issuer := auth.NewIssuer(testSecret, time.Minute, time.Hour)

	forged := signTestToken(t, "some-other-secret", auth.TokenKindAccess, time.Now().UTC().Add(time.Hour))
	_, err := issuer.Parse(forged, auth.TokenKindAccess)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)

	_, err = issuer.Parse("not.a.token", auth.TokenKindAccess)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)

	pair, err := issuer.Issue(testPrincipal())
	require.NoError(t, err)
	_, err = issuer.Parse(pair.AccessToken+"tampered", auth.TokenKindAccess)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}
