package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobboard-serverless/internal/auth"
)

func newHandlerFixture(t *testing.T) (*serviceFixture, *auth.Handler) {
	t.Helper()
	f := newServiceFixture(t)
	return f, auth.NewHandler(f.service)
}

func postJSON(handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler(recorder, r)
	return recorder
}

func TestRegisterEndpoint(t *testing.T) {
	_, handler := newHandlerFixture(t)

	recorder := postJSON(handler.Register, "/auth/register", `{"email":"dev@example.com","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var principal auth.Principal
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &principal))
	require.Equal(t, "dev@example.com", principal.Email)
	require.NotEmpty(t, principal.ID)
	require.NotContains(t, recorder.Body.String(), "password_hash")

	// Same email again is a conflict, not a 200 with an embedded error.
	recorder = postJSON(handler.Register, "/auth/register", `{"email":"dev@example.com","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusConflict, recorder.Code)
}

func TestRegisterEndpointValidation(t *testing.T) {
	_, handler := newHandlerFixture(t)

	recorder := postJSON(handler.Register, "/auth/register", `{"email":"not-an-email","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = postJSON(handler.Register, "/auth/register", `{"email":"dev@example.com","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = postJSON(handler.Register, "/auth/register", `{"email":`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLoginEndpoint(t *testing.T) {
	f, handler := newHandlerFixture(t)
	f.register(t)

	recorder := postJSON(handler.Login, "/auth/login", `{"email":"`+testEmail+`","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)
	require.NotContains(t, recorder.Body.String(), "error")
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f, handler := newHandlerFixture(t)
	f.register(t)

	unknown := postJSON(handler.Login, "/auth/login", `{"email":"nobody@example.com","password":"`+testPassword+`"}`)
	wrongPassword := postJSON(handler.Login, "/auth/login", `{"email":"`+testEmail+`","password":"not the password"}`)

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	require.Equal(t, unknown.Body.String(), wrongPassword.Body.String())
}

func TestLoginLockoutEndpoint(t *testing.T) {
	f, handler := newHandlerFixture(t)
	f.register(t)

	body := `{"email":"` + testEmail + `","password":"wrong password here"}`
	var recorder *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		recorder = postJSON(handler.Login, "/auth/login", body)
	}

	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	retryAfter, err := strconv.Atoi(recorder.Header().Get("Retry-After"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, retryAfter, 1)

	// Lockout responses stay machine-readable and free of internals.
	require.JSONEq(t, `{"error":"login temporarily locked"}`, recorder.Body.String())
}

func TestRefreshEndpoint(t *testing.T) {
	f, handler := newHandlerFixture(t)
	f.register(t)

	pair, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	recorder := postJSON(handler.Refresh, "/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var refreshed auth.TokenPair
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &refreshed))

	// The new access token is good for /auth/me.
	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+refreshed.AccessToken)
	meRecorder := httptest.NewRecorder()
	handler.Me(meRecorder, r)
	require.Equal(t, http.StatusOK, meRecorder.Code)
}

func TestRefreshEndpointRejectsWrongKindAndExpired(t *testing.T) {
	f, handler := newHandlerFixture(t)
	f.register(t)

	pair, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	recorder := postJSON(handler.Refresh, "/auth/refresh", `{"refresh_token":"`+pair.AccessToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	expired := signTestToken(t, testSecret, auth.TokenKindRefresh, time.Now().UTC().Add(-time.Minute))
	recorder = postJSON(handler.Refresh, "/auth/refresh", `{"refresh_token":"`+expired+`"}`)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = postJSON(handler.Refresh, "/auth/refresh", `{"refresh_token":"garbage"}`)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestMeEndpoint(t *testing.T) {
	f, handler := newHandlerFixture(t)
	principal := f.register(t)

	pair, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	recorder := httptest.NewRecorder()
	handler.Me(recorder, r)

	require.Equal(t, http.StatusOK, recorder.Code)
	var session auth.Principal
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &session))
	require.Equal(t, principal.ID, session.ID)

	// No token, expired token: 401, never 200.
	recorder = httptest.NewRecorder()
	handler.Me(recorder, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	expired := signTestToken(t, testSecret, auth.TokenKindAccess, time.Now().UTC().Add(-time.Minute))
	r = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+expired)
	recorder = httptest.NewRecorder()
	handler.Me(recorder, r)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
