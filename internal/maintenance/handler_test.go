package maintenance_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobboard-serverless/internal/maintenance"
	"jobboard-serverless/internal/observability"
)

type fakeCleaner struct {
	deleted int64
	calls   int
}

func (c *fakeCleaner) CleanupStaleLoginAttempts(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	c.calls++
	if _, ok := ctx.Deadline(); !ok {
		panic("cleanup must run under a deadline")
	}
	return c.deleted, nil
}

func newCleanupFixture(secret string) (*fakeCleaner, *maintenance.CleanupHandler) {
	cleaner := &fakeCleaner{deleted: 7}
	logger := observability.NewLoggerWithOutput(&bytes.Buffer{})
	return cleaner, maintenance.NewCleanupHandler(cleaner, logger, secret, 30*24*time.Hour, 500)
}

func TestCleanupHiddenWithoutSecret(t *testing.T) {
	cleaner, handler := newCleanupFixture("")

	recorder := httptest.NewRecorder()
	handler.Handle(recorder, httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil))

	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Zero(t, cleaner.calls)
}

func TestCleanupRejectsWrongSecret(t *testing.T) {
	cleaner, handler := newCleanupFixture("cron-secret")

	r := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	recorder := httptest.NewRecorder()
	handler.Handle(recorder, r)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Zero(t, cleaner.calls)
}

func TestCleanupRuns(t *testing.T) {
	cleaner, handler := newCleanupFixture("cron-secret")

	r := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	r.Header.Set("Authorization", "Bearer cron-secret")
	recorder := httptest.NewRecorder()
	handler.Handle(recorder, r)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 1, cleaner.calls)
	require.Contains(t, recorder.Body.String(), `"deleted_login_attempts":7`)
}
