package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"jobboard-serverless/internal/auth"
)

func TestVerifierRoundTrip(t *testing.T) {
	verifier := auth.NewVerifier(bcrypt.MinCost, time.Second)
	ctx := context.Background()

	hash, err := verifier.Hash(ctx, "correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	require.NoError(t, verifier.Verify(ctx, hash, "correct horse battery staple"))
	require.ErrorIs(t, verifier.Verify(ctx, hash, "wrong password"), auth.ErrInvalidCredentials)
}

func TestVerifierCostIsTunable(t *testing.T) {
	ctx := context.Background()

	low := auth.NewVerifier(bcrypt.MinCost, time.Second)
	hash, err := low.Hash(ctx, "some password here")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost, cost)

	// Out-of-range costs fall back to the library default.
	fallback := auth.NewVerifier(99, time.Second)
	hash, err = fallback.Hash(ctx, "some password here")
	require.NoError(t, err)

	cost, err = bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.DefaultCost, cost)
}

func TestVerifierSubDeadline(t *testing.T) {
	// Cost 12 takes hundreds of milliseconds; a one-millisecond deadline
	// cannot cover it, so the verifier must bail out instead of stalling.
	verifier := auth.NewVerifier(12, time.Millisecond)

	hash, err := auth.NewVerifier(bcrypt.MinCost, time.Second).Hash(context.Background(), "some password here")
	require.NoError(t, err)

	start := time.Now()
	err = verifier.Verify(context.Background(), hash, "some password here")
	require.ErrorIs(t, err, auth.ErrVerifyTimeout)
	require.Less(t, time.Since(start), time.Second)
}

func TestVerifierHashHonoursCancelledContext(t *testing.T) {
	verifier := auth.NewVerifier(12, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := verifier.Hash(ctx, "some password here")
	require.ErrorIs(t, err, auth.ErrVerifyTimeout)
}
