package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrVerifyTimeout means a hash computation blew its sub-deadline. The work
// factor is runtime-tunable, so a misconfigured cost surfaces here instead of
// stalling a worker until the request ceiling fires.
var ErrVerifyTimeout = errors.New("password verification timed out")

const defaultVerifyTimeout = 5 * time.Second

// dummyHash is compared against when the account does not exist, so the
// response time does not reveal whether an email is registered. The comparison
// result is always discarded.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0a7bPEXh3mBvoWxGRlqA1RBZhGi"

// Verifier hashes and verifies passwords under a bounded sub-deadline, nested
// inside the request ceiling.
type Verifier struct {
	cost    int
	timeout time.Duration
}

func NewVerifier(cost int, timeout time.Duration) *Verifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	return &Verifier{cost: cost, timeout: timeout}
}

func (v *Verifier) Hash(ctx context.Context, plaintext string) (string, error) {
	type result struct {
		hash []byte
		err  error
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resultCh := make(chan result, 1)
	go func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
		resultCh <- result{hash: hash, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrVerifyTimeout
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("hash password: %w", res.err)
		}
		return string(res.hash), nil
	}
}

// Verify compares plaintext against storedHash. The bcrypt comparison itself
// is constant-time; a mismatch comes back as ErrInvalidCredentials.
func (v *Verifier) Verify(ctx context.Context, storedHash, plaintext string) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext))
	}()

	select {
	case <-ctx.Done():
		return ErrVerifyTimeout
	case err := <-errCh:
		if err != nil {
			return ErrInvalidCredentials
		}
		return nil
	}
}
