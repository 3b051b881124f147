package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobboard-serverless/internal/db"
	"jobboard-serverless/internal/observability"
)

const (
	defaultMaxAttempts = 5
	defaultLockWindow  = 15 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrNotFound           = errors.New("principal not found")
)

// ErrLoginLocked carries the moment the lockout window ends.
type ErrLoginLocked struct {
	Until time.Time
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}

// Store is the persistence surface the service needs. The pgx-backed
// Repository implements it; tests substitute an in-memory fake.
type Store interface {
	CreatePrincipal(ctx context.Context, principal Principal) error
	GetByEmail(ctx context.Context, email string) (Principal, error)
	GetByID(ctx context.Context, id string) (Principal, error)
	GetLoginAttempt(ctx context.Context, email string) (LoginAttempt, error)
	RegisterFailedAttempt(ctx context.Context, email string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error)
	ResetLoginAttempt(ctx context.Context, email string) error
}

// PasswordVerifier is what the service requires from the credential layer.
type PasswordVerifier interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, storedHash, plaintext string) error
}

type Service struct {
	store        Store
	verifier     PasswordVerifier
	issuer       *Issuer
	logger       *observability.Logger
	maxAttempts  int
	lockDuration time.Duration
}

func NewService(store Store, verifier PasswordVerifier, issuer *Issuer, logger *observability.Logger) *Service {
	return &Service{
		store:        store,
		verifier:     verifier,
		issuer:       issuer,
		logger:       logger,
		maxAttempts:  defaultMaxAttempts,
		lockDuration: defaultLockWindow,
	}
}

func (s *Service) WithSecurityConfig(maxAttempts int, lockDuration time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
}

// Register creates a new principal. The email must be unused; duplicate
// registrations come back as ErrDuplicateEmail.
func (s *Service) Register(ctx context.Context, email, password string) (Principal, error) {
	email = normalizeEmail(email)

	hash, err := s.verifier.Hash(ctx, password)
	if err != nil {
		return Principal{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Principal{}, err
	}

	now := time.Now().UTC()
	principal := Principal{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
		Role:         "member",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreatePrincipal(ctx, principal); err != nil {
		return Principal{}, err
	}

	return principal, nil
}

// Login authenticates a principal and mints a token pair. The lockout check
// runs before any hash computation, so a locked identity costs no bcrypt work.
// Unknown-account and wrong-password failures are indistinguishable: both do
// one hash comparison and both surface ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)

	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	attempt, err := s.store.GetLoginAttempt(ctx, email)
	if err != nil {
		return TokenPair{}, err
	}
	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		return TokenPair{}, ErrLoginLocked{Until: *attempt.LockedUntil}
	}

	principal, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn a comparison so timing does not reveal that the
			// account does not exist.
			_ = s.verifier.Verify(ctx, dummyHash, password)
			return TokenPair{}, s.recordFailure(ctx, email, now)
		}
		return TokenPair{}, err
	}

	if err := s.verifier.Verify(ctx, principal.PasswordHash, password); err != nil {
		if errors.Is(err, ErrVerifyTimeout) {
			return TokenPair{}, err
		}
		return TokenPair{}, s.recordFailure(ctx, email, now)
	}

	if !principal.Active {
		return TokenPair{}, s.recordFailure(ctx, email, now)
	}

	if err := s.store.ResetLoginAttempt(ctx, email); err != nil {
		return TokenPair{}, err
	}

	return s.issuer.Issue(principal)
}

// Refresh exchanges a refresh token for a new pair. Only refresh-kind tokens
// are accepted, expired tokens are rejected outright, and the principal must
// still exist and be active.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, ErrTokenInvalid
	}

	claims, err := s.issuer.Parse(refreshToken, TokenKindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	// Existence check wrapped in the read-only retry policy. A definitive
	// not-found is a successful read, not a transient failure, so it is
	// never retried.
	type lookup struct {
		principal Principal
		found     bool
	}
	result, err := db.WithRetry(ctx, s.logger, "refresh_principal_lookup", 0, 0, func(ctx context.Context) (db.ReadOnly[lookup], error) {
		p, err := s.store.GetByID(ctx, claims.Subject)
		if errors.Is(err, ErrNotFound) {
			return db.Read(lookup{}), nil
		}
		if err != nil {
			return db.ReadOnly[lookup]{}, err
		}
		return db.Read(lookup{principal: p, found: true}), nil
	})
	if err != nil {
		return TokenPair{}, err
	}
	if !result.found || !result.principal.Active {
		return TokenPair{}, ErrTokenInvalid
	}

	return s.issuer.Issue(result.principal)
}

func (s *Service) recordFailure(ctx context.Context, email string, now time.Time) error {
	lockedUntil, err := s.store.RegisterFailedAttempt(ctx, email, s.maxAttempts, s.lockDuration, now)
	if err != nil {
		return err
	}
	if lockedUntil != nil {
		return ErrLoginLocked{Until: *lockedUntil}
	}
	return ErrInvalidCredentials
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
