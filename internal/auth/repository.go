package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"jobboard-serverless/internal/db"
)

const uniqueViolation = "23505"

// Repository is the pgx-backed Store. Every operation checks its connection
// out through the lazy pool manager, so nothing touches the database until a
// request actually needs it.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) CreatePrincipal(ctx context.Context, principal Principal) error {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, principal.ID, principal.Email, principal.PasswordHash, principal.Role, principal.Active, principal.CreatedAt, principal.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert principal: %w", err)
	}

	return nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Principal, error) {
	return r.getPrincipal(ctx, `
		SELECT id, email, password_hash, role, active, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
}

func (r *Repository) GetByID(ctx context.Context, id string) (Principal, error) {
	return r.getPrincipal(ctx, `
		SELECT id, email, password_hash, role, active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
}

func (r *Repository) getPrincipal(ctx context.Context, query, arg string) (Principal, error) {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return Principal{}, err
	}
	defer conn.Release()

	var principal Principal
	err = conn.QueryRow(ctx, query, arg).Scan(
		&principal.ID,
		&principal.Email,
		&principal.PasswordHash,
		&principal.Role,
		&principal.Active,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, fmt.Errorf("query principal: %w", err)
	}

	return principal, nil
}

func (r *Repository) GetLoginAttempt(ctx context.Context, email string) (LoginAttempt, error) {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return LoginAttempt{}, err
	}
	defer conn.Release()

	attempt := LoginAttempt{Email: email}

	var lockedUntil *time.Time
	err = conn.QueryRow(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_login_attempts
		WHERE email = $1
	`, email).Scan(&attempt.FailedAttempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attempt, nil
		}
		return LoginAttempt{}, fmt.Errorf("query login attempt: %w", err)
	}
	if lockedUntil != nil {
		value := lockedUntil.UTC()
		attempt.LockedUntil = &value
	}

	return attempt, nil
}

// RegisterFailedAttempt increments the failure counter under a row lock and
// returns the lockout expiry when the threshold is crossed. Crossing the
// threshold resets the counter, so the lock window is fixed regardless of how
// many attempts pile up past it.
func (r *Repository) RegisterFailedAttempt(ctx context.Context, email string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error) {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin login attempt tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var failed int
	var lockedUntil *time.Time
	err = tx.QueryRow(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_login_attempts
		WHERE email = $1
		FOR UPDATE
	`, email).Scan(&failed, &lockedUntil)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lock login attempt row: %w", err)
	}

	if lockedUntil != nil && now.Before(*lockedUntil) {
		until := lockedUntil.UTC()
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit existing lock tx: %w", err)
		}
		return &until, nil
	}

	failed++
	var nextLock *time.Time
	if failed >= maxAttempts {
		until := now.UTC().Add(lockDuration)
		nextLock = &until
		failed = 0
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO auth_login_attempts (email, failed_attempts, locked_until, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email)
		DO UPDATE SET
			failed_attempts = EXCLUDED.failed_attempts,
			locked_until = EXCLUDED.locked_until,
			updated_at = EXCLUDED.updated_at
	`, email, failed, nextLock, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("upsert failed login attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit login attempt tx: %w", err)
	}

	return nextLock, nil
}

func (r *Repository) ResetLoginAttempt(ctx context.Context, email string) error {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		DELETE FROM auth_login_attempts
		WHERE email = $1
	`, email)
	if err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}

	return nil
}

// CleanupStaleLoginAttempts batch-deletes attempt rows whose window has long
// passed. Called from the maintenance endpoint, never from a request path.
func (r *Repository) CleanupStaleLoginAttempts(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	conn, err := db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	cutoff := time.Now().UTC().Add(-retention)

	tag, err := conn.Exec(ctx, `
		WITH stale AS (
			SELECT email
			FROM auth_login_attempts
			WHERE updated_at < $1
			  AND (locked_until IS NULL OR locked_until < NOW())
			ORDER BY updated_at ASC
			LIMIT $2
		)
		DELETE FROM auth_login_attempts t
		USING stale
		WHERE t.email = stale.email
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale login attempts: %w", err)
	}

	return tag.RowsAffected(), nil
}
