package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"jobboard-serverless/internal/db"
	"jobboard-serverless/internal/observability"
)

var ErrNotFound = errors.New("job not found")

type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Salary      string    `json:"salary"`
	Description string    `json:"description"`
	PostedBy    string    `json:"posted_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type JobInput struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	Description string `json:"description"`
}

// Repository persists job postings through the shared lazy pool. Listings and
// lookups are idempotent reads and go through the retry policy; writes never
// do — a retried insert whose first attempt landed would duplicate the
// posting.
type Repository struct {
	logger *observability.Logger
}

func NewRepository(logger *observability.Logger) *Repository {
	return &Repository{logger: logger}
}

func (r *Repository) List(ctx context.Context) ([]Job, error) {
	return db.WithRetry(ctx, r.logger, "list_jobs", 0, 0, func(ctx context.Context) (db.ReadOnly[[]Job], error) {
		jobs, err := r.list(ctx)
		if err != nil {
			return db.ReadOnly[[]Job]{}, err
		}
		return db.Read(jobs), nil
	})
}

func (r *Repository) list(ctx context.Context) ([]Job, error) {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, title, company, location, salary, description, COALESCE(posted_by::text, ''), created_at, updated_at
		FROM jobs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0)
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Salary, &j.Description, &j.PostedBy, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Job, error) {
	type lookup struct {
		job   Job
		found bool
	}
	result, err := db.WithRetry(ctx, r.logger, "get_job", 0, 0, func(ctx context.Context) (db.ReadOnly[lookup], error) {
		j, err := r.get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return db.Read(lookup{}), nil
		}
		if err != nil {
			return db.ReadOnly[lookup]{}, err
		}
		return db.Read(lookup{job: j, found: true}), nil
	})
	if err != nil {
		return Job{}, err
	}
	if !result.found {
		return Job{}, ErrNotFound
	}

	return result.job, nil
}

func (r *Repository) get(ctx context.Context, id string) (Job, error) {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return Job{}, err
	}
	defer conn.Release()

	var j Job
	err = conn.QueryRow(ctx, `
		SELECT id, title, company, location, salary, description, COALESCE(posted_by::text, ''), created_at, updated_at
		FROM jobs
		WHERE id = $1
	`, id).Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Salary, &j.Description, &j.PostedBy, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("query job: %w", err)
	}

	return j, nil
}

func (r *Repository) Create(ctx context.Context, postedBy string, input JobInput) (Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Job{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	j := Job{
		ID:          id.String(),
		Title:       input.Title,
		Company:     input.Company,
		Location:    input.Location,
		Salary:      input.Salary,
		Description: input.Description,
		PostedBy:    postedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	conn, err := db.Acquire(ctx)
	if err != nil {
		return Job{}, err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO jobs (id, title, company, location, salary, description, posted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, j.ID, j.Title, j.Company, j.Location, j.Salary, j.Description, j.PostedBy, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return Job{}, fmt.Errorf("insert job: %w", err)
	}

	return j, nil
}

func (r *Repository) Update(ctx context.Context, id string, input JobInput) (Job, error) {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return Job{}, err
	}
	defer conn.Release()

	var j Job
	err = conn.QueryRow(ctx, `
		UPDATE jobs
		SET title = $2, company = $3, location = $4, salary = $5, description = $6, updated_at = $7
		WHERE id = $1
		RETURNING id, title, company, location, salary, description, COALESCE(posted_by::text, ''), created_at, updated_at
	`, id, input.Title, input.Company, input.Location, input.Salary, input.Description, time.Now().UTC()).
		Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Salary, &j.Description, &j.PostedBy, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("update job: %w", err)
	}

	return j, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
