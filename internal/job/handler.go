package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"jobboard-serverless/internal/auth"
	"jobboard-serverless/internal/db"
)

const maxJSONBodyBytes = 1 << 20

// Store is the persistence surface the handler needs; tests substitute a
// fake.
type Store interface {
	List(ctx context.Context) ([]Job, error)
	Get(ctx context.Context, id string) (Job, error)
	Create(ctx context.Context, postedBy string, input JobInput) (Job, error)
	Update(ctx context.Context, id string, input JobInput) (Job, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.List(r.Context())
	if err != nil {
		writeStoreError(w, err, "failed to list jobs")
		return
	}

	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	j, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeStoreError(w, err, "failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, j)
}

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	j, err := h.store.Create(r.Context(), principal.ID, input)
	if err != nil {
		writeStoreError(w, err, "failed to create job")
		return
	}

	writeJSON(w, http.StatusCreated, j)
}

func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	j, err := h.store.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeStoreError(w, err, "failed to update job")
		return
	}

	writeJSON(w, http.StatusOK, j)
}

func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeStoreError(w, err, "failed to delete job")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseInput(w http.ResponseWriter, r *http.Request) (JobInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input JobInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return JobInput{}, false
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Company = strings.TrimSpace(input.Company)
	input.Location = strings.TrimSpace(input.Location)
	input.Salary = strings.TrimSpace(input.Salary)
	input.Description = strings.TrimSpace(input.Description)

	if input.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return JobInput{}, false
	}
	if !utf8.ValidString(input.Title) || len(input.Title) > 150 {
		writeError(w, http.StatusBadRequest, "title is invalid")
		return JobInput{}, false
	}
	if input.Company == "" {
		writeError(w, http.StatusBadRequest, "company is required")
		return JobInput{}, false
	}
	if !utf8.ValidString(input.Company) || len(input.Company) > 150 {
		writeError(w, http.StatusBadRequest, "company is invalid")
		return JobInput{}, false
	}
	if !utf8.ValidString(input.Location) || len(input.Location) > 150 {
		writeError(w, http.StatusBadRequest, "location is invalid")
		return JobInput{}, false
	}
	if !utf8.ValidString(input.Salary) || len(input.Salary) > 100 {
		writeError(w, http.StatusBadRequest, "salary is invalid")
		return JobInput{}, false
	}
	if !utf8.ValidString(input.Description) || len(input.Description) > 5000 {
		writeError(w, http.StatusBadRequest, "description is invalid")
		return JobInput{}, false
	}

	return input, true
}

func writeStoreError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, db.ErrPoolUnavailable) || errors.Is(err, db.ErrPoolTimeout) {
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		return
	}

	sentry.CaptureException(err)
	writeError(w, http.StatusInternalServerError, message)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
