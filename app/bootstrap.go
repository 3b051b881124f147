package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"jobboard-serverless/internal/auth"
	"jobboard-serverless/internal/db"
	"jobboard-serverless/internal/job"
	"jobboard-serverless/internal/maintenance"
	"jobboard-serverless/internal/observability"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the whole application. The database pool is only configured
// here, never constructed: the first request that needs a connection builds
// it. A cold start therefore serves /health immediately even when the
// database is unreachable.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development"), os.Getenv("APP_RELEASE")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	db.Configure(db.Config{
		URL:            databaseURL,
		MaxConns:       int32(envIntOrDefault("DB_POOL_MAX_CONNS", 15)),
		MinConns:       int32(envIntOrDefault("DB_POOL_MIN_CONNS", 0)),
		AcquireTimeout: envSecondsOrDefault("DB_POOL_ACQUIRE_TIMEOUT_SECONDS", 5),
		ConnRecycle:    envMinutesOrDefault("DB_POOL_RECYCLE_MINUTES", 30),
		PrePing:        EnvBoolOrDefault("DB_POOL_PRE_PING", true),
	})

	if options.RunMigrations {
		if err := db.RunMigrations(context.Background()); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	verifier := auth.NewVerifier(
		envIntOrDefault("BCRYPT_COST", 10),
		envSecondsOrDefault("VERIFY_TIMEOUT_SECONDS", 5),
	)
	issuer := auth.NewIssuer(
		jwtSecret,
		envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
		envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 168),
	)

	authRepo := auth.NewRepository()
	authService := auth.NewService(authRepo, verifier, issuer, logger)
	authService.WithSecurityConfig(
		envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		envMinutesOrDefault("LOGIN_LOCK_MINUTES", 15),
	)
	authHandler := auth.NewHandler(authService)

	jobRepo := job.NewRepository(logger)
	jobHandler := job.NewHandler(jobRepo)

	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("AUTH_LOGIN_ATTEMPT_RETENTION_DAYS", 30),
		envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
	)

	loginLimiter := auth.NewLoginRateLimiter(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	mux := http.NewServeMux()
	mux.Handle("POST /auth/register", loginLimiter.Middleware(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("GET /auth/me", authHandler.Me)
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler)
	mux.HandleFunc("GET /jobs", jobHandler.ListJobs)
	mux.HandleFunc("GET /jobs/{id}", jobHandler.GetJob)
	mux.Handle("POST /jobs", auth.Middleware(authService, http.HandlerFunc(jobHandler.CreateJob)))
	mux.Handle("PUT /jobs/{id}", auth.Middleware(authService, http.HandlerFunc(jobHandler.UpdateJob)))
	mux.Handle("DELETE /jobs/{id}", auth.Middleware(authService, http.HandlerFunc(jobHandler.DeleteJob)))
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)

	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger,
			observability.DeadlineMiddleware(logger,
				envSecondsOrDefault("REQUEST_TIMEOUT_SECONDS", 30),
				[]string{"/health"},
				mux,
			),
		),
	)

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			db.Close()
			return nil
		},
	}, nil
}

// healthHandler is liveness only: it answers instantly and never touches the
// database.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// readyHandler is readiness: one trivial round-trip through the pool.
func readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := db.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "degraded"})
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
