package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// DeadlineMiddleware puts a hard ceiling on every request. The wrapped handler
// runs with a cancellable context; if it has not finished by the deadline the
// client gets a 504 and the context cancellation tells any in-flight database
// call to give its connection back. Paths in skip (liveness probes) bypass the
// ceiling entirely.
func DeadlineMiddleware(logger *Logger, ceiling time.Duration, skip []string, next http.Handler) http.Handler {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		skipped[path] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := skipped[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), ceiling)
		defer cancel()

		writer := &deadlineWriter{inner: w}
		done := make(chan struct{})
		panicked := make(chan any, 1)

		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					panicked <- rec
					return
				}
				close(done)
			}()
			next.ServeHTTP(writer, r.WithContext(ctx))
		}()

		select {
		case <-done:
		case rec := <-panicked:
			// Re-raise on the request goroutine so RecoverMiddleware sees it.
			panic(rec)
		case <-ctx.Done():
			if writer.markTimedOut() {
				logger.Warn("request_deadline_exceeded", map[string]any{
					"method":     r.Method,
					"path":       r.URL.Path,
					"ceiling_ms": ceiling.Milliseconds(),
				})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "request timed out"})
			}
		}
	})
}

// deadlineWriter makes the response single-shot: once the deadline response
// has gone out, anything the late handler still writes is discarded.
type deadlineWriter struct {
	inner http.ResponseWriter

	mu       sync.Mutex
	timedOut bool
	wrote    bool
}

func (w *deadlineWriter) Header() http.Header {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return make(http.Header)
	}
	return w.inner.Header()
}

func (w *deadlineWriter) WriteHeader(status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return
	}
	w.wrote = true
	w.inner.WriteHeader(status)
}

func (w *deadlineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return len(p), nil
	}
	w.wrote = true
	return w.inner.Write(p)
}

// markTimedOut flips the writer into discard mode. It reports false when the
// handler already produced output, in which case the deadline response must
// not be appended to a partially written body.
func (w *deadlineWriter) markTimedOut() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.wrote {
		return false
	}
	w.timedOut = true
	return true
}
