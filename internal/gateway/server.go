// Package gateway implements the HTTP ingest surface for host-platform
// activity events. The gateway validates and authenticates inbound events,
// then decouples from dispatch by enqueueing them on the activity queue.
package gateway

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"reviewnotify/internal/config"
	"reviewnotify/internal/types"
)

// ActivitySender enqueues one activity message, implemented by
// queue.ActivityTrigger.
type ActivitySender interface {
	SendActivity(ctx context.Context, msg types.ActivityMessage, reason string) error
}

// Server is the gateway HTTP server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	logger   *slog.Logger
	sender   ActivitySender
	validate *validator.Validate
}

// NewServer creates a gateway Server with routes mounted.
func NewServer(cfg *config.Config, sender ActivitySender, logger *slog.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		logger:   logger,
		sender:   sender,
		validate: validator.New(),
	}
	s.mountRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// mountRoutes registers the middleware chain and routes. Order matters: the
// recoverer is outermost so every panic is caught; auth runs after logging so
// rejected requests are still visible.
func (s *Server) mountRoutes() {
	s.router.Use(s.recoverer)
	s.router.Use(contextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(requestIDMiddleware)
	s.router.Use(requestLogger(s.logger))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.sharedSecretMiddleware)
		r.Post("/events", s.handleActivityEvent)
	})
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg != nil && s.cfg.Server.RequestTimeout > 0 {
		return s.cfg.Server.RequestTimeout
	}
	return 29 * time.Second
}

// handleHealth reports liveness plus build identification.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.cfg.Service,
		"version": s.cfg.Build.Version,
	})
}

// recoverer catches panics in the handler chain, logs the stack trace, and
// returns a standardized 500 response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.logger.Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprintf("%v", rvr)),
					slog.String("stack", string(debug.Stack())),
				)
				writeError(w, r, http.StatusInternalServerError,
					types.ErrCodeInternalUnexpected, "an unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// sharedSecretMiddleware authenticates the host platform with a constant-time
// comparison of the X-Gateway-Token header. An empty configured secret
// disables the check for local development.
func (s *Server) sharedSecretMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := s.cfg.Server.SharedSecret.Unmask()
		if secret != "" {
			presented := r.Header.Get("X-Gateway-Token")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid gateway token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// contextTimeoutMiddleware sets a soft deadline on the request context,
// below the platform's hard timeout so cleanup can still run.
func contextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestIDMiddleware generates or propagates a correlation id, storing it in
// the context and echoing it on the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// responseCapture wraps an http.ResponseWriter to observe the status code
// after the handler chain completes.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// requestLogger logs request metadata at a level matching the status code.
// Credential headers are never logged.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rc, r)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rc.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if reqID := types.GetRequestID(r.Context()); reqID != "" {
				args = append(args, slog.String("request_id", reqID))
			}

			switch {
			case rc.statusCode >= 500:
				logger.Error("request completed", args...)
			case rc.statusCode >= 400:
				logger.Warn("request completed", args...)
			default:
				logger.Info("request completed", args...)
			}
		})
	}
}
