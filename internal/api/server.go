package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/cache"
	"github.com/JakeFAU/distro-catalog/internal/catalog"
	"github.com/JakeFAU/distro-catalog/internal/hash/sha256"
	"github.com/JakeFAU/distro-catalog/internal/id/uuid"
	"github.com/JakeFAU/distro-catalog/internal/metrics"
)

// CatalogService is what the handlers need from the ingest layer.
type CatalogService interface {
	Catalog(ctx context.Context, forceRefresh bool) ([]catalog.Record, error)
	Lookup(ctx context.Context, id string) (catalog.Record, error)
	Invalidate(ctx context.Context) bool
	CacheInfo(ctx context.Context) (cache.Info, bool)
	Backend() string
}

// Options tune the server.
type Options struct {
	// RequestTimeout bounds each request. Zero selects 60s.
	RequestTimeout time.Duration
	// BaseContext scopes background refreshes. It defaults to
	// context.Background and should be canceled on shutdown.
	BaseContext context.Context
}

// Server wires HTTP handlers to the catalog service.
type Server struct {
	router  chi.Router
	service CatalogService
	logger  *zap.Logger
	hasher  *sha256.Hasher
	baseCtx context.Context
	bg      sync.WaitGroup
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service CatalogService, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	s := &Server{
		service: service,
		logger:  logger,
		hasher:  sha256.New(),
		baseCtx: opts.BaseContext,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(uuid.New()))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/distros", func(r chi.Router) {
			r.Get("/", s.listDistros)
			r.Post("/refresh", s.refresh)
			r.Get("/{id}", s.getDistro)
		})
		r.Get("/cache/info", s.cacheInfo)
		r.Get("/logo/{id}", s.getLogo)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Wait blocks until background refreshes started by the server return.
func (s *Server) Wait() {
	s.bg.Wait()
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ready",
		"cache_backend": s.service.Backend(),
	})
}

// writeServiceError maps catalog errors onto HTTP statuses. Internal details
// stay in the log.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "distribution not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.logger.Warn("catalog not ready in time", zap.String("path", r.URL.Path), zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "catalog is being rebuilt, retry later")
	default:
		s.logger.Error("catalog request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

// writeCacheableJSON writes a 200 with an ETag derived from the body and
// answers a matching If-None-Match with 304.
func (s *Server) writeCacheableJSON(w http.ResponseWriter, r *http.Request, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode JSON failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	etag := s.hasher.ETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestIDMiddleware keeps a caller-supplied X-Request-ID and otherwise
// assigns a time-ordered one.
func requestIDMiddleware(ids *uuid.Generator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = ids.MustID()
			}
			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			w.Header().Set("X-Request-ID", reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", requestIDFrom(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal server error"}` + "\n"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}
