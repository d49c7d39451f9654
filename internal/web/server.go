package web

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/cadence/internal/config"
	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/ops"
	"github.com/hpungsan/cadence/internal/store"
)

// NewHandler builds the JSON API. Post store reads go straight to s; every
// write goes through coord so the server's derived cache stays coherent.
func NewHandler(coord *ops.Coordinator, s store.PostStore, cfg *config.Config, logger zerolog.Logger) http.Handler {
	h := &Handlers{
		coord: coord,
		store: s,
		log:   logger,
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	mux.HandleFunc("GET /api/posts", h.HandleListPosts)
	mux.HandleFunc("POST /api/posts", h.HandleCreatePost)
	mux.HandleFunc("GET /api/posts/{id}", h.HandleGetPost)
	mux.HandleFunc("PATCH /api/posts/{id}", h.HandleUpdatePost)
	mux.HandleFunc("POST /api/posts/{id}/reschedule", h.HandleReschedulePost)
	mux.HandleFunc("DELETE /api/posts/{id}", h.HandleDeletePost)

	mux.HandleFunc("GET /api/recommendations", h.HandleListRecommendations)
	mux.HandleFunc("POST /api/recommendations", h.HandleImportRecommendations)

	mux.HandleFunc("GET /api/slots", h.HandleListSlots)
	mux.HandleFunc("PUT /api/slots/{id}", h.HandleSaveSlot)
	mux.HandleFunc("POST /api/slots/{id}/active", h.HandleSetSlotActive)

	mux.HandleFunc("GET /api/calendar/events", h.HandleEvents)
	mux.HandleFunc("GET /api/calendar/density", h.HandleDensity)
	mux.HandleFunc("GET /api/calendar/besttime", h.HandleBestTime)
	mux.HandleFunc("GET /api/calendar/windows", h.HandleWindows)
	mux.HandleFunc("GET /api/calendar.ics", h.HandleICS)

	var handler http.Handler = mux
	handler = requireToken(cfg.APIToken, handler)
	handler = securityHeaders(handler)
	handler = logRequests(logger, handler)
	return handler
}

// NewServer wraps handler in an http.Server listening on bind:port.
func NewServer(handler http.Handler, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// requireToken enforces "Authorization: Bearer <token>" on /api routes when
// token is set. /healthz stays open.
func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				renderError(w, errors.NewUnauthorized())
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ev := logger.Debug()
		if rec.status >= http.StatusInternalServerError {
			ev = logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger zerolog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info().Str("addr", srv.Addr).Msg("cadence API listening")

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn().Msg("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
