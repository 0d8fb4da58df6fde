// Package httpapi exposes the Orchestrator over the loopback HTTP worker
// API documented in spec §6: health, index, retrieve, status, and
// docset/refresh management, all served as JSON with permissive CORS so
// a browser-based documentation-search UI can call it directly.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/JagjeevanAK/mem-oracle/internal/config"
	"github.com/JagjeevanAK/mem-oracle/internal/engine"
	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// Server wraps an *engine.Engine behind the HTTP worker API. Its
// lifecycle is context-driven: Start serves until its context is
// cancelled, then drains in-flight requests.
type Server struct {
	engine *engine.Engine
	cfg    *config.Config
	log    *slog.Logger

	httpServer *http.Server
}

// New constructs a Server; it does not start listening until Start.
func New(e *engine.Engine, cfg *config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{engine: e, cfg: cfg, log: log}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Worker.Host, cfg.Worker.Port),
		Handler: withCORS(s.routes()),
	}
	return s
}

// Start listens and serves until ctx is cancelled, at which point it
// drains in-flight requests and returns. Mirrors the teacher's
// ctx-driven accept-loop shutdown, adapted from a raw net.Listener
// accept loop to net/http's own Serve/Shutdown pair.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("httpapi_listening", slog.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown httpapi: %w", err)
		}
		return nil
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /index", s.handleIndex)
	mux.HandleFunc("POST /retrieve", s.handleRetrieve)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /docset/{id}", s.handleGetDocset)
	mux.HandleFunc("DELETE /docset/{id}", s.handleDeleteDocset)
	mux.HandleFunc("GET /docset/{id}/pages", s.handleListPages)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("POST /refresh-all", s.handleRefreshAll)
	return mux
}

// withCORS applies spec §6's blanket CORS policy and answers every
// OPTIONS request directly, before it reaches the mux.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError serialises err as spec §7's `{error: <message>}` envelope,
// choosing the status code from the error's shape: store.ErrNotFound
// maps to 404, a validationError maps to 400, everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var notFound store.ErrNotFound
	var invalid validationError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &invalid):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// validationError marks a request-shape problem (missing/invalid field)
// as a 400, distinct from store.ErrNotFound's 404 and every other
// error's 500.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

func invalidf(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}
