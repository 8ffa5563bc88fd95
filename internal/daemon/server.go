package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/knowndev/devmemory/internal/query"
)

// Handler is implemented by whatever wires a project's Store, VectorIndex,
// Ingestor, and QueryRouter together to back the HTTP control API.
type Handler interface {
	Status(ctx context.Context) StatusResult
	Health(ctx context.Context) HealthResult
	Search(ctx context.Context, q string, opts query.Options) ([]query.Result, error)
	Reindex(ctx context.Context, force bool)
	Stop()
}

// Server is the spec.md §4.4 "Control API (local loopback only)": a plain
// net/http server bound to 127.0.0.1, never to a public interface.
type Server struct {
	addr    string
	handler Handler

	mu     sync.Mutex
	http   *http.Server
	ln     net.Listener
	closed bool
}

// NewServer builds a Server that will bind 127.0.0.1:port.
func NewServer(port int, handler Handler) *Server {
	return &Server{
		addr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		handler: handler,
	}
}

// ListenAndServe binds the loopback address and serves until ctx is
// cancelled or Close is called. Returns the bind error, if any, before
// serving begins; once serving, returns http.ErrServerClosed on a clean
// shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("daemon: bind %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("POST /reindex", s.handleReindex)
	mux.HandleFunc("POST /stop", s.handleStop)

	srv := &http.Server{Handler: mux}

	s.mu.Lock()
	s.http = srv
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close(context.Background())
	}()

	slog.Info("daemon listening", slog.String("addr", s.addr))
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return err
}

// Close gracefully shuts the HTTP server down.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.handler.Status(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.handler.Health(r.Context())
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	opts := query.Options{
		Language: r.URL.Query().Get("lang"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			opts.Limit = limit
		}
	}

	results, err := s.handler.Search(r.Context(), q, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]SearchResultDTO, len(results))
	for i, res := range results {
		out[i] = SearchResultDTO{
			FileID:    res.FileID,
			Source:    string(res.Source),
			Relevance: res.Relevance,
			Language:  res.Language,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	ctx := context.WithoutCancel(r.Context())
	go s.handler.Reindex(ctx, force)
	writeJSON(w, http.StatusAccepted, ReindexAccepted{Accepted: true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"stopping": true})
	go s.handler.Stop()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorBody{Error: message})
}
