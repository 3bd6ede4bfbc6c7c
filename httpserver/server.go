// Package httpserver exposes the orchestration service over HTTP: the ask
// operation, the health check, and the locally mounted tool services.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolchat/orchestrator"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolchat", "httpserver")

// Server hosts the ask API. A nil Redis client reports the cache as disabled
// in the health check.
type Server struct {
	server *http.Server
	svc    *orchestrator.Service
	redis  *redis.Client
	mux    *http.ServeMux
}

// New builds the server. toolMounts maps URL paths (e.g. "/tools/weather")
// to the co-hosted tool service handlers.
func New(addr string, svc *orchestrator.Service, redisClient *redis.Client, toolMounts map[string]http.Handler) *Server {
	s := &Server{
		svc:   svc,
		redis: redisClient,
		mux:   http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/ask", s.handleAsk)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	for path, handler := range toolMounts {
		s.mux.Handle(path, handler)
	}

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s
}

// Handler returns the route handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	logger.KV(xlog.INFO, "status", "listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Result string `json:"result"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "only POST is supported"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	result, err := s.svc.Ask(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyQuestion) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "inference failed",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Result: result})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	cache := "disabled"
	if s.redis != nil {
		cache = "ok"
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			logger.ContextKV(r.Context(), xlog.WARNING, "status", "cache_unreachable", "err", err.Error())
			cache = "unreachable"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"cache":  cache,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.KV(xlog.WARNING, "status", "write_response", "err", err.Error())
	}
}
