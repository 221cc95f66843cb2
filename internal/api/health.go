package api

import (
	"net/http"
)

// handleHealth is a liveness probe: the process is up and serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness reports whether the service can do useful work: the
// database must answer a ping. The worker is deliberately excluded, a dead
// worker degrades reads but the service still serves local state.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.db.Ping(ctx); err != nil {
		s.log.Error(ctx, "readiness check failed", "error", err)
		s.respond(ctx, w, http.StatusServiceUnavailable, map[string]string{"status": "database unreachable"})
		return
	}

	s.respond(ctx, w, http.StatusOK, map[string]string{"status": "ready"})
}
