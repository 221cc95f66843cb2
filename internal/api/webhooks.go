package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tmeadows/scanhub/internal/api/errs"
	"github.com/tmeadows/scanhub/internal/domain/scanning"
)

// maxWebhookBody bounds webhook payload size. GitHub caps deliveries at 25MB.
const maxWebhookBody = 25 << 20

// createMappingRequest is the explicit shape of a webhook mapping record.
type createMappingRequest struct {
	HookID    string `json:"hook_id" validate:"required,max=128"`
	RepoURL   string `json:"repo_url" validate:"required,url"`
	ProjectID string `json:"project_id" validate:"omitempty,max=128"`
}

func (s *Server) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := callerID(r)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	var req createMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(ctx, w, errs.Newf(errs.InvalidArgument, "malformed request body: %v", err))
		return
	}
	if err := errs.Check(req); err != nil {
		s.respondError(ctx, w, err)
		return
	}

	// Best-effort persistence: the webhook already exists on the provider
	// side, so this endpoint always acknowledges.
	s.relay.RegisterMapping(ctx, scanning.WebhookMapping{
		HookID:    req.HookID,
		UserID:    userID,
		ProjectID: req.ProjectID,
		RepoURL:   req.RepoURL,
	})

	s.respond(ctx, w, http.StatusCreated, map[string]string{"hook_id": req.HookID})
}

func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := callerID(r); err != nil {
		s.respondError(ctx, w, err)
		return
	}

	hookID := chi.URLParam(r, "hookID")
	if err := s.relay.RemoveMapping(ctx, hookID); err != nil {
		s.respondError(ctx, w, err)
		return
	}

	s.respond(ctx, w, http.StatusNoContent, nil)
}

// handleGithubWebhook is the public relay endpoint GitHub delivers to.
// Authentication is the payload signature; there is no user identity here.
func (s *Server) handleGithubWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.limiter.Allow() {
		s.respond(ctx, w, http.StatusTooManyRequests,
			errs.Newf(errs.Unavailable, "webhook rate limit exceeded"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.respondError(ctx, w, errs.Newf(errs.InvalidArgument, "reading request body: %v", err))
		return
	}

	result, err := s.relay.Handle(ctx, body, r.Header)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	// The worker's status code passes through verbatim; GitHub uses it to
	// decide whether to redeliver.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.StatusCode)
	if _, err := w.Write(result.Body); err != nil {
		s.log.Error(ctx, "failed to write relayed response", "error", err)
	}
}

// handleWebhookHealth reports pipeline health for the public webhook path.
// No auth: the provider's health checks hit this anonymously.
func (s *Server) handleWebhookHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.respond(ctx, w, http.StatusOK, s.relay.Health(ctx))
}
