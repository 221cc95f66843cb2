package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tmeadows/scanhub/internal/api/errs"
	"github.com/tmeadows/scanhub/internal/app/relay"
	"github.com/tmeadows/scanhub/internal/domain/scanning"
)

// userIDHeader carries the caller identity installed by the upstream auth
// layer. Authentication itself happens before traffic reaches this service.
const userIDHeader = "X-User-ID"

func (s *Server) respond(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error(ctx, "failed to encode response", "error", err)
	}
}

func (s *Server) respondError(ctx context.Context, w http.ResponseWriter, err error) {
	appErr := classify(err)
	if appErr.Code == errs.Internal {
		s.log.Error(ctx, "request failed", "error", err)
	} else {
		s.log.Debug(ctx, "request rejected", "code", appErr.Code.String(), "error", err)
	}
	s.respond(ctx, w, appErr.HTTPStatus(), appErr)
}

// classify maps application and domain errors onto the response taxonomy.
func classify(err error) *errs.Error {
	var fields errs.FieldErrors
	if errors.As(err, &fields) {
		return errs.New(errs.InvalidArgument, fields)
	}
	if errs.IsError(err) {
		return errs.GetError(err)
	}

	switch {
	case errors.Is(err, scanning.ErrJobNotFound),
		errors.Is(err, scanning.ErrTargetNotFound),
		errors.Is(err, scanning.ErrMappingNotFound):
		return errs.New(errs.NotFound, err)
	case errors.Is(err, scanning.ErrNotJobOwner),
		errors.Is(err, relay.ErrInvalidSignature):
		return errs.New(errs.PermissionDenied, err)
	case errors.Is(err, scanning.ErrJobNotCancellable),
		errors.Is(err, scanning.ErrInvalidStatusTransition):
		return errs.New(errs.FailedPrecondition, err)
	case errors.Is(err, scanning.ErrForwardTimeout):
		return errs.New(errs.DeadlineExceeded, err)
	case errors.Is(err, scanning.ErrWorkerUnavailable):
		return errs.New(errs.Unavailable, err)
	default:
		return errs.New(errs.Internal, err)
	}
}

// callerID extracts the authenticated user id. Absence means the request
// bypassed the auth layer and is rejected.
func callerID(r *http.Request) (string, error) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		return "", errs.Newf(errs.Unauthenticated, "missing %s header", userIDHeader)
	}
	return userID, nil
}
