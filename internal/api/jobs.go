package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tmeadows/scanhub/internal/api/errs"
	appscanning "github.com/tmeadows/scanhub/internal/app/scanning"
	"github.com/tmeadows/scanhub/internal/domain/scanning"
)

// createScanRequest is the explicit shape of the scan creation payload.
type createScanRequest struct {
	JobType   string `json:"job_type" validate:"required,oneof=scan_repo scan_file batch_scan"`
	RepoURL   string `json:"repo_url" validate:"required,url"`
	Branch    string `json:"branch" validate:"required"`
	SubPath   string `json:"sub_path" validate:"omitempty,max=512"`
	CommitSHA string `json:"commit_sha" validate:"omitempty,len=40,hexadecimal"`
	ProjectID string `json:"project_id" validate:"omitempty,max=128"`
}

// jobResponse is the wire representation of a scan job.
type jobResponse struct {
	ID                 string            `json:"id"`
	ProjectID          string            `json:"project_id,omitempty"`
	TargetID           string            `json:"target_id,omitempty"`
	JobType            string            `json:"job_type"`
	Status             string            `json:"status"`
	Input              scanning.JobInput `json:"input"`
	Result             json.RawMessage   `json:"result,omitempty"`
	Error              string            `json:"error,omitempty"`
	VulnerabilityCount int               `json:"vulnerability_count"`
	CreatedAt          time.Time         `json:"created_at"`
	StartedAt          *time.Time        `json:"started_at,omitempty"`
	FinishedAt         *time.Time        `json:"finished_at,omitempty"`
	WorkerReachable    *bool             `json:"worker_reachable,omitempty"`
}

func toJobResponse(job *scanning.Job) jobResponse {
	resp := jobResponse{
		ID:                 job.JobID().String(),
		ProjectID:          job.ProjectID(),
		JobType:            job.JobType().String(),
		Status:             job.Status().String(),
		Input:              job.Input(),
		Result:             job.Result(),
		Error:              job.ErrorMessage(),
		VulnerabilityCount: job.VulnerabilityCount(),
		CreatedAt:          job.Timeline().CreatedAt(),
	}
	if job.TargetID() != uuid.Nil {
		resp.TargetID = job.TargetID().String()
	}
	if started := job.Timeline().StartedAt(); !started.IsZero() {
		resp.StartedAt = &started
	}
	if finished, ok := job.FinishedAt(); ok {
		resp.FinishedAt = &finished
	}
	return resp
}

func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := callerID(r)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	var req createScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(ctx, w, errs.Newf(errs.InvalidArgument, "malformed request body: %v", err))
		return
	}
	if err := errs.Check(req); err != nil {
		s.respondError(ctx, w, err)
		return
	}

	job, err := s.jobs.CreateAndSubmit(ctx, appscanning.CreateJobCommand{
		UserID:    userID,
		ProjectID: req.ProjectID,
		JobType:   scanning.ParseJobType(req.JobType),
		RepoURL:   req.RepoURL,
		Branch:    req.Branch,
		SubPath:   req.SubPath,
		CommitSHA: req.CommitSHA,
	})
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	s.respond(ctx, w, http.StatusCreated, toJobResponse(job))
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := callerID(r)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	var status scanning.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = scanning.ParseJobStatus(raw)
		if status == "" {
			s.respondError(ctx, w, errs.Newf(errs.InvalidArgument, "unknown status filter %q", raw))
			return
		}
	}

	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			s.respondError(ctx, w, errs.Newf(errs.InvalidArgument, "limit must be an integer between 1 and 200"))
			return
		}
	}

	jobs, err := s.jobs.ListJobs(ctx, userID, status, limit)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	resp := struct {
		Jobs []jobResponse `json:"jobs"`
	}{Jobs: make([]jobResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(job))
	}

	s.respond(ctx, w, http.StatusOK, resp)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := callerID(r)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(ctx, w, errs.Newf(errs.InvalidArgument, "invalid job id"))
		return
	}

	view, err := s.jobs.GetJob(ctx, userID, jobID)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	resp := toJobResponse(view.Job)
	resp.WorkerReachable = &view.WorkerReachable

	s.respond(ctx, w, http.StatusOK, resp)
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := callerID(r)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(ctx, w, errs.Newf(errs.InvalidArgument, "invalid job id"))
		return
	}

	job, err := s.jobs.CancelJob(ctx, userID, jobID)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	s.respond(ctx, w, http.StatusOK, toJobResponse(job))
}
