// Package scanning implements the application layer for scan job
// orchestration: creating jobs, handing them to the worker, reconciling
// worker-reported state with local state, and cancelling in-flight work.
package scanning

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tmeadows/scanhub/internal/domain/scanning"
	"github.com/tmeadows/scanhub/pkg/common/logger"
	"github.com/tmeadows/scanhub/pkg/common/otel"
)

// defaultListLimit bounds unfiltered job listings.
const defaultListLimit = 50

// ScanJobService coordinates the scan job lifecycle across the persistence
// layer and the worker. Local persisted state is authoritative; the worker's
// view is merged in on read and can never regress a terminal job.
type ScanJobService struct {
	log    *logger.Logger
	tracer trace.Tracer

	jobs    scanning.JobRepository
	targets scanning.ScanTargetRepository
	vulns   scanning.VulnerabilityReader
	worker  scanning.WorkerGateway
}

// NewScanJobService creates a new scan job service.
func NewScanJobService(
	log *logger.Logger,
	tracer trace.Tracer,
	jobs scanning.JobRepository,
	targets scanning.ScanTargetRepository,
	vulns scanning.VulnerabilityReader,
	worker scanning.WorkerGateway,
) *ScanJobService {
	return &ScanJobService{
		log:     log,
		tracer:  tracer,
		jobs:    jobs,
		targets: targets,
		vulns:   vulns,
		worker:  worker,
	}
}

// CreateJobCommand carries the caller-supplied fields for a new scan job.
type CreateJobCommand struct {
	UserID    string
	ProjectID string
	JobType   scanning.JobType
	RepoURL   string
	Branch    string
	SubPath   string
	CommitSHA string
}

// JobView is the poll-merged read model of a job: the persisted aggregate
// plus whether the worker answered the poll that produced it.
type JobView struct {
	Job             *scanning.Job
	WorkerReachable bool
}

// CreateAndSubmit registers a new scan job against its deduplicated target
// and hands it to the worker. If the worker rejects or cannot be reached the
// job is persisted as FAILED with a descriptive error, and the submit error
// is returned so the caller can surface upstream unavailability.
func (s *ScanJobService) CreateAndSubmit(ctx context.Context, cmd CreateJobCommand) (*scanning.Job, error) {
	ctx, span := otel.AddSpan(ctx, s.tracer, "scanning.create_and_submit",
		attribute.String("job_type", cmd.JobType.String()),
		attribute.String("repo_url", cmd.RepoURL),
	)
	defer span.End()

	input := scanning.JobInput{
		RepoURL:   cmd.RepoURL,
		Branch:    cmd.Branch,
		SubPath:   scanning.NormalizeSubPath(cmd.SubPath),
		CommitSHA: cmd.CommitSHA,
	}

	target, err := s.targets.ResolveOrCreate(ctx,
		scanning.NewScanTarget(cmd.UserID, cmd.RepoURL, cmd.Branch, cmd.SubPath))
	if err != nil {
		return nil, fmt.Errorf("resolving scan target: %w", err)
	}

	job := scanning.NewJob(uuid.New(), cmd.UserID, cmd.ProjectID, target.ID(), cmd.JobType, input)
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	s.log.Info(ctx, "scan job created", "job_id", job.JobID(), "target_id", target.ID(), "job_type", cmd.JobType)

	jobData, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding job input: %w", err)
	}

	submitErr := s.worker.SubmitJob(ctx, scanning.SubmitRequest{
		JobID:   job.JobID(),
		JobType: job.JobType(),
		JobData: jobData,
	})
	if submitErr != nil {
		if failErr := job.Fail(fmt.Sprintf("failed to submit job to worker: %v", submitErr)); failErr != nil {
			s.log.Error(ctx, "unable to mark job failed after submit error", "job_id", job.JobID(), "error", failErr)
		}
		if err := s.jobs.UpdateJob(ctx, job); err != nil {
			s.log.Error(ctx, "unable to persist failed job after submit error", "job_id", job.JobID(), "error", err)
		}
		return job, fmt.Errorf("submitting job %s: %w", job.JobID(), submitErr)
	}

	job.MarkSubmitted()
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("recording job submission: %w", err)
	}
	s.log.Info(ctx, "scan job submitted", "job_id", job.JobID())

	return job, nil
}

// GetJob returns the poll-merged view of a job owned by the caller.
//
// For live jobs the worker is polled and its report folded into local state;
// an unreachable worker degrades to the local view with WorkerReachable set
// to false rather than failing the read. Completed jobs get their summary
// reconciled from persisted findings; enrichment failures are logged and
// swallowed so a read can never downgrade a completed job.
func (s *ScanJobService) GetJob(ctx context.Context, userID string, jobID uuid.UUID) (*JobView, error) {
	ctx, span := otel.AddSpan(ctx, s.tracer, "scanning.get_job",
		attribute.String("job_id", jobID.String()),
	)
	defer span.End()

	job, err := s.loadOwnedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	view := &JobView{Job: job, WorkerReachable: true}

	if !job.Status().IsTerminal() {
		ws, pollErr := s.worker.JobState(ctx, jobID)
		switch {
		case pollErr != nil:
			view.WorkerReachable = false
			s.log.Warn(ctx, "worker poll failed, serving local state", "job_id", jobID, "error", pollErr)
		default:
			changed, mergeErr := scanning.MergeWorkerState(job, ws)
			if mergeErr != nil {
				s.log.Error(ctx, "worker state merge rejected", "job_id", jobID, "worker_status", ws.Status, "error", mergeErr)
			}
			if changed {
				if err := s.jobs.UpdateJob(ctx, job); err != nil {
					return nil, fmt.Errorf("persisting merged job state: %w", err)
				}
				if job.Status() == scanning.JobStatusCompleted {
					s.touchTarget(ctx, job)
				}
			}
		}
	}

	if job.Status() == scanning.JobStatusCompleted {
		if err := s.enrich(ctx, job); err != nil {
			s.log.Warn(ctx, "result enrichment failed, serving stored result", "job_id", jobID, "error", err)
		}
	}

	return view, nil
}

// ListJobs returns the caller's jobs, newest first, optionally filtered by
// status. A non-positive limit falls back to the default.
func (s *ScanJobService) ListJobs(ctx context.Context, userID string, status scanning.JobStatus, limit int) ([]*scanning.Job, error) {
	ctx, span := otel.AddSpan(ctx, s.tracer, "scanning.list_jobs",
		attribute.String("status", status.String()),
	)
	defer span.End()

	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.jobs.ListJobs(ctx, userID, status, limit)
}

// loadOwnedJob fetches a job and enforces ownership.
func (s *ScanJobService) loadOwnedJob(ctx context.Context, userID string, jobID uuid.UUID) (*scanning.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.OwnedBy(userID) {
		return nil, fmt.Errorf("%w: job %s", scanning.ErrNotJobOwner, jobID)
	}
	return job, nil
}

// touchTarget records a successful scan on the job's target. Best-effort.
func (s *ScanJobService) touchTarget(ctx context.Context, job *scanning.Job) {
	if job.TargetID() == uuid.Nil {
		return
	}
	if err := s.targets.TouchLastScanned(ctx, job.TargetID()); err != nil {
		s.log.Warn(ctx, "unable to update target last-scanned time", "target_id", job.TargetID(), "error", err)
	}
}
