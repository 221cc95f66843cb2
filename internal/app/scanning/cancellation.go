package scanning

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tmeadows/scanhub/internal/domain/scanning"
	"github.com/tmeadows/scanhub/pkg/common/otel"
)

// CancelJob cancels a job in two phases. The local record is transitioned to
// CANCELLED and persisted first, so the user-visible outcome is durable
// before anything crosses the network. Only then is the worker notified;
// notification failures are logged and do not affect the result, the worker
// reconciles on its next status report.
//
// Returns ErrJobNotCancellable when the job is already terminal and
// ErrNotJobOwner when the caller does not own it.
func (s *ScanJobService) CancelJob(ctx context.Context, userID string, jobID uuid.UUID) (*scanning.Job, error) {
	ctx, span := otel.AddSpan(ctx, s.tracer, "scanning.cancel_job",
		attribute.String("job_id", jobID.String()),
	)
	defer span.End()

	job, err := s.loadOwnedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if err := job.Cancel(); err != nil {
		return nil, err
	}
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "scan job cancelled", "job_id", jobID)

	if err := s.worker.CancelJob(ctx, jobID); err != nil {
		if errors.Is(err, scanning.ErrWorkerUnavailable) {
			s.log.Warn(ctx, "worker unreachable for cancel notification", "job_id", jobID, "error", err)
		} else {
			s.log.Warn(ctx, "worker rejected cancel notification", "job_id", jobID, "error", err)
		}
	}

	return job, nil
}
