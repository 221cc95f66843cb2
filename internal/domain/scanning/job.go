package scanning

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of work the worker performs for a job.
type JobType string

const (
	JobTypeScanRepo  JobType = "scan_repo"
	JobTypeScanFile  JobType = "scan_file"
	JobTypeBatchScan JobType = "batch_scan"
)

func (t JobType) String() string { return string(t) }

// ParseJobType converts a string to a JobType.
func ParseJobType(s string) JobType {
	switch s {
	case "scan_repo":
		return JobTypeScanRepo
	case "scan_file":
		return JobTypeScanFile
	case "batch_scan":
		return JobTypeBatchScan
	default:
		return "" // represents unspecified
	}
}

// JobInput is the scan configuration a job runs against. It is attached to
// the job at creation time and forwarded verbatim to the worker.
type JobInput struct {
	RepoURL   string `json:"repo_url"`
	Branch    string `json:"branch"`
	SubPath   string `json:"sub_path,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
}

// Job is a unit of scan work submitted to the worker. It owns the lifecycle
// state machine; all mutations go through methods that enforce the
// transition rules, so a job can never regress out of a terminal state and
// the finished timestamp is set if and only if the status is terminal.
type Job struct {
	jobID     uuid.UUID
	userID    string
	projectID string
	targetID  uuid.UUID
	jobType   JobType
	status    JobStatus
	input     JobInput
	result    json.RawMessage
	errorMsg  string
	vulnCount int
	timeline  *Timeline
}

// NewJob creates a job in the PENDING state with its input payload attached.
func NewJob(jobID uuid.UUID, userID, projectID string, targetID uuid.UUID, jobType JobType, input JobInput) *Job {
	return &Job{
		jobID:     jobID,
		userID:    userID,
		projectID: projectID,
		targetID:  targetID,
		jobType:   jobType,
		status:    JobStatusPending,
		input:     input,
		timeline:  NewTimeline(new(realTimeProvider)),
	}
}

// ReconstructJob creates a Job from stored fields, bypassing creation
// invariants. This should only be used by repositories when loading from the DB.
func ReconstructJob(
	jobID uuid.UUID,
	userID, projectID string,
	targetID uuid.UUID,
	jobType JobType,
	status JobStatus,
	input JobInput,
	result json.RawMessage,
	errorMsg string,
	vulnCount int,
	timeline *Timeline,
) *Job {
	return &Job{
		jobID:     jobID,
		userID:    userID,
		projectID: projectID,
		targetID:  targetID,
		jobType:   jobType,
		status:    status,
		input:     input,
		result:    result,
		errorMsg:  errorMsg,
		vulnCount: vulnCount,
		timeline:  timeline,
	}
}

// JobID returns the unique identifier for this scan job.
func (j *Job) JobID() uuid.UUID { return j.jobID }

// UserID returns the id of the user who owns this job.
func (j *Job) UserID() string { return j.userID }

// ProjectID returns the optional project association ("" when unset).
func (j *Job) ProjectID() string { return j.projectID }

// TargetID returns the associated scan target id (uuid.Nil when unset).
func (j *Job) TargetID() uuid.UUID { return j.targetID }

// JobType returns the kind of work this job represents.
func (j *Job) JobType() JobType { return j.jobType }

// Status returns the current lifecycle state of the job.
func (j *Job) Status() JobStatus { return j.status }

// Input returns the scan configuration this job runs against.
func (j *Job) Input() JobInput { return j.input }

// Result returns the opaque worker result payload. It is only populated once
// the job completes successfully.
func (j *Job) Result() json.RawMessage { return j.result }

// ErrorMessage returns the failure or cancellation reason. It is empty for
// non-terminal and COMPLETED jobs.
func (j *Job) ErrorMessage() string { return j.errorMsg }

// VulnerabilityCount returns the number of findings reported for this job.
func (j *Job) VulnerabilityCount() int { return j.vulnCount }

// Timeline provides access to the job's timestamps.
func (j *Job) Timeline() *Timeline { return j.timeline }

// OwnedBy reports whether the given user owns this job.
func (j *Job) OwnedBy(userID string) bool { return j.userID == userID }

// MarkSubmitted records that the worker accepted the job. The job stays
// PENDING (the worker has not started it), but the started timestamp is set.
// Duplicate submissions are no-ops.
func (j *Job) MarkSubmitted() {
	j.timeline.MarkStarted()
}

// WasSubmitted reports whether the job has already been handed to the worker.
func (j *Job) WasSubmitted() bool { return !j.timeline.StartedAt().IsZero() }

// MarkInProgress transitions the job to IN_PROGRESS.
func (j *Job) MarkInProgress() error {
	if err := j.status.ValidateTransition(JobStatusInProgress); err != nil {
		return err
	}
	j.status = JobStatusInProgress
	j.timeline.MarkStarted()
	return nil
}

// Complete transitions the job to COMPLETED with the worker's result payload.
func (j *Job) Complete(result json.RawMessage) error {
	if err := j.status.ValidateTransition(JobStatusCompleted); err != nil {
		return err
	}
	j.status = JobStatusCompleted
	j.result = result
	j.errorMsg = ""
	j.timeline.MarkFinished()
	return nil
}

// Fail transitions the job to FAILED. A non-empty reason is required so every
// failed job exposes a descriptive error.
func (j *Job) Fail(reason string) error {
	if reason == "" {
		return fmt.Errorf("failing job %s requires a reason", j.jobID)
	}
	if err := j.status.ValidateTransition(JobStatusFailed); err != nil {
		return err
	}
	j.status = JobStatusFailed
	j.errorMsg = reason
	j.timeline.MarkFinished()
	return nil
}

// CancelledByUserReason is the fixed reason recorded for user cancellations.
const CancelledByUserReason = "Job cancelled by user"

// Cancel transitions the job to CANCELLED with the fixed cancellation reason.
func (j *Job) Cancel() error {
	if !j.status.IsCancellable() {
		return fmt.Errorf("%w: status %s", ErrJobNotCancellable, j.status)
	}
	j.status = JobStatusCancelled
	j.errorMsg = CancelledByUserReason
	j.timeline.MarkFinished()
	return nil
}

// SetVulnerabilityCount records the number of findings for this job.
func (j *Job) SetVulnerabilityCount(n int) { j.vulnCount = n }

// SetResult overwrites the result payload. Used when enrichment recomputes
// the summary portion of a completed job's result.
func (j *Job) SetResult(result json.RawMessage) { j.result = result }

// FinishedAt returns the terminal timestamp and whether it is set.
func (j *Job) FinishedAt() (time.Time, bool) {
	if j.timeline.IsFinished() {
		return j.timeline.FinishedAt(), true
	}
	return time.Time{}, false
}
