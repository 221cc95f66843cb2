package scanning

import (
	"fmt"
)

// JobStatus represents the current state of a scan job. It enables tracking of
// job lifecycle from creation through completion, failure, or cancellation.
type JobStatus string

const (
	// JobStatusPending indicates a job has been created and possibly handed to
	// the worker, but the worker has not started processing it.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusInProgress indicates the worker is actively processing the job.
	JobStatusInProgress JobStatus = "IN_PROGRESS"

	// JobStatusCompleted indicates the job finished successfully.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusFailed indicates the job encountered an unrecoverable error.
	JobStatusFailed JobStatus = "FAILED"

	// JobStatusCancelled indicates the job was cancelled before it finished.
	JobStatusCancelled JobStatus = "CANCELLED"
)

func (s JobStatus) String() string { return string(s) }

// IsTerminal reports whether no further transitions are permitted out of s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsCancellable reports whether a job in this state may still be cancelled.
func (s JobStatus) IsCancellable() bool {
	return s == JobStatusPending || s == JobStatusInProgress
}

// ParseJobStatus converts a string to a JobStatus. The worker reports statuses
// in lower case; the persisted enum is upper case. Both forms are accepted.
func ParseJobStatus(s string) JobStatus {
	switch s {
	case "PENDING", "pending":
		return JobStatusPending
	case "IN_PROGRESS", "in_progress":
		return JobStatusInProgress
	case "COMPLETED", "completed":
		return JobStatusCompleted
	case "FAILED", "failed":
		return JobStatusFailed
	case "CANCELLED", "cancelled":
		return JobStatusCancelled
	default:
		return "" // represents unspecified
	}
}

// ValidateTransition checks if a status transition is valid and returns an error if not.
func (s JobStatus) ValidateTransition(target JobStatus) error {
	if !s.isValidTransition(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, s, target)
	}
	return nil
}

// isValidTransition checks if the current status can transition to the target status.
// It enforces the job lifecycle rules to prevent invalid state changes.
func (s JobStatus) isValidTransition(target JobStatus) bool {
	switch s {
	case JobStatusPending:
		// From Pending, the worker can pick the job up, finish it in either
		// direction, or the user can cancel it.
		return target == JobStatusInProgress ||
			target == JobStatusCompleted ||
			target == JobStatusFailed ||
			target == JobStatusCancelled
	case JobStatusInProgress:
		return target == JobStatusCompleted ||
			target == JobStatusFailed ||
			target == JobStatusCancelled
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		// Terminal states allow no transitions.
		return false
	default:
		return false
	}
}
