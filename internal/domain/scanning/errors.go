package scanning

import "errors"

var (
	// ErrJobNotFound indicates the requested job does not exist.
	ErrJobNotFound = errors.New("scan job not found")

	// ErrTargetNotFound indicates the requested scan target does not exist.
	ErrTargetNotFound = errors.New("scan target not found")

	// ErrMappingNotFound indicates no webhook mapping exists for the given hook ID.
	ErrMappingNotFound = errors.New("webhook mapping not found")

	// ErrInvalidStatusTransition indicates an attempt to move a job through a
	// transition the lifecycle does not permit, including any transition out
	// of a terminal state.
	ErrInvalidStatusTransition = errors.New("invalid job status transition")

	// ErrNotJobOwner indicates the caller does not own the requested job.
	ErrNotJobOwner = errors.New("job is owned by another user")

	// ErrJobNotCancellable indicates the job is already in a terminal state
	// and can no longer be cancelled.
	ErrJobNotCancellable = errors.New("job is not in a cancellable state")

	// ErrWorkerUnavailable indicates the worker could not be reached or timed
	// out. Callers should treat this as retryable.
	ErrWorkerUnavailable = errors.New("scan worker unavailable")

	// ErrForwardTimeout indicates a webhook forward exceeded its deadline.
	// Kept distinct from worker HTTP errors so the relay can report timeouts
	// separately from downstream rejections.
	ErrForwardTimeout = errors.New("webhook forward timed out")
)
