// Package scanning provides domain types and interfaces for orchestrating
// scan jobs across the boundary to an external worker. It defines the core
// abstractions needed to track job lifecycle, deduplicate scan targets, and
// aggregate findings.
package scanning

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// JobRepository defines the persistence operations for scan jobs.
// It provides an abstraction layer over the storage mechanism used to
// maintain job state and history. Jobs are append-only: they are never
// deleted, only transitioned to a terminal state.
type JobRepository interface {
	// CreateJob inserts a new job record with its input payload.
	CreateJob(ctx context.Context, job *Job) error

	// UpdateJob persists changes to an existing job's state (status, result,
	// error, timestamps, vulnerability count).
	UpdateJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by id. Returns ErrJobNotFound when absent.
	GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error)

	// ListJobs retrieves a user's jobs, newest first, optionally filtered by
	// status ("" means all), bounded by limit.
	ListJobs(ctx context.Context, userID string, status JobStatus, limit int) ([]*Job, error)
}

// ScanTargetRepository defines persistence for deduplicated scan targets.
type ScanTargetRepository interface {
	// ResolveOrCreate atomically upserts the target keyed by its unique
	// tuple (user, repo URL, branch, sub-path) and returns the surviving
	// row. Concurrent calls for the same tuple must resolve to one row.
	ResolveOrCreate(ctx context.Context, target *ScanTarget) (*ScanTarget, error)

	// GetByID retrieves a target. Returns ErrTargetNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*ScanTarget, error)

	// TouchLastScanned records a successful scan time on the target.
	TouchLastScanned(ctx context.Context, id uuid.UUID) error

	// Deactivate soft-deletes the target.
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// VulnerabilityReader provides read-only access to findings for aggregation.
// The worker owns writes to the vulnerability store.
type VulnerabilityReader interface {
	// ListByJob returns all findings persisted for the given job.
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]Vulnerability, error)
}

// WebhookMappingRepository defines persistence for webhook mappings.
type WebhookMappingRepository interface {
	// Create records a mapping for an externally created webhook.
	Create(ctx context.Context, mapping WebhookMapping) error

	// Delete removes the mapping for the given hook id. Returns
	// ErrMappingNotFound when absent.
	Delete(ctx context.Context, hookID string) error

	// GetByHookID retrieves a mapping. Returns ErrMappingNotFound when absent.
	GetByHookID(ctx context.Context, hookID string) (WebhookMapping, error)
}

// SubmitRequest is the payload handed to the worker's job-intake endpoint.
type SubmitRequest struct {
	JobID   uuid.UUID       `json:"job_id"`
	JobType JobType         `json:"job_type"`
	JobData json.RawMessage `json:"job_data"`
}

// ForwardResult carries the worker's verbatim response to a forwarded
// webhook delivery. The status code is preserved end-to-end because the
// provider uses it to decide whether to retry delivery.
type ForwardResult struct {
	StatusCode int
	Body       []byte
}

// WebhookForwarder delivers a raw webhook payload to the worker. The body is
// forwarded byte-for-byte so a downstream signature check still holds.
type WebhookForwarder interface {
	// ForwardWebhook posts the exact raw body plus the allow-listed headers
	// to the worker's webhook endpoint. A timeout is reported as
	// ErrForwardTimeout, distinct from worker HTTP errors (which are not
	// errors here at all: the status code comes back in the result).
	ForwardWebhook(ctx context.Context, body []byte, headers map[string]string) (ForwardResult, error)
}

// WorkerGateway abstracts the HTTP boundary to the external scan worker.
// Every call is bounded by an explicit timeout; implementations return
// ErrWorkerUnavailable (wrapped) for network failures and timeouts so
// callers can distinguish retryable unavailability from worker rejections.
type WorkerGateway interface {
	// SubmitJob hands a job to the worker's intake endpoint.
	SubmitJob(ctx context.Context, req SubmitRequest) error

	// JobState queries the worker for its view of a job.
	JobState(ctx context.Context, jobID uuid.UUID) (WorkerState, error)

	// CancelJob signals the worker to stop processing a job. Best-effort
	// from the caller's perspective.
	CancelJob(ctx context.Context, jobID uuid.UUID) error

	// Healthy reports whether the worker is reachable within a short timeout.
	Healthy(ctx context.Context) error
}
