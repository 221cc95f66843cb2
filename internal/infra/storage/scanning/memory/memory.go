// Package memory provides in-memory implementations of the scanning
// repositories for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmeadows/scanhub/internal/domain/scanning"
)

// nowFunc is swappable in tests.
var nowFunc = time.Now

// JobStore provides an in-memory implementation of scanning.JobRepository.
type JobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*scanning.Job
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*scanning.Job)}
}

// CreateJob persists a new job.
func (s *JobStore) CreateJob(ctx context.Context, job *scanning.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID()]; exists {
		return fmt.Errorf("job already exists: %s", job.JobID())
	}
	s.jobs[job.JobID()] = copyJob(job)
	return nil
}

// UpdateJob persists changes to an existing job.
func (s *JobStore) UpdateJob(ctx context.Context, job *scanning.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID()]; !exists {
		return fmt.Errorf("%w: %s", scanning.ErrJobNotFound, job.JobID())
	}
	s.jobs[job.JobID()] = copyJob(job)
	return nil
}

// GetJob retrieves a job by id.
func (s *JobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*scanning.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", scanning.ErrJobNotFound, jobID)
	}
	return copyJob(job), nil
}

// ListJobs retrieves a user's jobs, newest first.
func (s *JobStore) ListJobs(ctx context.Context, userID string, status scanning.JobStatus, limit int) ([]*scanning.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []*scanning.Job
	for _, job := range s.jobs {
		if job.UserID() != userID {
			continue
		}
		if status != "" && job.Status() != status {
			continue
		}
		jobs = append(jobs, copyJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Timeline().CreatedAt().After(jobs[j].Timeline().CreatedAt())
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func copyJob(job *scanning.Job) *scanning.Job {
	return scanning.ReconstructJob(
		job.JobID(),
		job.UserID(),
		job.ProjectID(),
		job.TargetID(),
		job.JobType(),
		job.Status(),
		job.Input(),
		job.Result(),
		job.ErrorMessage(),
		job.VulnerabilityCount(),
		scanning.ReconstructTimeline(
			job.Timeline().CreatedAt(),
			job.Timeline().StartedAt(),
			job.Timeline().FinishedAt(),
		),
	)
}

// targetKey is the unique dedup tuple for scan targets.
type targetKey struct {
	userID  string
	repoURL string
	branch  string
	subPath string
}

// ScanTargetStore provides an in-memory implementation of
// scanning.ScanTargetRepository with the same dedup semantics as the
// postgres store.
type ScanTargetStore struct {
	mu      sync.Mutex
	byTuple map[targetKey]*scanning.ScanTarget
	byID    map[uuid.UUID]*scanning.ScanTarget
}

// NewScanTargetStore creates a new in-memory scan target store.
func NewScanTargetStore() *ScanTargetStore {
	return &ScanTargetStore{
		byTuple: make(map[targetKey]*scanning.ScanTarget),
		byID:    make(map[uuid.UUID]*scanning.ScanTarget),
	}
}

// ResolveOrCreate upserts the target keyed by its unique tuple.
func (s *ScanTargetStore) ResolveOrCreate(ctx context.Context, target *scanning.ScanTarget) (*scanning.ScanTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := targetKey{target.UserID(), target.RepoURL(), target.Branch(), target.SubPath()}
	if existing, ok := s.byTuple[key]; ok {
		return copyTarget(existing), nil
	}
	stored := copyTarget(target)
	s.byTuple[key] = stored
	s.byID[target.ID()] = stored
	return copyTarget(stored), nil
}

// GetByID retrieves a target by id.
func (s *ScanTargetStore) GetByID(ctx context.Context, id uuid.UUID) (*scanning.ScanTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", scanning.ErrTargetNotFound, id)
	}
	return copyTarget(target), nil
}

// TouchLastScanned records a successful scan on the target.
func (s *ScanTargetStore) TouchLastScanned(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", scanning.ErrTargetNotFound, id)
	}
	target.TouchLastScanned(nowFunc())
	return nil
}

// Deactivate soft-deletes the target.
func (s *ScanTargetStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", scanning.ErrTargetNotFound, id)
	}
	target.Deactivate()
	return nil
}

func copyTarget(t *scanning.ScanTarget) *scanning.ScanTarget {
	return scanning.ReconstructScanTarget(
		t.ID(), t.UserID(), t.RepoURL(), t.Branch(), t.SubPath(), t.Name(),
		t.LastScanned(), t.Active(),
	)
}

// VulnerabilityStore provides an in-memory scanning.VulnerabilityReader that
// tests seed directly.
type VulnerabilityStore struct {
	mu    sync.Mutex
	vulns map[uuid.UUID][]scanning.Vulnerability
}

// NewVulnerabilityStore creates a new in-memory vulnerability store.
func NewVulnerabilityStore() *VulnerabilityStore {
	return &VulnerabilityStore{vulns: make(map[uuid.UUID][]scanning.Vulnerability)}
}

// Seed adds findings for a job.
func (s *VulnerabilityStore) Seed(jobID uuid.UUID, vulns ...scanning.Vulnerability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vulns[jobID] = append(s.vulns[jobID], vulns...)
}

// ListByJob returns all findings for the given job.
func (s *VulnerabilityStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]scanning.Vulnerability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scanning.Vulnerability(nil), s.vulns[jobID]...), nil
}

// WebhookMappingStore provides an in-memory
// scanning.WebhookMappingRepository.
type WebhookMappingStore struct {
	mu       sync.Mutex
	mappings map[string]scanning.WebhookMapping

	// FailCreates makes Create return an error, for exercising the
	// best-effort persistence contract.
	FailCreates bool
}

// NewWebhookMappingStore creates a new in-memory webhook mapping store.
func NewWebhookMappingStore() *WebhookMappingStore {
	return &WebhookMappingStore{mappings: make(map[string]scanning.WebhookMapping)}
}

// Create records a mapping.
func (s *WebhookMappingStore) Create(ctx context.Context, mapping scanning.WebhookMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreates {
		return fmt.Errorf("mapping store unavailable")
	}
	s.mappings[mapping.HookID] = mapping
	return nil
}

// Delete removes a mapping.
func (s *WebhookMappingStore) Delete(ctx context.Context, hookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mappings[hookID]; !ok {
		return fmt.Errorf("%w: %s", scanning.ErrMappingNotFound, hookID)
	}
	delete(s.mappings, hookID)
	return nil
}

// GetByHookID retrieves a mapping.
func (s *WebhookMappingStore) GetByHookID(ctx context.Context, hookID string) (scanning.WebhookMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping, ok := s.mappings[hookID]
	if !ok {
		return scanning.WebhookMapping{}, fmt.Errorf("%w: %s", scanning.ErrMappingNotFound, hookID)
	}
	return mapping, nil
}
