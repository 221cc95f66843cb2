package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tmeadows/scanhub/internal/domain/scanning"
	"github.com/tmeadows/scanhub/internal/infra/storage"
)

// jobStore implements scanning.JobRepository using PostgreSQL as the backing
// store. Jobs are append-only history: rows are inserted once and only their
// lifecycle fields are ever updated.
var _ scanning.JobRepository = (*jobStore)(nil)

type jobStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewJobStore creates a new PostgreSQL-backed job repository with tracing
// capabilities.
func NewJobStore(pool *pgxpool.Pool, tracer trace.Tracer) *jobStore {
	return &jobStore{db: pool, tracer: tracer}
}

// defaultDBAttributes defines standard OpenTelemetry attributes for database operations.
var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

// CreateJob persists a new scan job with its input payload.
func (r *jobStore) CreateJob(ctx context.Context, job *scanning.Job) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("job_id", job.JobID().String()),
		attribute.String("status", string(job.Status())),
		attribute.String("job_type", job.JobType().String()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.create_job", dbAttrs, func(ctx context.Context) error {
		input := job.Input()
		_, err := r.db.Exec(ctx, `
			INSERT INTO scan_jobs (
				id, user_id, project_id, scan_target_id, job_type, status,
				repo_url, branch, sub_path, commit_sha,
				result, error_message, vulnerability_count,
				created_at, started_at, finished_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			pgtype.UUID{Bytes: job.JobID(), Valid: true},
			job.UserID(),
			nullableText(job.ProjectID()),
			nullableUUID(job.TargetID()),
			job.JobType().String(),
			job.Status().String(),
			input.RepoURL,
			input.Branch,
			input.SubPath,
			input.CommitSHA,
			job.Result(),
			nullableText(job.ErrorMessage()),
			job.VulnerabilityCount(),
			job.Timeline().CreatedAt(),
			nullableTime(job.Timeline().StartedAt()),
			nullableTime(job.Timeline().FinishedAt()),
		)
		if err != nil {
			return fmt.Errorf("CreateJob insert error: %w", err)
		}
		return nil
	})
}

// UpdateJob modifies an existing job's lifecycle state in the database.
func (r *jobStore) UpdateJob(ctx context.Context, job *scanning.Job) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("job_id", job.JobID().String()),
		attribute.String("status", string(job.Status())),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.update_job", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			UPDATE scan_jobs SET
				status = $2,
				result = $3,
				error_message = $4,
				vulnerability_count = $5,
				started_at = $6,
				finished_at = $7
			WHERE id = $1`,
			pgtype.UUID{Bytes: job.JobID(), Valid: true},
			job.Status().String(),
			job.Result(),
			nullableText(job.ErrorMessage()),
			job.VulnerabilityCount(),
			nullableTime(job.Timeline().StartedAt()),
			nullableTime(job.Timeline().FinishedAt()),
		)
		if err != nil {
			return fmt.Errorf("UpdateJob query error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			span := trace.SpanFromContext(ctx)
			span.SetAttributes(attribute.Bool("job_not_found", true))
			return fmt.Errorf("%w: %s", scanning.ErrJobNotFound, job.JobID())
		}
		return nil
	})
}

// GetJob retrieves a scan job from the database, reconstructing the domain
// model from the stored row.
func (r *jobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*scanning.Job, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("job_id", jobID.String()),
	)

	var job *scanning.Job
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_job", dbAttrs, func(ctx context.Context) error {
		row := r.db.QueryRow(ctx, `
			SELECT id, user_id, project_id, scan_target_id, job_type, status,
			       repo_url, branch, sub_path, commit_sha,
			       result, error_message, vulnerability_count,
			       created_at, started_at, finished_at
			FROM scan_jobs
			WHERE id = $1`,
			pgtype.UUID{Bytes: jobID, Valid: true},
		)

		var err error
		job, err = scanJobRow(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", scanning.ErrJobNotFound, jobID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs retrieves a user's jobs, newest first, optionally filtered by status.
func (r *jobStore) ListJobs(ctx context.Context, userID string, status scanning.JobStatus, limit int) ([]*scanning.Job, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("user_id", userID),
		attribute.String("status_filter", status.String()),
		attribute.Int("limit", limit),
	)

	var jobs []*scanning.Job
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.list_jobs", dbAttrs, func(ctx context.Context) error {
		query := `
			SELECT id, user_id, project_id, scan_target_id, job_type, status,
			       repo_url, branch, sub_path, commit_sha,
			       result, error_message, vulnerability_count,
			       created_at, started_at, finished_at
			FROM scan_jobs
			WHERE user_id = $1`
		args := []any{userID}
		if status != "" {
			query += ` AND status = $2`
			args = append(args, status.String())
		}
		query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("ListJobs query error: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			job, err := scanJobRow(rows)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// rowScanner lets scanJobRow work over both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJobRow(row rowScanner) (*scanning.Job, error) {
	var (
		id         pgtype.UUID
		userID     string
		projectID  pgtype.Text
		targetID   pgtype.UUID
		jobType    string
		status     string
		input      scanning.JobInput
		result     []byte
		errMsg     pgtype.Text
		vulnCount  int
		createdAt  pgtype.Timestamptz
		startedAt  pgtype.Timestamptz
		finishedAt pgtype.Timestamptz
	)

	if err := row.Scan(
		&id, &userID, &projectID, &targetID, &jobType, &status,
		&input.RepoURL, &input.Branch, &input.SubPath, &input.CommitSHA,
		&result, &errMsg, &vulnCount,
		&createdAt, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}

	return scanning.ReconstructJob(
		uuid.UUID(id.Bytes),
		userID,
		projectID.String,
		uuidOrNil(targetID),
		scanning.ParseJobType(jobType),
		scanning.ParseJobStatus(status),
		input,
		result,
		errMsg.String,
		vulnCount,
		scanning.ReconstructTimeline(createdAt.Time, startedAt.Time, finishedAt.Time),
	), nil
}
