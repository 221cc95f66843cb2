package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tmeadows/scanhub/internal/domain/scanning"
	"github.com/tmeadows/scanhub/internal/infra/storage"
)

// vulnerabilityStore implements scanning.VulnerabilityReader. The worker
// writes findings; this side only reads them for aggregation.
var _ scanning.VulnerabilityReader = (*vulnerabilityStore)(nil)

type vulnerabilityStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewVulnerabilityStore creates a new PostgreSQL-backed vulnerability reader.
func NewVulnerabilityStore(pool *pgxpool.Pool, tracer trace.Tracer) *vulnerabilityStore {
	return &vulnerabilityStore{db: pool, tracer: tracer}
}

// ListByJob returns all findings persisted for the given job. An empty result
// is not an error.
func (r *vulnerabilityStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]scanning.Vulnerability, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("repository", "VulnerabilityReader"),
		attribute.String("method", "ListByJob"),
		attribute.String("job_id", jobID.String()),
	)

	var vulns []scanning.Vulnerability
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.vulnerability.list_by_job", dbAttrs, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT id, job_id, severity, category, file_path, line_start, line_end
			FROM vulnerabilities
			WHERE job_id = $1
			ORDER BY created_at`,
			pgtype.UUID{Bytes: jobID, Valid: true},
		)
		if err != nil {
			return fmt.Errorf("ListByJob query error: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id       pgtype.UUID
				job      pgtype.UUID
				severity string
				v        scanning.Vulnerability
			)
			if err := rows.Scan(&id, &job, &severity, &v.Category, &v.FilePath, &v.LineStart, &v.LineEnd); err != nil {
				return err
			}
			v.ID = uuid.UUID(id.Bytes)
			v.JobID = uuid.UUID(job.Bytes)
			v.Severity = scanning.ParseSeverity(severity)
			vulns = append(vulns, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return vulns, nil
}
