package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tmeadows/scanhub/internal/domain/scanning"
	"github.com/tmeadows/scanhub/internal/infra/storage"
)

// webhookMappingStore implements scanning.WebhookMappingRepository in
// PostgreSQL.
var _ scanning.WebhookMappingRepository = (*webhookMappingStore)(nil)

type webhookMappingStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewWebhookMappingStore creates a new PostgreSQL-backed webhook mapping
// repository.
func NewWebhookMappingStore(pool *pgxpool.Pool, tracer trace.Tracer) *webhookMappingStore {
	return &webhookMappingStore{db: pool, tracer: tracer}
}

// Create records a mapping for an externally created webhook. Re-recording
// the same hook id updates the tuple rather than erroring: the external
// webhook is the source of truth for existence.
func (r *webhookMappingStore) Create(ctx context.Context, mapping scanning.WebhookMapping) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("repository", "WebhookMappingRepository"),
		attribute.String("method", "Create"),
		attribute.String("hook_id", mapping.HookID),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.webhookmapping.create", dbAttrs, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO webhook_mappings (hook_id, user_id, project_id, repo_url)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (hook_id) DO UPDATE
			SET user_id = EXCLUDED.user_id,
			    project_id = EXCLUDED.project_id,
			    repo_url = EXCLUDED.repo_url`,
			mapping.HookID,
			mapping.UserID,
			nullableText(mapping.ProjectID),
			mapping.RepoURL,
		)
		if err != nil {
			return fmt.Errorf("insert error: %w", err)
		}
		return nil
	})
}

// Delete removes the mapping for the given hook id.
func (r *webhookMappingStore) Delete(ctx context.Context, hookID string) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("repository", "WebhookMappingRepository"),
		attribute.String("method", "Delete"),
		attribute.String("hook_id", hookID),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.webhookmapping.delete", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `DELETE FROM webhook_mappings WHERE hook_id = $1`, hookID)
		if err != nil {
			return fmt.Errorf("delete error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", scanning.ErrMappingNotFound, hookID)
		}
		return nil
	})
}

// GetByHookID retrieves a mapping.
func (r *webhookMappingStore) GetByHookID(ctx context.Context, hookID string) (scanning.WebhookMapping, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("repository", "WebhookMappingRepository"),
		attribute.String("method", "GetByHookID"),
		attribute.String("hook_id", hookID),
	)

	var mapping scanning.WebhookMapping
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.webhookmapping.get_by_hook_id", dbAttrs, func(ctx context.Context) error {
		var projectID pgtype.Text
		err := r.db.QueryRow(ctx, `
			SELECT hook_id, user_id, project_id, repo_url, created_at
			FROM webhook_mappings
			WHERE hook_id = $1`,
			hookID,
		).Scan(&mapping.HookID, &mapping.UserID, &projectID, &mapping.RepoURL, &mapping.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", scanning.ErrMappingNotFound, hookID)
		}
		if err != nil {
			return err
		}
		mapping.ProjectID = projectID.String
		return nil
	})
	if err != nil {
		return scanning.WebhookMapping{}, err
	}
	return mapping, nil
}
