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

// scanTargetStore implements scanning.ScanTargetRepository to provide
// persistent, deduplicated storage of scan targets in PostgreSQL.
var _ scanning.ScanTargetRepository = (*scanTargetStore)(nil)

type scanTargetStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewScanTargetStore creates a new PostgreSQL-backed scan target repository.
func NewScanTargetStore(pool *pgxpool.Pool, tracer trace.Tracer) *scanTargetStore {
	return &scanTargetStore{db: pool, tracer: tracer}
}

// ResolveOrCreate upserts the target keyed by its unique tuple. The insert
// relies on the store's ON CONFLICT DO NOTHING semantics rather than a
// read-then-write, so concurrent calls for the same tuple cannot produce two
// rows. The surviving row is returned with its last-scanned timestamp intact.
func (r *scanTargetStore) ResolveOrCreate(ctx context.Context, target *scanning.ScanTarget) (*scanning.ScanTarget, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("repository", "ScanTargetRepository"),
		attribute.String("method", "ResolveOrCreate"),
		attribute.String("target_name", target.Name()),
	)

	var resolved *scanning.ScanTarget
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.scantarget.resolve_or_create", dbAttrs, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO scan_targets (id, user_id, repo_url, branch, sub_path, name, active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT ON CONSTRAINT scan_targets_tuple_key DO NOTHING`,
			pgtype.UUID{Bytes: target.ID(), Valid: true},
			target.UserID(),
			target.RepoURL(),
			target.Branch(),
			target.SubPath(),
			target.Name(),
		)
		if err != nil {
			return fmt.Errorf("insert error: %w", err)
		}

		// Whether our insert won or lost the race, the unique tuple now has
		// exactly one row; read it back.
		row := r.db.QueryRow(ctx, `
			SELECT id, user_id, repo_url, branch, sub_path, name, last_scanned_at, active
			FROM scan_targets
			WHERE user_id = $1 AND repo_url = $2 AND branch = $3 AND sub_path = $4`,
			target.UserID(), target.RepoURL(), target.Branch(), target.SubPath(),
		)
		resolved, err = scanTargetRow(row)
		if err != nil {
			return fmt.Errorf("readback error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// GetByID retrieves a target by its id.
func (r *scanTargetStore) GetByID(ctx context.Context, id uuid.UUID) (*scanning.ScanTarget, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("repository", "ScanTargetRepository"),
		attribute.String("method", "GetByID"),
		attribute.String("target_id", id.String()),
	)

	var target *scanning.ScanTarget
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.scantarget.get_by_id", dbAttrs, func(ctx context.Context) error {
		row := r.db.QueryRow(ctx, `
			SELECT id, user_id, repo_url, branch, sub_path, name, last_scanned_at, active
			FROM scan_targets
			WHERE id = $1`,
			pgtype.UUID{Bytes: id, Valid: true},
		)

		var err error
		target, err = scanTargetRow(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", scanning.ErrTargetNotFound, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// TouchLastScanned records a successful scan on the target.
func (r *scanTargetStore) TouchLastScanned(ctx context.Context, id uuid.UUID) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("repository", "ScanTargetRepository"),
		attribute.String("method", "TouchLastScanned"),
		attribute.String("target_id", id.String()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.scantarget.touch_last_scanned", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			UPDATE scan_targets SET last_scanned_at = now(), updated_at = now() WHERE id = $1`,
			pgtype.UUID{Bytes: id, Valid: true},
		)
		if err != nil {
			return fmt.Errorf("update error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", scanning.ErrTargetNotFound, id)
		}
		return nil
	})
}

// Deactivate soft-deletes the target; jobs keep referencing the row.
func (r *scanTargetStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("repository", "ScanTargetRepository"),
		attribute.String("method", "Deactivate"),
		attribute.String("target_id", id.String()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.scantarget.deactivate", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			UPDATE scan_targets SET active = FALSE, updated_at = now() WHERE id = $1`,
			pgtype.UUID{Bytes: id, Valid: true},
		)
		if err != nil {
			return fmt.Errorf("update error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", scanning.ErrTargetNotFound, id)
		}
		return nil
	})
}

func scanTargetRow(row rowScanner) (*scanning.ScanTarget, error) {
	var (
		id          pgtype.UUID
		userID      string
		repoURL     string
		branch      string
		subPath     string
		name        string
		lastScanned pgtype.Timestamptz
		active      bool
	)

	if err := row.Scan(&id, &userID, &repoURL, &branch, &subPath, &name, &lastScanned, &active); err != nil {
		return nil, err
	}

	return scanning.ReconstructScanTarget(
		uuid.UUID(id.Bytes),
		userID,
		repoURL,
		branch,
		subPath,
		name,
		lastScanned.Time,
		active,
	), nil
}
