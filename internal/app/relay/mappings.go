package relay

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tmeadows/scanhub/internal/domain/scanning"
	"github.com/tmeadows/scanhub/pkg/common/otel"
)

// RegisterMapping records a mapping for a webhook that was already created on
// the provider side. The external webhook is the source of truth, so local
// persistence is best-effort: a storage failure is logged and reported as
// success rather than forcing the caller to roll the webhook back.
func (s *Service) RegisterMapping(ctx context.Context, mapping scanning.WebhookMapping) {
	ctx, span := otel.AddSpan(ctx, s.tracer, "relay.register_mapping",
		attribute.String("hook_id", mapping.HookID),
	)
	defer span.End()

	if err := s.mappings.Create(ctx, mapping); err != nil {
		s.log.Error(ctx, "webhook mapping persistence failed, webhook remains active",
			"hook_id", mapping.HookID, "repo_url", mapping.RepoURL, "error", err)
		return
	}
	s.log.Info(ctx, "webhook mapping recorded", "hook_id", mapping.HookID, "repo_url", mapping.RepoURL)
}

// RemoveMapping deletes the mapping for the given hook id. Unlike
// registration this is not best-effort: a failed delete leaves a dangling
// record the caller should know about. Returns ErrMappingNotFound when the
// mapping does not exist.
func (s *Service) RemoveMapping(ctx context.Context, hookID string) error {
	ctx, span := otel.AddSpan(ctx, s.tracer, "relay.remove_mapping",
		attribute.String("hook_id", hookID),
	)
	defer span.End()

	if err := s.mappings.Delete(ctx, hookID); err != nil {
		return err
	}
	s.log.Info(ctx, "webhook mapping removed", "hook_id", hookID)
	return nil
}
