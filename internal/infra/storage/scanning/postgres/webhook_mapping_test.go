package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmeadows/scanhub/internal/domain/scanning"
	"github.com/tmeadows/scanhub/internal/infra/storage"
)

func TestWebhookMappingRoundTrip(t *testing.T) {
	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewWebhookMappingStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	mapping := scanning.WebhookMapping{
		HookID:    "hook-1",
		UserID:    "user-1",
		ProjectID: "project-1",
		RepoURL:   "https://github.com/acme/app",
	}
	require.NoError(t, store.Create(ctx, mapping))

	loaded, err := store.GetByHookID(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.UserID)
	assert.Equal(t, "project-1", loaded.ProjectID)
	assert.Equal(t, "https://github.com/acme/app", loaded.RepoURL)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestWebhookMappingRecreateUpdates(t *testing.T) {
	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewWebhookMappingStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, scanning.WebhookMapping{
		HookID: "hook-1", UserID: "user-1", RepoURL: "https://github.com/acme/app",
	}))

	// Re-registering the same hook id moves the tuple; the external webhook
	// is the source of truth for existence.
	require.NoError(t, store.Create(ctx, scanning.WebhookMapping{
		HookID: "hook-1", UserID: "user-2", RepoURL: "https://github.com/acme/other",
	}))

	loaded, err := store.GetByHookID(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, "user-2", loaded.UserID)
	assert.Equal(t, "https://github.com/acme/other", loaded.RepoURL)
}

func TestWebhookMappingDelete(t *testing.T) {
	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewWebhookMappingStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, scanning.WebhookMapping{
		HookID: "hook-1", UserID: "user-1", RepoURL: "https://github.com/acme/app",
	}))
	require.NoError(t, store.Delete(ctx, "hook-1"))

	_, err := store.GetByHookID(ctx, "hook-1")
	require.ErrorIs(t, err, scanning.ErrMappingNotFound)
	require.ErrorIs(t, store.Delete(ctx, "hook-1"), scanning.ErrMappingNotFound)
}
