package scanning

import "time"

// WebhookMapping associates an externally issued webhook identifier with the
// local (user, project, repository) tuple that registered it. Persistence is
// best-effort: the external webhook already exists by the time a mapping is
// recorded, so a failed write must not roll it back.
type WebhookMapping struct {
	HookID    string
	UserID    string
	ProjectID string
	RepoURL   string
	CreatedAt time.Time
}
