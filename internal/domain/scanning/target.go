package scanning

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NormalizeSubPath is the single normalization boundary for scan target
// sub-paths. Every creator of a ScanTarget must pass sub-paths through here;
// divergent representations of "no sub-path" ("" vs "/" vs untrimmed input)
// would otherwise produce duplicate targets for the same configuration.
//
// The canonical form is a non-null trimmed string: "" means no sub-path, any
// other value has exactly one leading slash and no trailing slash.
func NormalizeSubPath(subPath string) string {
	p := strings.TrimSpace(subPath)
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// ScanTarget is a reusable scan configuration identified by the unique tuple
// (user id, repository URL, branch, sub-path). Targets are deduplicated by
// that tuple and soft-deactivated rather than deleted while jobs reference them.
type ScanTarget struct {
	id          uuid.UUID
	userID      string
	repoURL     string
	branch      string
	subPath     string
	name        string
	lastScanned time.Time
	active      bool
}

// NewScanTarget creates a scan target with a normalized sub-path and a
// derived display name.
func NewScanTarget(userID, repoURL, branch, subPath string) *ScanTarget {
	normalized := NormalizeSubPath(subPath)
	return &ScanTarget{
		id:      uuid.New(),
		userID:  userID,
		repoURL: repoURL,
		branch:  branch,
		subPath: normalized,
		name:    deriveTargetName(repoURL, branch, normalized),
		active:  true,
	}
}

// ReconstructScanTarget creates a ScanTarget from stored fields, bypassing
// creation invariants. This should only be used by repositories when loading
// from the DB.
func ReconstructScanTarget(
	id uuid.UUID,
	userID, repoURL, branch, subPath, name string,
	lastScanned time.Time,
	active bool,
) *ScanTarget {
	return &ScanTarget{
		id:          id,
		userID:      userID,
		repoURL:     repoURL,
		branch:      branch,
		subPath:     subPath,
		name:        name,
		lastScanned: lastScanned,
		active:      active,
	}
}

// deriveTargetName builds the display name "{repo} ({branch}{subPath})".
func deriveTargetName(repoURL, branch, subPath string) string {
	return fmt.Sprintf("%s (%s%s)", repoURL, branch, subPath)
}

// ID returns the target's unique identifier.
func (t *ScanTarget) ID() uuid.UUID { return t.id }

// UserID returns the id of the user who owns this target.
func (t *ScanTarget) UserID() string { return t.userID }

// RepoURL returns the repository URL this target scans.
func (t *ScanTarget) RepoURL() string { return t.repoURL }

// Branch returns the branch this target scans.
func (t *ScanTarget) Branch() string { return t.branch }

// SubPath returns the canonical sub-path ("" when the whole repo is scanned).
func (t *ScanTarget) SubPath() string { return t.subPath }

// Name returns the derived display name.
func (t *ScanTarget) Name() string { return t.name }

// LastScanned returns the time of the most recent successful scan, or the
// zero time if the target has never completed a scan.
func (t *ScanTarget) LastScanned() time.Time { return t.lastScanned }

// Active reports whether the target is active. Deactivated targets are kept
// for job history but excluded from listings.
func (t *ScanTarget) Active() bool { return t.active }

// TouchLastScanned records a successful scan at the given time.
func (t *ScanTarget) TouchLastScanned(at time.Time) { t.lastScanned = at }

// Deactivate soft-deletes the target.
func (t *ScanTarget) Deactivate() { t.active = false }
