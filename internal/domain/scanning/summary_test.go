package scanning

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewScanSummary(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	timeline := ReconstructTimeline(started.Add(-time.Minute), started, finished)

	vulns := []Vulnerability{
		{ID: uuid.New(), Severity: SeverityCritical, Category: "secrets", FilePath: "config/prod.env"},
		{ID: uuid.New(), Severity: SeverityCritical, Category: "secrets", FilePath: "config/prod.env"},
		{ID: uuid.New(), Severity: SeverityLow, Category: "deps", FilePath: "go.sum"},
		{ID: uuid.New(), Severity: "unknown-level", Category: "", FilePath: ""},
	}

	summary := NewScanSummary(vulns, timeline)

	assert.Equal(t, 4, summary.VulnerabilitiesFound)
	assert.Equal(t, map[Severity]int{
		SeverityInfo:     1, // unknown severities tally as INFO
		SeverityLow:      1,
		SeverityMedium:   0,
		SeverityHigh:     0,
		SeverityCritical: 2,
	}, summary.SeverityCounts)
	assert.Equal(t, map[string]int{"secrets": 2, "deps": 1}, summary.CategoryCounts)
	assert.Equal(t, 2, summary.FilesAffected)
	assert.Equal(t, 90.0, summary.ScanDurationSeconds)
}

func TestNewScanSummaryEmpty(t *testing.T) {
	t.Parallel()

	summary := NewScanSummary(nil, nil)

	assert.Zero(t, summary.VulnerabilitiesFound)
	assert.Zero(t, summary.FilesAffected)
	assert.Zero(t, summary.ScanDurationSeconds)
	assert.Len(t, summary.SeverityCounts, 5, "all severity keys present for zero findings")
	for sev, n := range summary.SeverityCounts {
		assert.Zero(t, n, "severity %s", sev)
	}
	assert.Empty(t, summary.CategoryCounts)
}

func TestNewScanSummaryUnfinishedTimeline(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	timeline := ReconstructTimeline(started, started, time.Time{})

	summary := NewScanSummary(nil, timeline)
	assert.Zero(t, summary.ScanDurationSeconds, "missing finish timestamp yields zero duration")
}

func TestElapsedBetween(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 45*time.Second, ElapsedBetween(started, started.Add(45*time.Second)))
	assert.Zero(t, ElapsedBetween(time.Time{}, started))
	assert.Zero(t, ElapsedBetween(started, time.Time{}))
}

func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityLow.AtLeast(SeverityMedium))
	assert.True(t, SeverityInfo.AtLeast(SeverityInfo))
}
