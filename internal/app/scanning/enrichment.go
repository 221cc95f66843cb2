package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmeadows/scanhub/internal/domain/scanning"
)

// enrich recomputes the summary statistics of a completed job from its
// persisted findings and folds them into the stored result payload. It is a
// pure function of persisted data, so running it on every read is safe:
// recomputation overwrites only the summary fields and leaves everything else
// the worker reported intact.
func (s *ScanJobService) enrich(ctx context.Context, job *scanning.Job) error {
	vulns, err := s.vulns.ListByJob(ctx, job.JobID())
	if err != nil {
		return fmt.Errorf("listing findings: %w", err)
	}

	summary := scanning.NewScanSummary(vulns, job.Timeline())

	enriched, err := mergeSummary(job.Result(), summary)
	if err != nil {
		return fmt.Errorf("merging summary into result: %w", err)
	}
	if bytes.Equal(enriched, job.Result()) && job.VulnerabilityCount() == summary.VulnerabilitiesFound {
		return nil
	}

	job.SetVulnerabilityCount(summary.VulnerabilitiesFound)
	job.SetResult(enriched)
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persisting enriched result: %w", err)
	}
	return nil
}

// mergeSummary overlays the summary fields onto the worker's result payload.
// Unknown worker fields survive untouched; a missing or malformed result
// degrades to a summary-only payload rather than an error.
func mergeSummary(result json.RawMessage, summary scanning.ScanSummary) (json.RawMessage, error) {
	merged := make(map[string]json.RawMessage)
	if len(result) > 0 {
		if err := json.Unmarshal(result, &merged); err != nil {
			merged = make(map[string]json.RawMessage)
		}
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	var summaryFields map[string]json.RawMessage
	if err := json.Unmarshal(summaryJSON, &summaryFields); err != nil {
		return nil, err
	}
	for k, v := range summaryFields {
		merged[k] = v
	}

	return json.Marshal(merged)
}
