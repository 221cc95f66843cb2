package scanning

import (
	"encoding/json"
	"time"
)

// ScanSummary holds the aggregate statistics computed over a completed job's
// findings. It is a pure function of persisted data and may be recomputed any
// number of times; recomputation only overwrites these fields.
type ScanSummary struct {
	VulnerabilitiesFound int              `json:"vulnerabilities_found"`
	SeverityCounts       map[Severity]int `json:"vulnerability_counts"`
	CategoryCounts       map[string]int   `json:"category_counts"`
	FilesAffected        int              `json:"files_affected"`
	ScanDurationSeconds  float64          `json:"scan_duration_seconds"`
}

// NewScanSummary computes a summary from a job's findings and timeline.
// An empty finding set yields all-zero tallies; every severity level is
// present in the counts map so consumers never see missing keys.
func NewScanSummary(vulns []Vulnerability, timeline *Timeline) ScanSummary {
	summary := ScanSummary{
		VulnerabilitiesFound: len(vulns),
		SeverityCounts:       make(map[Severity]int, len(Severities())),
		CategoryCounts:       make(map[string]int),
	}
	for _, sev := range Severities() {
		summary.SeverityCounts[sev] = 0
	}

	files := make(map[string]struct{})
	for _, v := range vulns {
		summary.SeverityCounts[ParseSeverity(v.Severity.String())]++
		if v.Category != "" {
			summary.CategoryCounts[v.Category]++
		}
		if v.FilePath != "" {
			files[v.FilePath] = struct{}{}
		}
	}
	summary.FilesAffected = len(files)

	if timeline != nil {
		summary.ScanDurationSeconds = timeline.Elapsed().Seconds()
	}
	return summary
}

// WorkerState is the worker's view of a job as reported by its status
// endpoint.
type WorkerState struct {
	Status JobStatus
	Result json.RawMessage
	Error  string
}

// MergeWorkerState folds the worker's reported state into the locally
// persisted job. Field precedence is explicit: the worker wins for status,
// result, and error; locally computed fields (summary aggregates, vuln
// count) are left alone and win on read.
//
// Terminal local states are never overwritten — transitions are monotonic,
// so a stale worker report cannot regress a finished job. The returned bool
// indicates whether the job changed and needs persisting.
func MergeWorkerState(job *Job, ws WorkerState) (bool, error) {
	if job.Status().IsTerminal() || ws.Status == "" || ws.Status == job.Status() {
		return false, nil
	}

	switch ws.Status {
	case JobStatusInProgress:
		if err := job.MarkInProgress(); err != nil {
			return false, err
		}
	case JobStatusCompleted:
		if err := job.Complete(ws.Result); err != nil {
			return false, err
		}
	case JobStatusFailed:
		reason := ws.Error
		if reason == "" {
			reason = "worker reported failure without detail"
		}
		if err := job.Fail(reason); err != nil {
			return false, err
		}
	case JobStatusCancelled:
		if err := job.Cancel(); err != nil {
			return false, err
		}
	default:
		return false, nil
	}
	return true, nil
}

// ElapsedBetween is a convenience for computing a duration from two optional
// timestamps, yielding zero when either is absent.
func ElapsedBetween(started, finished time.Time) time.Duration {
	if started.IsZero() || finished.IsZero() {
		return 0
	}
	return finished.Sub(started)
}
