package scanning

import "github.com/google/uuid"

// Severity is the five-level ordinal used to rank findings.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) String() string { return string(s) }

// Severities lists all severity levels from least to most severe.
func Severities() []Severity {
	return []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// rank orders severities so they can be compared; unknown values rank lowest.
func (s Severity) rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityLow:
		return 2
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 4
	case SeverityCritical:
		return 5
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool { return s.rank() >= other.rank() }

// ParseSeverity converts a string to a Severity, tolerating the lower-case
// form the worker reports. Unknown values map to INFO rather than dropping
// the finding.
func ParseSeverity(v string) Severity {
	switch v {
	case "INFO", "info":
		return SeverityInfo
	case "LOW", "low":
		return SeverityLow
	case "MEDIUM", "medium":
		return SeverityMedium
	case "HIGH", "high":
		return SeverityHigh
	case "CRITICAL", "critical":
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// Vulnerability is a single finding reported by the worker for a job. This
// core only reads vulnerabilities for aggregation; the worker owns writes.
type Vulnerability struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	Severity  Severity
	Category  string
	FilePath  string
	LineStart int
	LineEnd   int
}
