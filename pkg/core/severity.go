package core

import "strings"

// =============================================================================
// Severity
// =============================================================================

// Severity classifies a feedback message shown to the user.
type Severity int

// Severity levels for feedback messages.
const (
	// SeverityInfo is a neutral notice, e.g. an answer was removed.
	SeverityInfo Severity = iota
	// SeveritySuccess reports a completed mutation.
	SeveritySuccess
	// SeverityError reports a rejected or failed mutation.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityError:
		return "error"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityInfo and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success":
		return SeveritySuccess, true
	case "error":
		return SeverityError, true
	case "info":
		return SeverityInfo, true
	default:
		return SeverityInfo, false
	}
}
