package constants

// ReportStatus is the processing status of a persisted health report.
type ReportStatus string

// Stable values (store these exact strings in DB).
const (
	ReportStatusProcessing ReportStatus = "processing" // uploaded, AI analysis pending
	ReportStatusCompleted  ReportStatus = "completed"  // AI analysis attached
	ReportStatusFailed     ReportStatus = "failed"     // terminal failure
)

// IsTerminal reports whether the status can no longer change.
func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusCompleted || s == ReportStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusProcessing, ReportStatusCompleted, ReportStatusFailed:
		return true
	}
	return false
}

// ParameterStatus compares a lab value against its reference range.
type ParameterStatus string

const (
	ParameterNormal  ParameterStatus = "normal"
	ParameterHigh    ParameterStatus = "high"
	ParameterLow     ParameterStatus = "low"
	ParameterUnknown ParameterStatus = "unknown"
)
