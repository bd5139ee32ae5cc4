package entity

import "github.com/joseph-ayodele/pet-health-tracker/constants"

// ExtractedParameter is one lab value found in a scan.
type ExtractedParameter struct {
	Name           string                    `json:"name"`
	Value          string                    `json:"value"`
	Unit           *string                   `json:"unit,omitempty"`
	ReferenceRange *string                   `json:"referenceRange,omitempty"` // "<low>-<high>"
	Status         constants.ParameterStatus `json:"status"`
}

// ExtractedReport is the result of one extraction run. Absent fields are nil.
type ExtractedReport struct {
	ReportType      *string              `json:"reportType,omitempty"`
	ReportDate      *string              `json:"reportDate,omitempty"` // yyyy-mm-dd
	Veterinarian    *string              `json:"veterinarian,omitempty"`
	Parameters      []ExtractedParameter `json:"parameters"`
	Findings        *string              `json:"findings,omitempty"`
	Recommendations *string              `json:"recommendations,omitempty"`
}
