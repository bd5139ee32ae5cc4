package entity

import (
	"time"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
)

// HealthReport is a persisted report record for data transfer between layers.
type HealthReport struct {
	ID              string                 `json:"id"`
	PetID           string                 `json:"pet_id"`
	Title           string                 `json:"title"`
	ReportType      string                 `json:"report_type"`
	ReportDate      string                 `json:"report_date"` // yyyy-mm-dd
	ReportLabel     *string                `json:"report_label,omitempty"`
	Diagnosis       *string                `json:"diagnosis,omitempty"`
	Veterinarian    *string                `json:"veterinarian,omitempty"`
	ImageURL        *string                `json:"image_url,omitempty"`
	AIAnalysis      *string                `json:"ai_analysis,omitempty"`
	Status          constants.ReportStatus `json:"status"`
	Parameters      []ExtractedParameter   `json:"parameters,omitempty"`
	Findings        *string                `json:"findings,omitempty"`
	Recommendations *string                `json:"recommendations,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// HasAIAnalysis reports whether an AI analysis text is attached.
func (r HealthReport) HasAIAnalysis() bool {
	return r.AIAnalysis != nil && *r.AIAnalysis != ""
}
