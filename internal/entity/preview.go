package entity

import "github.com/joseph-ayodele/pet-health-tracker/constants"

// ReportPreview is the lightweight projection of a HealthReport kept for instant list rendering.
type ReportPreview struct {
	ID             string                 `json:"id"`
	PetID          string                 `json:"pet_id"`
	Title          string                 `json:"title"`
	ReportType     string                 `json:"report_type"`
	ReportDate     string                 `json:"report_date"`
	ReportLabel    *string                `json:"report_label,omitempty"`
	Diagnosis      *string                `json:"diagnosis,omitempty"`
	ImageURL       *string                `json:"image_url,omitempty"`
	AIAnalysis     *string                `json:"ai_analysis,omitempty"`
	Status         constants.ReportStatus `json:"status"`
	CachedAt       int64                  `json:"cached_at"` // unix ms
	HasAIDiagnosis bool                   `json:"hasAIDiagnosis"`
}

// ToReport converts a preview into the minimal report shape used as a list fallback.
// AI fields are left absent.
func (p ReportPreview) ToReport() HealthReport {
	return HealthReport{
		ID:          p.ID,
		PetID:       p.PetID,
		Title:       p.Title,
		ReportType:  p.ReportType,
		ReportDate:  p.ReportDate,
		ReportLabel: p.ReportLabel,
		Diagnosis:   p.Diagnosis,
		ImageURL:    p.ImageURL,
		Status:      p.Status,
	}
}
