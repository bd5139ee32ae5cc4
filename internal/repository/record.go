package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
)

// Record is one health_reports row in its column shape. It doubles as the
// decoding target of row_to_json payloads from the change feed.
type Record struct {
	ID              string  `json:"id"`
	PetID           string  `json:"pet_id"`
	Title           string  `json:"title"`
	ReportType      string  `json:"report_type"`
	ReportDate      string  `json:"report_date"`
	ReportLabel     *string `json:"report_label"`
	Diagnosis       *string `json:"diagnosis"`
	Veterinarian    *string `json:"veterinarian"`
	ImageURL        *string `json:"image_url"`
	AIAnalysis      *string `json:"ai_analysis"`
	Status          string  `json:"status"`
	Parameters      *string `json:"parameters"` // JSON array text
	Findings        *string `json:"findings"`
	Recommendations *string `json:"recommendations"`
	CreatedAt       int64   `json:"created_at"` // unix ms
	UpdatedAt       int64   `json:"updated_at"` // unix ms
}

// ToEntity converts the row into a HealthReport.
func (r Record) ToEntity() (entity.HealthReport, error) {
	out := entity.HealthReport{
		ID:              r.ID,
		PetID:           r.PetID,
		Title:           r.Title,
		ReportType:      r.ReportType,
		ReportDate:      r.ReportDate,
		ReportLabel:     r.ReportLabel,
		Diagnosis:       r.Diagnosis,
		Veterinarian:    r.Veterinarian,
		ImageURL:        r.ImageURL,
		AIAnalysis:      r.AIAnalysis,
		Status:          constants.ReportStatus(r.Status),
		Findings:        r.Findings,
		Recommendations: r.Recommendations,
		CreatedAt:       time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:       time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if r.Parameters != nil && *r.Parameters != "" {
		if err := json.Unmarshal([]byte(*r.Parameters), &out.Parameters); err != nil {
			return out, fmt.Errorf("decode parameters of report %s: %w", r.ID, err)
		}
	}
	return out, nil
}

// RecordFromEntity converts a HealthReport into its row shape.
func RecordFromEntity(h entity.HealthReport) (Record, error) {
	r := Record{
		ID:              h.ID,
		PetID:           h.PetID,
		Title:           h.Title,
		ReportType:      h.ReportType,
		ReportDate:      h.ReportDate,
		ReportLabel:     h.ReportLabel,
		Diagnosis:       h.Diagnosis,
		Veterinarian:    h.Veterinarian,
		ImageURL:        h.ImageURL,
		AIAnalysis:      h.AIAnalysis,
		Status:          string(h.Status),
		Findings:        h.Findings,
		Recommendations: h.Recommendations,
		CreatedAt:       h.CreatedAt.UnixMilli(),
		UpdatedAt:       h.UpdatedAt.UnixMilli(),
	}
	if len(h.Parameters) > 0 {
		b, err := json.Marshal(h.Parameters)
		if err != nil {
			return r, fmt.Errorf("encode parameters: %w", err)
		}
		s := string(b)
		r.Parameters = &s
	}
	return r, nil
}
