package analysis

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
)

// ErrInvalidResponse is returned when the assistant reply cannot be turned into an assessment.
var ErrInvalidResponse = errors.New("analysis: invalid assistant response")

// Analyzer produces the display text stored as a report's ai_analysis.
type Analyzer interface {
	Analyze(ctx context.Context, report entity.HealthReport) (string, error)
}

// AnalyzerFunc adapts a plain function to Analyzer.
type AnalyzerFunc func(ctx context.Context, report entity.HealthReport) (string, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, report entity.HealthReport) (string, error) {
	return f(ctx, report)
}

// Assessment is the structured shape requested from the assistant.
type Assessment struct {
	Summary         string   `json:"summary"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
	Urgency         string   `json:"urgency"` // routine | soon | urgent
}
