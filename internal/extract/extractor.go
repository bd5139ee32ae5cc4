package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/metrics"
)

// Extractor runs OCR over an uploaded report and parses the text.
type Extractor struct {
	rec     Recognizer
	logger  *slog.Logger
	metrics *metrics.Collector
}

type Option func(*Extractor)

func WithMetrics(m *metrics.Collector) Option {
	return func(e *Extractor) { e.metrics = m }
}

func NewExtractor(rec Recognizer, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{rec: rec, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns a best-effort report. The only error is an OCR failure,
// matchable with errors.Is(err, common.ErrOCRFailure).
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (*entity.ExtractedReport, error) {
	start := time.Now()
	log := common.LoggerFromContext(ctx, e.logger)

	if len(data) == 0 {
		e.metrics.ObserveExtraction("ocr_failure", time.Since(start))
		return nil, common.OCRError(errors.New("empty file"))
	}

	text, err := e.rec.Recognize(ctx, data, mimeType)
	if err != nil {
		e.metrics.ObserveExtraction("ocr_failure", time.Since(start))
		log.Error("extract.ocr.failed", "mime_type", mimeType, "error", err)
		return nil, common.OCRError(err)
	}

	rep := Parse(text)
	outcome := "parsed"
	if isEmpty(rep) {
		outcome = "empty"
	}
	dur := time.Since(start)
	e.metrics.ObserveExtraction(outcome, dur)
	log.Info("extract.done",
		"outcome", outcome,
		"report_type", deref(rep.ReportType),
		"report_date", deref(rep.ReportDate),
		"parameters", len(rep.Parameters),
		"duration_ms", dur.Milliseconds(),
	)
	return rep, nil
}

func isEmpty(r *entity.ExtractedReport) bool {
	return r.ReportType == nil && r.ReportDate == nil && r.Veterinarian == nil &&
		len(r.Parameters) == 0 && r.Findings == nil && r.Recommendations == nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
