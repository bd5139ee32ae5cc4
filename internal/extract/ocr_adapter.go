package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/pet-health-tracker/internal/ocr"
)

type OCRAdapter struct {
	extractor *ocr.Extractor
	logger    *slog.Logger
}

func NewOCRAdapter(e *ocr.Extractor, l *slog.Logger) *OCRAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &OCRAdapter{
		extractor: e,
		logger:    l,
	}
}

func (a *OCRAdapter) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	r, err := a.extractor.Recognize(ctx, data, mimeType)
	if err != nil {
		return "", err
	}
	if len(r.Warnings) > 0 {
		a.logger.Warn("ocr warnings", "method", r.Method, "warnings", r.Warnings)
	}
	return r.Text, nil
}
