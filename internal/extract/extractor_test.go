package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/metrics"
	"github.com/joseph-ayodele/pet-health-tracker/internal/ocr"
)

func TestExtract_OCRFailure(t *testing.T) {
	rec := RecognizerFunc(func(context.Context, []byte, string) (string, error) {
		return "", errors.New("tesseract: signal: killed")
	})
	e := NewExtractor(rec, nil, WithMetrics(metrics.NewCollector()))

	rep, err := e.Extract(context.Background(), []byte("jpeg"), "image/jpeg")
	assert.Nil(t, rep)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrOCRFailure)
	assert.ErrorContains(t, err, "signal: killed")
}

func TestExtract_EmptyFileIsOCRFailure(t *testing.T) {
	called := false
	rec := RecognizerFunc(func(context.Context, []byte, string) (string, error) {
		called = true
		return "", nil
	})

	_, err := NewExtractor(rec, nil).Extract(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, common.ErrOCRFailure)
	assert.False(t, called)
}

func TestExtract_UnmatchedContentIsNotAnError(t *testing.T) {
	rec := RecognizerFunc(func(context.Context, []byte, string) (string, error) {
		return "  \n ", nil
	})

	rep, err := NewExtractor(rec, nil).Extract(context.Background(), []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Empty(t, rep.Parameters)
	assert.Nil(t, rep.ReportType)
}

func TestExtract_ThroughOCRAdapter(t *testing.T) {
	e := NewExtractor(NewOCRAdapter(ocr.NewExtractor(ocr.Config{}, nil), nil), nil)

	rep, err := e.Extract(context.Background(), []byte("Urinalysis\npH: 8.1 ref 6.0-7.5\n"), "text/plain")
	require.NoError(t, err)
	require.NotNil(t, rep.ReportType)
	assert.Equal(t, "Urinalysis", *rep.ReportType)
	require.Len(t, rep.Parameters, 1)
	assert.Equal(t, "pH", rep.Parameters[0].Name)
	assert.Equal(t, "high", string(rep.Parameters[0].Status))
}

func TestExtract_UnsupportedMIMEIsOCRFailure(t *testing.T) {
	e := NewExtractor(NewOCRAdapter(ocr.NewExtractor(ocr.Config{}, nil), nil), nil)

	_, err := e.Extract(context.Background(), []byte("PK"), "application/zip")
	assert.ErrorIs(t, err, common.ErrOCRFailure)
}
