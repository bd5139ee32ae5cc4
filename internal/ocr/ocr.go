package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
)

// minPDFTextChars is the text-layer size below which a PDF is treated as scanned.
const minPDFTextChars = 32

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir   string
	HeicConverter string // "heif-convert" | "magick" | "sips"

	Timeout time.Duration // bounds one Recognize call; 0 = no limit
}

type Result struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE | constants.TXT
	Method     string // "plain-text" | "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner. Used by tests.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Recognize turns one uploaded file into text. The format is chosen from mimeType.
func (e *Extractor) Recognize(ctx context.Context, data []byte, mimeType string) (Result, error) {
	start := time.Now()
	format := constants.MapMIMEToFormat(mimeType)
	if format == "" {
		e.logger.Error("unsupported ocr mime type", "mime_type", mimeType)
		return Result{}, fmt.Errorf("unsupported mime type: %q", mimeType)
	}
	if len(data) == 0 {
		return Result{SourceType: format}, fmt.Errorf("empty input")
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	e.logger.Debug("starting ocr", "mime_type", mimeType, "format", format, "bytes", len(data))

	if format == constants.TXT {
		txt := Normalize(string(data))
		return Result{
			Text:       txt,
			Pages:      1,
			SourceType: constants.TXT,
			Method:     "plain-text",
			Duration:   time.Since(start),
			Confidence: heuristicConfidence(txt),
		}, nil
	}

	tmpDir, err := os.MkdirTemp("", "pht-ocr-*")
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove ocr temp dir", "dir", tmpDir, "error", err)
		}
	}()
	ext := constants.ExtForMIME(mimeType)
	path := filepath.Join(tmpDir, "input."+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Result{}, err
	}

	var res Result
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	default:
		res, err = e.extractImage(ctx, path, ext, tmpDir)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("ocr failed", "format", format, "duration_ms", res.Duration.Milliseconds(), "error", err)
		return res, err
	}
	e.logger.Info("ocr done",
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// RecognizeFile reads path and picks the MIME type from its extension.
func (e *Extractor) RecognizeFile(ctx context.Context, path string) (Result, error) {
	mimeType := constants.MIMEForExt(filepath.Ext(path))
	if mimeType == "" {
		return Result{}, fmt.Errorf("unsupported extension: %q", strings.ToLower(filepath.Ext(path)))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	return e.Recognize(ctx, data, mimeType)
}
