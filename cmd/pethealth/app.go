package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pet-health-tracker/internal/analysis"
	"github.com/joseph-ayodele/pet-health-tracker/internal/cache"
	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/export"
	"github.com/joseph-ayodele/pet-health-tracker/internal/extract"
	"github.com/joseph-ayodele/pet-health-tracker/internal/kv"
	"github.com/joseph-ayodele/pet-health-tracker/internal/metrics"
	"github.com/joseph-ayodele/pet-health-tracker/internal/ocr"
	"github.com/joseph-ayodele/pet-health-tracker/internal/reports"
	"github.com/joseph-ayodele/pet-health-tracker/internal/repository"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	db        *repository.DB
	store     kv.Store
	closeKV   func() error
	metrics   *metrics.Collector
	cache     *cache.Manager
	extractor *extract.Extractor
	reports   *reports.Service
	exporter  *export.Service
	log       *slog.Logger
}

func newOCR(c common.OCRConfig, log *slog.Logger) *ocr.Extractor {
	return ocr.NewExtractor(ocr.Config{
		Pdftotext:     c.Pdftotext,
		Pdftoppm:      c.Pdftoppm,
		Tesseract:     c.Tesseract,
		TesseractLang: c.Lang,
		DPI:           c.DPI,
		MaxPages:      c.MaxPages,
		TessdataDir:   c.TessdataDir,
		HeicConverter: c.HeicConverter,
		Timeout:       c.Timeout,
	}, log)
}

// openApp connects the report store and cache and builds the services.
// withAnalyzer is false for commands that never schedule analysis.
func openApp(ctx context.Context, c *common.Config, log *slog.Logger, withAnalyzer bool) (*app, error) {
	a := &app{log: log, metrics: metrics.NewCollector()}

	db, err := repository.Open(ctx, c.Database, log)
	if err != nil {
		return nil, err
	}
	a.db = db
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		a.close()
		return nil, fmt.Errorf("database health: %w", err)
	}
	if err := db.Migrate(ctx, c.Realtime.Channel, log); err != nil {
		a.close()
		return nil, err
	}

	if c.Cache.Path != "" {
		s, err := kv.OpenSQLite(c.Cache.Path, log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open cache: %w", err)
		}
		a.store, a.closeKV = s, s.Close
	} else {
		a.store = kv.NewMemoryStore()
	}

	a.cache = cache.NewManager(a.store, log,
		cache.WithListTTL(c.Cache.ListTTL),
		cache.WithPreviewTTL(c.Cache.PreviewTTL),
		cache.WithMetrics(a.metrics),
	)
	a.extractor = extract.NewExtractor(extract.NewOCRAdapter(newOCR(c.OCR, log), log), log, extract.WithMetrics(a.metrics))

	repo := repository.NewReportRepository(db, log)
	var opts []reports.Option
	if withAnalyzer && c.Analysis.APIKey != "" {
		an, err := analysis.NewClaudeAnalyzer(analysis.ConfigFrom(c.Analysis), log)
		if err != nil {
			a.close()
			return nil, err
		}
		opts = append(opts, reports.WithAnalyzer(an))
	} else if withAnalyzer {
		log.Warn("analysis.disabled", "reason", "analysis.api_key not set")
	}
	a.reports = reports.NewService(repo, a.cache, a.extractor, log, opts...)
	a.exporter = export.NewService(repo, log)
	return a, nil
}

func (a *app) close() {
	if a.closeKV != nil {
		if err := a.closeKV(); err != nil {
			a.log.Warn("cache.close_failed", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close(a.log)
	}
}
