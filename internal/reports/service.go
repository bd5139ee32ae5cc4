package reports

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/analysis"
	"github.com/joseph-ayodele/pet-health-tracker/internal/async"
	"github.com/joseph-ayodele/pet-health-tracker/internal/cache"
	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/repository"
	"github.com/joseph-ayodele/pet-health-tracker/internal/utils"
)

// ReportCache is the subset of cache.Manager the service uses.
type ReportCache interface {
	GetList(petID string) ([]entity.HealthReport, bool)
	SetList(petID string, reports []entity.HealthReport)
	GetPreviews(petID string) []entity.ReportPreview
	AddReport(petID string, report entity.HealthReport)
	RemoveReport(petID, reportID string)
	UpdateDiagnosis(petID, reportID, analysis string)
	ApplyRemoteEvent(petID string, ev entity.RemoteEvent)
	Clear(petID string)
	Snapshot(petID string) cache.Snapshot
	Restore(snap cache.Snapshot)
}

// TextExtractor turns an uploaded scan into structured report fields.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*entity.ExtractedReport, error)
}

// Enqueuer schedules AI analysis of a stored report.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// Service coordinates the remote store, the local cache, extraction and analysis.
type Service struct {
	repo      repository.ReportRepository
	cache     ReportCache
	extractor TextExtractor
	analyzer  analysis.Analyzer
	logger    *slog.Logger
	now       func() time.Time

	qmu   sync.RWMutex
	queue Enqueuer
}

type Option func(*Service)

// WithAnalyzer enables AI analysis of uploaded reports.
func WithAnalyzer(a analysis.Analyzer) Option {
	return func(s *Service) { s.analyzer = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo repository.ReportRepository, c ReportCache, ex TextExtractor, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:      repo,
		cache:     c,
		extractor: ex,
		logger:    logger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AttachQueue sets where uploads send analysis jobs. The queue usually
// processes jobs with this same service, so it is attached after construction.
func (s *Service) AttachQueue(q Enqueuer) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	s.queue = q
}

func (s *Service) enqueuer() Enqueuer {
	s.qmu.RLock()
	defer s.qmu.RUnlock()
	return s.queue
}

// UploadRequest carries one scanned report from a client or the drop folder.
type UploadRequest struct {
	PetID    string
	Title    string
	Filename string
	MIMEType string
	Data     []byte
	ImageURL string

	// ReportType overrides the detected type when it names a known one.
	ReportType string
}

func (r UploadRequest) validate() error {
	v := common.NewValidator().
		Field("pet_id", r.PetID, common.Required, common.MaxLength(64)).
		Field("filename", r.Filename, common.Required, common.MaxLength(255)).
		Field("title", r.Title, common.MaxLength(200)).
		Field("data", r.Data, common.Required)
	if constants.MapMIMEToFormat(r.mimeType()) == "" {
		v.Field("mime_type", r.MIMEType, func(field string, value interface{}) *common.ValidationError {
			return &common.ValidationError{Field: field, Value: value, Message: "unsupported file type"}
		})
	}
	return v.Err()
}

// mimeType falls back to the filename extension when no MIME type was sent.
func (r UploadRequest) mimeType() string {
	mt := constants.NormalizeMIME(r.MIMEType)
	if mt == "" || mt == "application/octet-stream" {
		return constants.MIMEForExt(filepath.Ext(r.Filename))
	}
	return mt
}

// Upload extracts, stores and caches a new report and schedules its analysis.
// The returned report is still processing.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (entity.HealthReport, error) {
	ctx = common.WithPetID(common.EnsureRequestID(ctx), req.PetID)
	log := common.LoggerFromContext(ctx, s.logger)

	if err := req.validate(); err != nil {
		log.Warn("upload.invalid", "error", err)
		return entity.HealthReport{}, err
	}

	extracted, err := s.extractor.Extract(ctx, req.Data, req.mimeType())
	if err != nil {
		return entity.HealthReport{}, err
	}

	report := s.buildReport(req, extracted)
	stored, err := s.repo.Insert(ctx, report)
	if err != nil {
		log.Error("upload.insert_failed", "error", err)
		return entity.HealthReport{}, fmt.Errorf("store report: %w", err)
	}
	s.cache.AddReport(req.PetID, stored)

	if q := s.enqueuer(); q != nil && s.analyzer != nil {
		job := async.Job{PetID: req.PetID, ReportID: stored.ID, RequestID: common.RequestIDFromContext(ctx)}
		if err := q.Enqueue(ctx, job); err != nil {
			// The report stays processing; a later refresh will still show it.
			log.Warn("upload.enqueue_failed", "report_id", stored.ID, "error", err)
		}
	}

	log.Info("upload.ok",
		"report_id", stored.ID,
		"report_type", stored.ReportType,
		"report_date", stored.ReportDate,
		"parameters", len(stored.Parameters),
	)
	return stored, nil
}

func (s *Service) buildReport(req UploadRequest, ex *entity.ExtractedReport) entity.HealthReport {
	detected := utils.StrOrEmpty(ex.ReportType)
	if rt, ok := constants.CanonicalizeReportType(req.ReportType); ok {
		detected = string(rt)
	}
	reportType := string(constants.Other)
	if detected != "" {
		reportType = detected
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = detected
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(req.Filename), filepath.Ext(req.Filename))
	}

	date := utils.StrOrEmpty(ex.ReportDate)
	if date == "" {
		date = utils.FormatYMD(s.now())
	}

	params := ex.Parameters
	if params == nil {
		params = []entity.ExtractedParameter{}
	}

	return entity.HealthReport{
		PetID:           req.PetID,
		Title:           title,
		ReportType:      reportType,
		ReportDate:      date,
		Veterinarian:    ex.Veterinarian,
		ImageURL:        utils.NilIfEmpty(req.ImageURL),
		Status:          constants.ReportStatusProcessing,
		Parameters:      params,
		Findings:        ex.Findings,
		Recommendations: ex.Recommendations,
	}
}

// AnalyzeReport runs the analyzer for one stored report and records the outcome
// remotely and in the cache.
func (s *Service) AnalyzeReport(ctx context.Context, petID, reportID string) error {
	ctx = common.WithPetID(ctx, petID)
	log := common.LoggerFromContext(ctx, s.logger).With("report_id", reportID)

	if s.analyzer == nil {
		return common.NewAppError("CONFIG_ERROR", "no analyzer configured", common.ErrInvalidInput)
	}

	report, err := s.repo.Get(ctx, reportID)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	if report.PetID != petID {
		return common.NewAppError("NOT_FOUND", fmt.Sprintf("report %s not found for pet %s", reportID, petID), common.ErrNotFound)
	}
	if report.Status.IsTerminal() {
		log.Info("analysis.skip_terminal", "status", report.Status)
		return nil
	}

	text, aErr := s.analyzer.Analyze(ctx, report)
	if aErr != nil {
		log.Error("analysis.failed", "error", aErr)
		failed, err := s.repo.UpdateStatus(ctx, reportID, constants.ReportStatusFailed)
		if err != nil {
			return fmt.Errorf("mark report failed: %w (analysis: %v)", err, aErr)
		}
		s.cache.ApplyRemoteEvent(petID, entity.RemoteEvent{Kind: entity.EventUpdate, Record: failed})
		return fmt.Errorf("analyze report: %w", aErr)
	}

	if _, err := s.repo.UpdateAnalysis(ctx, reportID, text, constants.ReportStatusCompleted); err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}
	s.cache.UpdateDiagnosis(petID, reportID, text)
	log.Info("analysis.stored", "chars", len(text))
	return nil
}

// HandleRemoteEvent applies a pushed change for petID to the cache.
func (s *Service) HandleRemoteEvent(_ context.Context, petID string, ev entity.RemoteEvent) {
	s.cache.ApplyRemoteEvent(petID, ev)
}

// ClearCache drops every cached entry for petID.
func (s *Service) ClearCache(petID string) {
	s.cache.Clear(petID)
}

// Previews returns the cached preview tier for petID without touching the remote store.
func (s *Service) Previews(petID string) []entity.ReportPreview {
	return s.cache.GetPreviews(petID)
}
