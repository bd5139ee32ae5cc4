package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/metrics"
	"github.com/joseph-ayodele/pet-health-tracker/internal/reports"
)

// ReportService is the report workflow the HTTP API exposes.
type ReportService interface {
	Load(ctx context.Context, petID string) (reports.View, error)
	Upload(ctx context.Context, req reports.UploadRequest) (entity.HealthReport, error)
	Delete(ctx context.Context, petID, reportID string) (reports.Mutation, error)
	Previews(petID string) []entity.ReportPreview
	ClearCache(petID string)
}

// Exporter renders a pet's reports as a spreadsheet.
type Exporter interface {
	ExportReportsXLSX(ctx context.Context, petID string) ([]byte, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Handler serves the HTTP API.
type Handler struct {
	svc       ReportService
	exporter  Exporter
	metrics   *metrics.Collector
	health    HealthCheck
	logger    *slog.Logger
	maxUpload int64
}

type Option func(*Handler)

func WithExporter(e Exporter) Option {
	return func(h *Handler) { h.exporter = e }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithHealthCheck(fn HealthCheck) Option {
	return func(h *Handler) { h.health = fn }
}

// WithMaxUpload caps the multipart body size in bytes.
func WithMaxUpload(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

func NewHandler(svc ReportService, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: svc, logger: logger, maxUpload: 32 << 20}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Routes builds the chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(h.observe)

	r.Get("/healthz", h.healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/pets/{petID}", func(r chi.Router) {
		r.Get("/reports", h.listReports)
		r.Post("/reports", h.uploadReport)
		r.Delete("/reports/{reportID}", h.deleteReport)
		r.Get("/previews", h.listPreviews)
		r.Get("/export.xlsx", h.exportReports)
		r.Delete("/cache", h.clearCache)
	})
	return r
}

// requestID reuses an inbound X-Request-ID or assigns one, and exposes it on the context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(middleware.RequestIDHeader); id != "" {
			ctx = common.WithRequestID(ctx, id)
		}
		ctx = common.EnsureRequestID(ctx)
		w.Header().Set(middleware.RequestIDHeader, common.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// observe records request metrics under the matched route pattern and logs the outcome.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		h.metrics.ObserveRequest(r.Method, route, status, elapsed)
		common.LoggerFromContext(r.Context(), h.logger).Debug("http.request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"elapsed_ms", elapsed.Milliseconds(),
		)
	})
}
