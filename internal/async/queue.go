package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/pet-health-tracker/internal/metrics"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has started.
var ErrQueueClosed = errors.New("async: queue closed")

// Job asks for the AI analysis of one uploaded report.
type Job struct {
	PetID       string
	ReportID    string
	SubmittedAt time.Time
	RequestID   string
}

// Processor runs one analysis job.
type Processor interface {
	AnalyzeReport(ctx context.Context, petID, reportID string) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, petID, reportID string) error

func (f ProcessorFunc) AnalyzeReport(ctx context.Context, petID, reportID string) error {
	return f(ctx, petID, reportID)
}

// AnalysisQueue is a bounded worker pool over analysis jobs.
type AnalysisQueue struct {
	proc    Processor
	logger  *slog.Logger
	metrics *metrics.Collector
	workers int
	timeout time.Duration
	limiter *rate.Limiter

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// baseCtx is cancelled when Shutdown gives up waiting.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

type Option func(*AnalysisQueue)

func WithWorkers(n int) Option {
	return func(q *AnalysisQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *AnalysisQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *AnalysisQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithRateLimit caps job starts across all workers to perMinute.
func WithRateLimit(perMinute int) Option {
	return func(q *AnalysisQueue) {
		if perMinute > 0 {
			q.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(q *AnalysisQueue) { q.metrics = m }
}

// NewAnalysisQueue starts the workers immediately.
func NewAnalysisQueue(proc Processor, logger *slog.Logger, opts ...Option) *AnalysisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &AnalysisQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 2 * time.Minute,
		ch:      make(chan Job, 128),
	}
	for _, o := range opts {
		o(q)
	}
	q.baseCtx, q.cancel = context.WithCancel(context.Background())
	q.start()
	return q
}

func (q *AnalysisQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
	})
}

func (q *AnalysisQueue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Debug("analysis.worker.started", "worker_id", workerID)

	for job := range q.ch {
		q.metrics.SetQueueLength(len(q.ch))
		if q.limiter != nil {
			if err := q.limiter.Wait(q.baseCtx); err != nil {
				q.logger.Warn("analysis.job.dropped", "worker_id", workerID, "report_id", job.ReportID, "error", err)
				q.metrics.AnalysisJob("dropped")
				continue
			}
		}
		q.run(workerID, job)
	}

	q.logger.Debug("analysis.worker.stopped", "worker_id", workerID)
}

func (q *AnalysisQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(q.baseCtx, q.timeout)
	defer cancel()

	start := time.Now()
	err := q.proc.AnalyzeReport(ctx, job.PetID, job.ReportID)
	attrs := []any{
		"worker_id", workerID,
		"pet_id", job.PetID,
		"report_id", job.ReportID,
		"request_id", job.RequestID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		q.logger.Error("analysis.job.failed", append(attrs, "error", err)...)
		q.metrics.AnalysisJob("failed")
		return
	}
	q.logger.Info("analysis.job.done", attrs...)
	q.metrics.AnalysisJob("completed")
}

// Enqueue blocks while the buffer is full, until ctx ends.
func (q *AnalysisQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("analysis.enqueue.closed", "report_id", job.ReportID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	select {
	case q.ch <- job:
	default:
		q.logger.Warn("analysis.enqueue.backpressure", "report_id", job.ReportID, "queued", len(q.ch))
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.metrics.SetQueueLength(len(q.ch))
	q.logger.Debug("analysis.enqueued", "pet_id", job.PetID, "report_id", job.ReportID)
	return nil
}

// Len reports jobs waiting for a worker.
func (q *AnalysisQueue) Len() int { return len(q.ch) }

// Shutdown stops intake and waits for queued jobs to drain. If ctx ends first,
// in-flight jobs are cancelled and ctx.Err() is returned.
func (q *AnalysisQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("analysis.queue.drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		q.logger.Warn("analysis.queue.shutdown_interrupted", "error", ctx.Err())
		return ctx.Err()
	}
}
