// Package scanner orchestrates scan jobs: it drives the phased progress
// signal for each job and hands the image to the extraction capability for
// the job's document type.
package scanner

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"healthcert/internal/audit"
	"healthcert/internal/domain"
	"healthcert/internal/platform/metrics"
	"healthcert/internal/scanner/extractor"
	dErrors "healthcert/pkg/domain-errors"
)

// AuditPublisher is the slice of the audit trail the scanner needs.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs scan jobs. One goroutine per job; jobs for different images
// proceed fully in parallel and share no mutable state beyond the run index.
type Service struct {
	extractors *extractor.Registry
	images     *ImageStore

	steps        int
	tickInterval time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher
	tracer  trace.Tracer

	mu   sync.Mutex
	runs map[domain.ScanJobID]*Run
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

// WithSteps overrides the number of progress ticks per job.
func WithSteps(steps int) Option {
	return func(s *Service) {
		if steps > 0 {
			s.steps = steps
		}
	}
}

// WithTickInterval overrides the pacing between ticks.
func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

func New(extractors *extractor.Registry, images *ImageStore, opts ...Option) *Service {
	s := &Service{
		extractors:   extractors,
		images:       images,
		steps:        10,
		tickInterval: 200 * time.Millisecond,
		logger:       slog.Default(),
		tracer:       otel.Tracer("healthcert/scanner"),
		runs:         make(map[domain.ScanJobID]*Run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartScan validates the job and begins emitting progress. The run detaches
// from the caller's context: submission outlives the submitting request, and
// cancellation happens through Run.Cancel.
//
// Errors: CodeUnsupportedDocumentType for unrecognized types, CodeNotFound
// when the image reference is unknown, CodeInvalidInput when the bytes do not
// look like an image. All are reported before the first tick.
func (s *Service) StartScan(ctx context.Context, job domain.ScanJob) (*Run, error) {
	if !job.DocumentType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeUnsupportedDocumentType, "unsupported document type %q", job.DocumentType)
	}
	data, err := s.images.Get(job.ImageRef)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "image reference not found")
	}
	if !looksLikeImage(data) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "image bytes are not a decodable image")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := newRun(job.ID, s.steps+1, cancel)

	s.mu.Lock()
	s.runs[job.ID] = run
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ScansStarted.Inc()
	}
	go s.execute(runCtx, run, job)

	return run, nil
}

// Run returns the handle for an in-flight or completed job.
func (s *Service) Run(jobID domain.ScanJobID) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[jobID]
	return run, ok
}

// Release drops a completed run from the index once its consumer is done.
func (s *Service) Release(jobID domain.ScanJobID) {
	s.mu.Lock()
	delete(s.runs, jobID)
	s.mu.Unlock()
}

func (s *Service) execute(ctx context.Context, run *Run, job domain.ScanJob) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "scan.run",
		trace.WithAttributes(
			attribute.String("scan.job_id", job.ID.String()),
			attribute.String("scan.document_type", string(job.DocumentType)),
			attribute.Bool("scan.enhanced", job.EnhancedMode),
		))
	defer span.End()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for i := 1; i <= s.steps; i++ {
		select {
		case <-ctx.Done():
			s.cancelled(ctx, run, job)
			return
		case <-ticker.C:
		}

		percent := i * 100 / s.steps
		terminal := i == s.steps
		progress := progressAt(percent, job.EnhancedMode, terminal)
		run.publish(Event{Progress: &progress})
	}

	// Extraction failure is not an engine failure: an unregistered type
	// yields an empty field set, which is a valid result.
	ex, err := s.extractors.Extract(ctx, job.ImageRef, job.DocumentType)
	if err != nil {
		s.logger.ErrorContext(ctx, "field extraction failed",
			"job_id", job.ID,
			"document_type", job.DocumentType,
			"error", err.Error(),
		)
		run.finish(Event{Err: dErrors.Wrap(err, dErrors.CodeInternal, "field extraction failed")})
		return
	}

	terminalConfidence := float64(confidenceCap)
	if job.EnhancedMode {
		terminalConfidence = enhancedConfidence
	}
	result := domain.ScanResult{
		ImageRef:      job.ImageRef,
		ExtractedText: ex.Text,
		Fields:        ex.Fields,
		Confidence:    terminalConfidence,
	}

	if s.metrics != nil {
		s.metrics.ObserveScan(string(job.DocumentType), job.EnhancedMode, time.Since(start))
	}
	if s.audit != nil {
		_ = s.audit.Emit(ctx, audit.NewEvent(audit.KindScanCompleted, job.ID.String(), map[string]string{
			"document_type": string(job.DocumentType),
			"field_count":   strconv.Itoa(len(result.Fields)),
		}))
	}
	s.logger.InfoContext(ctx, "scan completed",
		"job_id", job.ID,
		"document_type", job.DocumentType,
		"enhanced", job.EnhancedMode,
		"confidence", result.Confidence,
	)
	run.finish(Event{Result: &result})
}

// cancelled discards partial progress and reports the terminal cancellation.
// No result is produced and nothing is persisted.
func (s *Service) cancelled(ctx context.Context, run *Run, job domain.ScanJob) {
	if s.metrics != nil {
		s.metrics.ScansCancelled.Inc()
	}
	if s.audit != nil {
		_ = s.audit.Emit(ctx, audit.NewEvent(audit.KindScanCancelled, job.ID.String(), nil))
	}
	s.logger.InfoContext(ctx, "scan cancelled", "job_id", job.ID)
	run.finish(Event{Err: dErrors.New(dErrors.CodeScanCancelled, "scan cancelled before completion")})
}
