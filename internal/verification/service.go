package verification

import (
	"context"
	"log/slog"
	"sync"

	"healthcert/internal/audit"
	"healthcert/internal/certificate"
	"healthcert/internal/domain"
	"healthcert/internal/platform/metrics"
	"healthcert/internal/registry"
	dErrors "healthcert/pkg/domain-errors"
)

// DocumentGetter is the slice of the document registry the service needs.
type DocumentGetter interface {
	Get(ctx context.Context, id domain.DocumentID) (domain.Document, error)
}

// Issuer mints a certificate once a run ends verified.
type Issuer interface {
	Issue(ctx context.Context, docID domain.DocumentID, tier domain.SecurityTier) (registry.IssuedCertificate, error)
}

// AuditPublisher is the slice of the audit trail the service needs.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Event is one emission from a verification run as seen by consumers.
// Terminal events carry either the issued certificate (verified) or the
// failed step (failed); Err covers cancellation and issuance failures.
type Event struct {
	Snapshot     *Snapshot
	Outcome      domain.RunOutcome
	FailedStepID string
	Certificate  *registry.IssuedCertificate
	Err          error
}

// Terminal reports whether this event ends the run.
func (e Event) Terminal() bool { return e.Outcome != "" || e.Err != nil }

// Run is the consumer handle on one verification run, including the issuance
// that follows a verified outcome.
type Run struct {
	ID         domain.VerificationRunID
	DocumentID domain.DocumentID

	events chan Event
	cancel func()

	mu       sync.Mutex
	terminal *Event
}

func newRun(id domain.VerificationRunID, docID domain.DocumentID, buffer int, cancel func()) *Run {
	if buffer <= 0 {
		buffer = 1
	}
	return &Run{
		ID:         id,
		DocumentID: docID,
		events:     make(chan Event, buffer),
		cancel:     cancel,
	}
}

func (r *Run) Events() <-chan Event { return r.events }

func (r *Run) Cancel() { r.cancel() }

// Terminal returns the terminal event once the run has ended.
func (r *Run) Terminal() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminal == nil {
		return Event{}, false
	}
	return *r.terminal, true
}

func (r *Run) publish(ev Event) {
	for {
		select {
		case r.events <- ev:
			return
		default:
			select {
			case <-r.events:
			default:
			}
		}
	}
}

func (r *Run) finish(ev Event) {
	r.mu.Lock()
	r.terminal = &ev
	r.mu.Unlock()
	r.publish(ev)
	close(r.events)
}

// Service submits verification runs against registered documents and wires
// their outcomes into the ledger and certificate issuance. Verification has
// no attempt limit: a failed run leaves the document pending, and callers may
// submit a fresh run with corrected keys at any time.
type Service struct {
	engine *Engine
	docs   DocumentGetter
	issuer Issuer
	ledger *certificate.OutcomeLedger

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher

	mu   sync.Mutex
	runs map[domain.VerificationRunID]*Run
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) ServiceOption {
	return func(s *Service) { s.audit = publisher }
}

func NewService(engine *Engine, docs DocumentGetter, issuer Issuer, ledger *certificate.OutcomeLedger, opts ...ServiceOption) *Service {
	s := &Service{
		engine: engine,
		docs:   docs,
		issuer: issuer,
		ledger: ledger,
		logger: slog.Default(),
		runs:   make(map[domain.VerificationRunID]*Run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit starts a verification run for a pending document. The run detaches
// from the caller's context; cancellation happens through Run.Cancel.
//
// Errors: CodeNotFound for unknown documents, CodeInvalidTransition when the
// document is not pending, CodeInvalidInput for an unknown tier. All are
// reported before the first step executes.
func (s *Service) Submit(ctx context.Context, docID domain.DocumentID, keyA, keyB string, tier domain.SecurityTier) (*Run, error) {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocumentStatusPending {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition,
			"document %s is %s; only pending documents can be verified", docID, doc.Status)
	}

	engineRun, err := s.engine.Start(ctx, keyA, keyB, tier)
	if err != nil {
		return nil, err
	}

	run := newRun(engineRun.ID, docID, cap(engineRun.events)+1, engineRun.Cancel)
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	go s.relay(context.WithoutCancel(ctx), run, engineRun, docID, tier)
	return run, nil
}

// Run returns the handle for an in-flight or completed run.
func (s *Service) Run(id domain.VerificationRunID) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok
}

// Release drops a completed run from the index once its consumer is done.
func (s *Service) Release(id domain.VerificationRunID) {
	s.mu.Lock()
	delete(s.runs, id)
	s.mu.Unlock()
}

// relay forwards engine events to the run's consumers and, at the terminal
// event, records the outcome and drives issuance.
func (s *Service) relay(ctx context.Context, run *Run, engineRun *EngineRun, docID domain.DocumentID, tier domain.SecurityTier) {
	for ev := range engineRun.Events() {
		if !ev.Terminal() {
			run.publish(Event{Snapshot: ev.Snapshot})
			continue
		}

		switch {
		case ev.Err != nil:
			s.logger.InfoContext(ctx, "verification run cancelled", "run_id", run.ID, "document_id", docID)
			run.finish(Event{Err: ev.Err})

		case ev.Outcome == domain.OutcomeFailed:
			s.ledger.Record(docID, domain.OutcomeFailed)
			s.metrics.ObserveVerification(string(tier), string(domain.OutcomeFailed))
			if s.audit != nil {
				_ = s.audit.Emit(ctx, audit.NewEvent(audit.KindVerificationFailed, docID.String(), map[string]string{
					"run_id":      run.ID.String(),
					"tier":        string(tier),
					"failed_step": ev.FailedStepID,
				}))
			}
			s.logger.InfoContext(ctx, "verification failed",
				"run_id", run.ID,
				"document_id", docID,
				"tier", tier,
				"failed_step", ev.FailedStepID,
			)
			run.finish(Event{Outcome: domain.OutcomeFailed, FailedStepID: ev.FailedStepID})

		default:
			s.ledger.Record(docID, domain.OutcomeVerified)
			s.metrics.ObserveVerification(string(tier), string(domain.OutcomeVerified))
			if s.audit != nil {
				_ = s.audit.Emit(ctx, audit.NewEvent(audit.KindVerificationVerified, docID.String(), map[string]string{
					"run_id": run.ID.String(),
					"tier":   string(tier),
				}))
			}

			issued, err := s.issuer.Issue(ctx, docID, tier)
			if err != nil {
				// Verified stands; only issuance failed. A lost race with a
				// concurrent run surfaces here as an invalid transition.
				s.logger.ErrorContext(ctx, "certificate issuance failed",
					"run_id", run.ID,
					"document_id", docID,
					"error", err.Error(),
				)
				run.finish(Event{Outcome: domain.OutcomeVerified, Err: err})
				return
			}
			s.logger.InfoContext(ctx, "verification verified",
				"run_id", run.ID,
				"document_id", docID,
				"tier", tier,
				"certificate_id", issued.ID,
			)
			run.finish(Event{Outcome: domain.OutcomeVerified, Certificate: &issued})
		}
	}
}
