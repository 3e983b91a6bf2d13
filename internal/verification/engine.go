// Package verification runs the ordered multi-step check of two comparison
// keys under a security tier, and orchestrates certificate issuance when a
// run terminates verified.
package verification

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"healthcert/internal/domain"
	"healthcert/internal/platform/metrics"
	dErrors "healthcert/pkg/domain-errors"
)

// Snapshot is the engine's view after a step transition: the full step list
// plus overall completion. Snapshots are run-scoped and never persisted.
type Snapshot struct {
	Steps          []domain.VerificationStep `json:"steps"`
	OverallPercent int                       `json:"overall_percent"`
}

// EngineEvent is one emission from an engine run. Terminal events carry the
// outcome; on failure FailedStepID names the step that errored.
type EngineEvent struct {
	Snapshot     *Snapshot
	Outcome      domain.RunOutcome
	FailedStepID string
	Err          error
}

// Terminal reports whether this event ends the run.
func (e EngineEvent) Terminal() bool { return e.Outcome != "" || e.Err != nil }

// EngineRun is the caller's handle on one verification run. Same delivery
// contract as a scan run: bounded latest-wins buffer, terminal event always
// delivered, channel closed afterwards.
type EngineRun struct {
	ID domain.VerificationRunID

	events chan EngineEvent
	cancel context.CancelFunc

	mu       sync.Mutex
	terminal *EngineEvent
}

func newEngineRun(id domain.VerificationRunID, buffer int, cancel context.CancelFunc) *EngineRun {
	if buffer <= 0 {
		buffer = 1
	}
	return &EngineRun{
		ID:     id,
		events: make(chan EngineEvent, buffer),
		cancel: cancel,
	}
}

func (r *EngineRun) Events() <-chan EngineEvent { return r.events }

func (r *EngineRun) Cancel() { r.cancel() }

// Terminal returns the terminal event once the run has ended.
func (r *EngineRun) Terminal() (EngineEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminal == nil {
		return EngineEvent{}, false
	}
	return *r.terminal, true
}

func (r *EngineRun) publish(ev EngineEvent) {
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

func (r *EngineRun) finish(ev EngineEvent) {
	r.mu.Lock()
	r.terminal = &ev
	r.mu.Unlock()
	r.publish(ev)
	close(r.events)
}

// Engine executes verification runs. State machine per run:
// Idle -> Running(stepIndex) -> {Verified, Failed}; terminal states are
// final, retries are a new run. Steps within one run are strictly
// sequential; runs for different subjects proceed in parallel.
type Engine struct {
	comparator Comparator
	stepDelay  time.Duration
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type EngineOption func(*Engine)

// WithStepDelay paces step execution; tests shrink it to keep runs fast.
func WithStepDelay(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d >= 0 {
			e.stepDelay = d
		}
	}
}

func WithEngineMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(comparator Comparator, opts ...EngineOption) *Engine {
	e := &Engine{
		comparator: comparator,
		stepDelay:  150 * time.Millisecond,
		tracer:     otel.Tracer("healthcert/verification"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a verification run. The run detaches from the caller's
// context; cancellation happens through EngineRun.Cancel.
func (e *Engine) Start(ctx context.Context, keyA, keyB string, tier domain.SecurityTier) (*EngineRun, error) {
	if !tier.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown security tier %q", tier)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	specs := stepsForTier(tier)
	run := newEngineRun(domain.NewVerificationRunID(), 2*len(specs)+1, cancel)

	go e.execute(runCtx, run, keyA, keyB, tier, specs)
	return run, nil
}

func (e *Engine) execute(ctx context.Context, run *EngineRun, keyA, keyB string, tier domain.SecurityTier, specs []stepSpec) {
	ctx, span := e.tracer.Start(ctx, "verification.run",
		trace.WithAttributes(
			attribute.String("verification.run_id", run.ID.String()),
			attribute.String("verification.tier", string(tier)),
			attribute.Int("verification.step_count", len(specs)),
		))
	defer span.End()

	steps := make([]domain.VerificationStep, len(specs))
	for i, spec := range specs {
		steps[i] = domain.VerificationStep{
			ID:          spec.id,
			Name:        spec.name,
			Status:      domain.StepPending,
			Description: spec.description,
		}
	}

	completed := 0
	snapshot := func() *Snapshot {
		s := &Snapshot{
			Steps:          append([]domain.VerificationStep{}, steps...),
			OverallPercent: completed * 100 / len(steps),
		}
		return s
	}

	for i, spec := range specs {
		select {
		case <-ctx.Done():
			run.finish(EngineEvent{Err: ctx.Err()})
			return
		default:
		}

		steps[i].Status = domain.StepProcessing
		run.publish(EngineEvent{Snapshot: snapshot()})

		stepStart := time.Now()
		if e.stepDelay > 0 {
			select {
			case <-ctx.Done():
				run.finish(EngineEvent{Err: ctx.Err()})
				return
			case <-time.After(e.stepDelay):
			}
		}

		passed := e.evaluate(spec, keyA, keyB, tier)
		if e.metrics != nil {
			e.metrics.StepDuration.Observe(time.Since(stepStart).Seconds())
		}

		if !passed {
			steps[i].Status = domain.StepError
			// Remaining steps stay pending: their checks are only
			// meaningful once this one holds.
			run.publish(EngineEvent{Snapshot: snapshot()})
			span.SetAttributes(attribute.String("verification.failed_step", spec.id))
			run.finish(EngineEvent{Outcome: domain.OutcomeFailed, FailedStepID: spec.id})
			return
		}

		steps[i].Status = domain.StepSuccess
		completed++
		run.publish(EngineEvent{Snapshot: snapshot()})
	}

	run.finish(EngineEvent{Outcome: domain.OutcomeVerified})
}

func (e *Engine) evaluate(spec stepSpec, keyA, keyB string, tier domain.SecurityTier) bool {
	switch spec.kind {
	case kindPresence:
		return keyA != "" && keyB != ""
	default:
		return e.comparator.Compare(keyA, keyB, spec.id, tier)
	}
}
