// Package sequencer runs the survey-review workflow for a requested number of
// iterations.
//
// The sequencer provides [Sequencer] which walks the fixed step catalog from the
// workflow package once per iteration, reporting every step through a
// [progress.Reporter]. Work is simulated: each step waits a delay drawn from its
// tier.
//
// Key concepts:
//   - A failed iteration is reported and backed off, then the run moves on
//   - [Sequencer.Cancel] is cooperative and observed at the next iteration boundary
//   - Time and randomness are injected via [Clock] and [Jitter] so tests run instantly
package sequencer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"surveyreview/internal/progress"
	"surveyreview/internal/workflow"
)

// Iteration bounds accepted by [Sequencer.Run].
const (
	MinIterations = 1
	MaxIterations = 100
)

// StepRunner performs the real work behind a step once its simulated delay has
// elapsed. A non-nil error fails the iteration.
//
// The production binary uses [NopStepRunner]; tests inject failures here.
type StepRunner interface {
	RunStep(ctx context.Context, iteration int, step workflow.Step) error
}

// NopStepRunner succeeds for every step.
type NopStepRunner struct{}

func (NopStepRunner) RunStep(context.Context, int, workflow.Step) error { return nil }

// Metrics receives run counters. It is optional; see [Sequencer.SetMetrics].
type Metrics interface {
	IterationStarted()
	IterationSucceeded()
	IterationFailed(step string)
	RunFinished(outcome string)
}

// Timing holds the fixed delays of a run.
type Timing struct {
	// Backoff is the pause after a failed iteration.
	Backoff time.Duration

	// InterIteration is the pause between two iterations.
	InterIteration time.Duration

	// FlakyProbability is the chance that the flaky step needs another attempt.
	FlakyProbability float64

	// FlakyPenalty is the extra pause when the flaky step needs another attempt.
	FlakyPenalty time.Duration

	// ToastDuration is how long run toasts stay visible.
	ToastDuration time.Duration
}

// DefaultTiming returns the delays the review workflow is simulated with.
func DefaultTiming() Timing {
	return Timing{
		Backoff:          1000 * time.Millisecond,
		InterIteration:   2000 * time.Millisecond,
		FlakyProbability: 0.1,
		FlakyPenalty:     500 * time.Millisecond,
		ToastDuration:    progress.DefaultToastDuration,
	}
}

// Sequencer drives one run at a time.
//
// Sequencer uses dependency injection for testability: a [progress.Reporter]
// receives events, a [Clock] suspends, a [Jitter] draws delays and a
// [StepRunner] performs the per-step work. Use [New] and then [Sequencer.Run].
type Sequencer struct {
	reporter progress.Reporter
	clock    Clock
	jitter   Jitter
	runner   StepRunner
	metrics  Metrics
	logger   *slog.Logger
	timing   Timing
	steps    []workflow.Step
	now      func() time.Time

	mu sync.Mutex

	// active guards against overlapping runs. running is cleared by Cancel
	// and when the loop ends.
	active    bool
	running   bool
	run       Run
	published bool
}

// New creates a Sequencer reporting to reporter, with a real clock, random
// jitter, default timing and a no-op step runner.
func New(reporter progress.Reporter) *Sequencer {
	if reporter == nil {
		reporter = progress.Discard
	}
	return &Sequencer{
		reporter: reporter,
		clock:    RealClock{},
		jitter:   RandomJitter{},
		runner:   NopStepRunner{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		timing:   DefaultTiming(),
		steps:    workflow.Steps(),
		now:      time.Now,
	}
}

// SetClock replaces the suspension source.
func (s *Sequencer) SetClock(c Clock) {
	s.clock = c
}

// SetJitter replaces the delay and probability source.
func (s *Sequencer) SetJitter(j Jitter) {
	s.jitter = j
}

// SetStepRunner replaces the per-step work hook.
func (s *Sequencer) SetStepRunner(r StepRunner) {
	s.runner = r
}

// SetMetrics configures an optional metrics sink. Nil disables metrics.
func (s *Sequencer) SetMetrics(m Metrics) {
	s.metrics = m
}

// SetLogger configures diagnostic logging.
func (s *Sequencer) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetTiming replaces the fixed delays.
func (s *Sequencer) SetTiming(t Timing) {
	s.timing = t
}

// Steps returns the catalog one iteration walks.
func (s *Sequencer) Steps() []workflow.Step {
	out := make([]workflow.Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// Cancel asks the active run to stop. It does not interrupt an in-flight delay;
// the run notices at its next iteration boundary. Cancel on an idle Sequencer
// does nothing.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active && s.running {
		s.running = false
		s.logger.Info("cancellation requested")
	}
}

// Running reports whether a run is in progress and has not been cancelled.
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.running
}

// Snapshot returns a copy of the current run record.
func (s *Sequencer) Snapshot() Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.run
	r.Running = s.active && s.running
	return r
}

// Run executes totalIterations iterations of the step catalog.
//
// Input outside [MinIterations, MaxIterations] fails with [ErrInvalidInput]
// before any event is emitted. A failing iteration is reported as a
// [StepFailure], backed off and skipped; it never ends the run. Cancellation
// via [Sequencer.Cancel] ends the run as [OutcomeStopped] with a nil error.
// If ctx ends, the in-flight delay is abandoned, the run ends as
// [OutcomeStopped] and ctx.Err() is returned with the partial result.
func (s *Sequencer) Run(ctx context.Context, totalIterations int) (RunResult, error) {
	if err := ValidateIterations(totalIterations); err != nil {
		return RunResult{}, err
	}

	result := RunResult{
		RunID:     uuid.NewString(),
		Total:     totalIterations,
		StartedAt: s.now(),
	}

	// Activation and the reset of the cancel flag happen together so that a
	// Cancel is either refused as idle or seen by this run.
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return RunResult{}, ErrAlreadyRunning
	}
	s.active = true
	s.running = true
	s.run = Run{ID: result.RunID, TotalIterations: totalIterations, StartedAt: result.StartedAt}
	s.published = false
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	logger := s.logger.With("run_id", result.RunID, "iterations", totalIterations)

	msg := fmt.Sprintf("Starting automation with %d iterations", totalIterations)
	s.reporter.OnStatusChange("Running automation...", progress.StatusLoading)
	s.setProgress(0, totalIterations)
	s.reporter.OnLog(msg, progress.SeverityInfo)
	s.reporter.OnToast(msg, progress.ToastSuccess, s.timing.ToastDuration)
	logger.Info("run started")

	outcome := OutcomeCompleted
	var runErr error

loop:
	for i := 0; i < totalIterations; i++ {
		if !s.Running() {
			s.reporter.OnLog("Automation stopped by user", progress.SeverityWarning)
			outcome = OutcomeStopped
			break
		}

		iteration := i + 1
		s.reporter.OnLog(fmt.Sprintf("Starting iteration %d/%d", iteration, totalIterations), progress.SeverityInfo)
		s.setProgress(i, totalIterations)
		result.IterationsRun++
		if s.metrics != nil {
			s.metrics.IterationStarted()
		}

		err := s.runIteration(ctx, iteration)
		switch {
		case ctx.Err() != nil:
			runErr = ctx.Err()
			outcome = OutcomeStopped
			s.reporter.OnLog(fmt.Sprintf("Automation aborted during iteration %d: %v", iteration, runErr), progress.SeverityWarning)
			break loop

		case err != nil:
			failure := asStepFailure(err, iteration)
			result.Failures = append(result.Failures, *failure)
			if s.metrics != nil {
				s.metrics.IterationFailed(failure.Step)
			}
			logger.Warn("iteration failed", "iteration", iteration, "step", failure.Step, "error", failure.Err)

			text := fmt.Sprintf("Error in iteration %d: %v", iteration, failure.Err)
			s.reporter.OnLog(text, progress.SeverityError)
			s.reporter.OnToast(text, progress.ToastError, s.timing.ToastDuration)

			if err := s.clock.Sleep(ctx, s.timing.Backoff); err != nil {
				runErr = err
				outcome = OutcomeStopped
				break loop
			}

		default:
			result.Succeeded++
			if s.metrics != nil {
				s.metrics.IterationSucceeded()
			}
			s.reporter.OnLog(fmt.Sprintf("Iteration %d completed successfully", iteration), progress.SeveritySuccess)
		}

		if iteration < totalIterations {
			if err := s.clock.Sleep(ctx, s.timing.InterIteration); err != nil {
				runErr = err
				outcome = OutcomeStopped
				break loop
			}
		}
	}

	s.setProgress(result.IterationsRun, totalIterations)
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	result.Outcome = outcome
	result.FinishedAt = s.now()
	s.finish(outcome)
	if s.metrics != nil {
		s.metrics.RunFinished(string(outcome))
	}
	logger.Info("run finished",
		"outcome", outcome,
		"iterations_run", result.IterationsRun,
		"failures", len(result.Failures),
		"elapsed", result.Elapsed())

	return result, runErr
}

// runIteration walks the catalog once. It returns a *StepFailure for step
// errors and the clock's error if a delay was abandoned.
func (s *Sequencer) runIteration(ctx context.Context, iteration int) error {
	for _, step := range s.steps {
		s.reporter.OnLog(fmt.Sprintf("[%d] %s", iteration, step.Label), progress.SeverityInfo)

		if err := s.clock.Sleep(ctx, s.jitter.Delay(step.Delay)); err != nil {
			return err
		}

		if step.Flaky && s.jitter.Fire(s.timing.FlakyProbability) {
			s.reporter.OnLog(fmt.Sprintf("[%d] Warning: Some approve buttons required multiple attempts", iteration), progress.SeverityWarning)
			if err := s.clock.Sleep(ctx, s.timing.FlakyPenalty); err != nil {
				return err
			}
		}

		if err := s.runner.RunStep(ctx, iteration, step); err != nil {
			return &StepFailure{Iteration: iteration, Step: step.Name, Err: err}
		}
	}
	return nil
}

// setProgress updates the run record and publishes the pair when it changed.
func (s *Sequencer) setProgress(current, total int) {
	s.mu.Lock()
	changed := !s.published || s.run.CurrentIteration != current
	s.run.CurrentIteration = current
	s.published = true
	s.mu.Unlock()

	if changed {
		s.reporter.OnProgress(current, total)
	}
}

func (s *Sequencer) finish(outcome Outcome) {
	switch outcome {
	case OutcomeCompleted:
		s.reporter.OnStatusChange("Automation completed", progress.StatusReady)
		s.reporter.OnToast("Automation completed successfully", progress.ToastSuccess, s.timing.ToastDuration)
		s.reporter.OnLog("Automation completed successfully", progress.SeveritySuccess)
	case OutcomeStopped:
		s.reporter.OnStatusChange("Automation stopped", progress.StatusReady)
		s.reporter.OnToast("Automation stopped by user", progress.ToastWarning, s.timing.ToastDuration)
	}
}
