package sequencer

import (
	"slices"
	"time"

	"surveyreview/internal/workflow"
)

// Outcome is how a run ended.
type Outcome string

// Run outcomes.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
)

// Run is the live record of the active run.
//
// Invariant: 0 <= CurrentIteration <= TotalIterations.
type Run struct {
	ID               string
	TotalIterations  int
	CurrentIteration int
	Running          bool
	StartedAt        time.Time
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID         string        `yaml:"run_id"`
	Outcome       Outcome       `yaml:"outcome"`
	Total         int           `yaml:"total_iterations"`
	IterationsRun int           `yaml:"iterations_run"`
	Succeeded     int           `yaml:"succeeded"`
	Failures      []StepFailure `yaml:"failures,omitempty"`
	StartedAt     time.Time     `yaml:"started_at"`
	FinishedAt    time.Time     `yaml:"finished_at"`
}

// Elapsed returns the wall time of the run.
func (r RunResult) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Plan is the dry-run preview of a run.
type Plan struct {
	Iterations int
	Steps      []workflow.Step
	Shortest   time.Duration
	Longest    time.Duration
}

// Plan previews a run of totalIterations without executing it.
//
// Shortest assumes minimum step delays and no flaky retries; Longest assumes
// maximum delays and a flaky retry in every iteration. Neither includes failure
// backoff.
func (s *Sequencer) Plan(totalIterations int) (Plan, error) {
	if err := ValidateIterations(totalIterations); err != nil {
		return Plan{}, err
	}

	per := workflow.TotalRange(s.steps)
	if slices.ContainsFunc(s.steps, func(step workflow.Step) bool { return step.Flaky }) {
		per.Max += s.timing.FlakyPenalty
	}

	n := time.Duration(totalIterations)
	gaps := time.Duration(totalIterations-1) * s.timing.InterIteration
	return Plan{
		Iterations: totalIterations,
		Steps:      s.Steps(),
		Shortest:   n*per.Min + gaps,
		Longest:    n*per.Max + gaps,
	}, nil
}
