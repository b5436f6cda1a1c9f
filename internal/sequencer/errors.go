package sequencer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for run control.
var (
	// ErrInvalidInput indicates an iteration count outside [MinIterations, MaxIterations]
	// or one that is not an integer. No run is started.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyRunning indicates Run was called while another run was active.
	ErrAlreadyRunning = errors.New("a run is already in progress")
)

// StepFailure is the error of one failed iteration.
//
// The sequencer reports it and continues with the next iteration, so callers
// only see StepFailure values in [RunResult.Failures].
type StepFailure struct {
	// Iteration is the 1-based iteration that failed.
	Iteration int `yaml:"iteration"`

	// Step is the name of the step that failed. Empty when the failure did not
	// come from a specific step.
	Step string `yaml:"step,omitempty"`

	// Err is the underlying cause.
	Err error `yaml:"-"`
}

func (f *StepFailure) Error() string {
	if f.Step == "" {
		return fmt.Sprintf("iteration %d: %v", f.Iteration, f.Err)
	}
	return fmt.Sprintf("iteration %d, step %s: %v", f.Iteration, f.Step, f.Err)
}

func (f *StepFailure) Unwrap() error {
	return f.Err
}

func asStepFailure(err error, iteration int) *StepFailure {
	var sf *StepFailure
	if errors.As(err, &sf) {
		return sf
	}
	return &StepFailure{Iteration: iteration, Err: err}
}

// ValidateIterations checks n against the accepted bounds.
func ValidateIterations(n int) error {
	if n < MinIterations || n > MaxIterations {
		return fmt.Errorf("%w: iterations must be between %d and %d, got %d", ErrInvalidInput, MinIterations, MaxIterations, n)
	}
	return nil
}

// ParseIterations parses an operator-supplied iteration count.
func ParseIterations(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrInvalidInput, s)
	}
	if err := ValidateIterations(n); err != nil {
		return 0, err
	}
	return n, nil
}
