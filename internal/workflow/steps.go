// Package workflow defines the survey-review step catalog.
//
// One iteration of the review workflow is a fixed, ordered pass through twelve
// named steps. Each step carries the delay tier it is simulated with. The catalog
// is immutable: [Steps] hands out a copy on every call.
//
// Key types:
//   - [Step] is a single named unit of work within an iteration
//   - [DelayRange] is the inclusive window a step's simulated duration is drawn from
package workflow

import (
	"errors"
	"fmt"
	"time"
)

// FlakyIndex is the zero-based position of the one step that occasionally needs
// extra attempts.
const FlakyIndex = 6

// ErrInvalidRange is returned by [DelayRange.Validate] for empty or negative windows.
var ErrInvalidRange = errors.New("invalid delay range")

// DelayRange is an inclusive duration window.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Ms builds a DelayRange from millisecond bounds.
func Ms(min, max int) DelayRange {
	return DelayRange{
		Min: time.Duration(min) * time.Millisecond,
		Max: time.Duration(max) * time.Millisecond,
	}
}

// Contains reports whether d falls inside the range.
func (r DelayRange) Contains(d time.Duration) bool {
	return d >= r.Min && d <= r.Max
}

// Span returns Max-Min.
func (r DelayRange) Span() time.Duration {
	return r.Max - r.Min
}

// Validate checks that the range is non-negative and ordered.
func (r DelayRange) Validate() error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("%w: [%s, %s]", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

func (r DelayRange) String() string {
	return fmt.Sprintf("%d-%dms", r.Min.Milliseconds(), r.Max.Milliseconds())
}

// Step is one named unit of work within an iteration.
type Step struct {
	// Name is the stable identifier, used in logs and metrics labels.
	Name string

	// Label is the operator-facing progress message.
	Label string

	// Delay is the window the simulated duration is drawn from.
	Delay DelayRange

	// Flaky marks the step that occasionally needs a retry.
	Flaky bool
}

var (
	tierLocate  = Ms(800, 1200)
	tierTab     = Ms(1200, 2000)
	tierImages  = Ms(1500, 2500)
	tierForm    = Ms(600, 1000)
	tierTrailer = Ms(500, 800)
)

var catalog = []Step{
	{Name: "find-view-button", Label: "Finding View button...", Delay: tierLocate},
	{Name: "click-view-button", Label: "Clicking View button...", Delay: tierLocate},
	{Name: "await-review-tab", Label: "Waiting for new tab to open...", Delay: tierTab},
	{Name: "switch-to-review-tab", Label: "Switching to new tab...", Delay: tierTab},
	{Name: "load-farm-images", Label: "Loading farm images section...", Delay: tierImages},
	{Name: "process-farm-images", Label: "Processing farm images...", Delay: tierImages},
	{Name: "approve-farm-images", Label: "Clicking Approve buttons...", Delay: tierImages, Flaky: true},
	{Name: "select-approve-option", Label: "Selecting approve radio button...", Delay: tierForm},
	{Name: "save-review", Label: "Clicking Save button...", Delay: tierForm},
	{Name: "confirm-tab-close", Label: "Confirming close tab dialog...", Delay: tierTrailer},
	{Name: "return-to-original", Label: "Returning to original window...", Delay: tierTrailer},
	{Name: "click-apply", Label: "Clicking Apply button...", Delay: tierTrailer},
}

// Steps returns the catalog in execution order.
func Steps() []Step {
	out := make([]Step, len(catalog))
	copy(out, catalog)
	return out
}

// TotalRange returns the fastest and slowest possible pass over steps,
// excluding the flaky penalty.
func TotalRange(steps []Step) DelayRange {
	var total DelayRange
	for _, s := range steps {
		total.Min += s.Delay.Min
		total.Max += s.Delay.Max
	}
	return total
}
