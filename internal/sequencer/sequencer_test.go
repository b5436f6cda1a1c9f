package sequencer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyreview/internal/progress"
	"surveyreview/internal/workflow"
)

// fakeClock returns immediately and records every requested delay.
type fakeClock struct {
	sleeps []time.Duration
	// onSleep, when set, runs before each sleep returns; its error is returned.
	onSleep func(ctx context.Context, n int, d time.Duration) error
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if c.onSleep != nil {
		if err := c.onSleep(ctx, len(c.sleeps), d); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// fixedJitter always picks the lower bound.
type fixedJitter struct {
	fire bool
}

func (j fixedJitter) Delay(r workflow.DelayRange) time.Duration { return r.Min }

func (j fixedJitter) Fire(float64) bool { return j.fire }

// recordingRunner records each executed step and fails configured iterations.
type recordingRunner struct {
	calls  []string
	failOn map[int]string
	onStep func(iteration int, step workflow.Step)
}

func (r *recordingRunner) RunStep(ctx context.Context, iteration int, step workflow.Step) error {
	r.calls = append(r.calls, fmt.Sprintf("%d:%s", iteration, step.Name))
	if r.onStep != nil {
		r.onStep(iteration, step)
	}
	if name, ok := r.failOn[iteration]; ok && (name == "" || name == step.Name) {
		return errors.New("approve button not found")
	}
	return nil
}

func (r *recordingRunner) iterations() []int {
	seen := map[int]bool{}
	var out []int
	for _, c := range r.calls {
		var it int
		fmt.Sscanf(c, "%d:", &it)
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

type fakeMetrics struct {
	started, succeeded int
	failedSteps        []string
	outcomes           []string
}

func (m *fakeMetrics) IterationStarted() { m.started++ }

func (m *fakeMetrics) IterationSucceeded() { m.succeeded++ }

func (m *fakeMetrics) IterationFailed(step string) { m.failedSteps = append(m.failedSteps, step) }

func (m *fakeMetrics) RunFinished(outcome string) { m.outcomes = append(m.outcomes, outcome) }

func setupTestSequencer() (*Sequencer, *progress.Journal, *fakeClock, *recordingRunner) {
	journal := progress.NewJournal()
	seq := New(journal)
	clock := &fakeClock{}
	runner := &recordingRunner{}
	seq.SetClock(clock)
	seq.SetJitter(fixedJitter{})
	seq.SetStepRunner(runner)
	return seq, journal, clock, runner
}

func countStatus(j *progress.Journal, text string) int {
	n := 0
	for _, s := range j.Statuses() {
		if s.Text == text {
			n++
		}
	}
	return n
}

func countLogs(j *progress.Journal, prefix string) int {
	n := 0
	for _, e := range j.Entries() {
		if strings.HasPrefix(e.Message, prefix) {
			n++
		}
	}
	return n
}

func TestRun_InvalidInput(t *testing.T) {
	for _, n := range []int{-1, 0, 101, 1000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			seq, journal, clock, runner := setupTestSequencer()

			result, err := seq.Run(context.Background(), n)

			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, RunResult{}, result)
			assert.Zero(t, journal.Len(), "no events may be emitted")
			assert.Empty(t, clock.sleeps)
			assert.Empty(t, runner.calls)
			assert.False(t, seq.Snapshot().Running)
		})
	}
}

func TestRun_ExecutesRequestedIterations(t *testing.T) {
	for _, n := range []int{1, 2, 7, 100} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			seq, journal, _, runner := setupTestSequencer()

			result, err := seq.Run(context.Background(), n)

			require.NoError(t, err)
			assert.Equal(t, OutcomeCompleted, result.Outcome)
			assert.Equal(t, n, result.IterationsRun)
			assert.Equal(t, n, result.Succeeded)
			assert.Len(t, runner.calls, n*12)

			updates := journal.ProgressUpdates()
			require.NotEmpty(t, updates)
			for i := 1; i < len(updates); i++ {
				assert.Greater(t, updates[i][0], updates[i-1][0], "progress must strictly increase")
			}
			assert.Equal(t, [2]int{0, n}, updates[0])
			assert.Equal(t, [2]int{n, n}, updates[len(updates)-1])
		})
	}
}

func TestRun_ThreeIterationsComplete(t *testing.T) {
	seq, journal, _, _ := setupTestSequencer()

	result, err := seq.Run(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 3, result.IterationsRun)
	assert.Empty(t, result.Failures)
	assert.NotEmpty(t, result.RunID)

	assert.Equal(t, [][2]int{{0, 3}, {1, 3}, {2, 3}, {3, 3}}, journal.ProgressUpdates())
	assert.Equal(t, 1, countStatus(journal, "Automation completed"))
	assert.Zero(t, countStatus(journal, "Automation stopped"))
	assert.Equal(t, 3, countLogs(journal, "Starting iteration"))
	assert.Zero(t, len(journal.EntriesWithSeverity(progress.SeverityError)))

	last, ok := journal.LastStatus()
	require.True(t, ok)
	assert.Equal(t, progress.StatusReady, last.Kind)

	snap := seq.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, 3, snap.CurrentIteration)
	assert.Equal(t, 3, snap.TotalIterations)
}

func TestRun_EventOrder(t *testing.T) {
	seq, journal, _, _ := setupTestSequencer()

	_, err := seq.Run(context.Background(), 1)
	require.NoError(t, err)

	var messages []string
	for _, e := range journal.Entries() {
		messages = append(messages, e.Message)
	}

	want := []string{
		"Starting automation with 1 iterations",
		"Starting iteration 1/1",
	}
	for _, s := range workflow.Steps() {
		want = append(want, "[1] "+s.Label)
	}
	want = append(want, "Iteration 1 completed successfully", "Automation completed successfully")
	assert.Equal(t, want, messages)

	statuses := journal.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, progress.Status{Text: "Running automation...", Kind: progress.StatusLoading}, statuses[0])
	assert.Equal(t, progress.Status{Text: "Automation completed", Kind: progress.StatusReady}, statuses[1])

	toasts := journal.Toasts()
	require.Len(t, toasts, 2)
	assert.Equal(t, progress.ToastSuccess, toasts[0].Kind)
	assert.Equal(t, "Automation completed successfully", toasts[1].Message)
}

func TestRun_SleepSchedule(t *testing.T) {
	seq, _, clock, _ := setupTestSequencer()

	_, err := seq.Run(context.Background(), 2)
	require.NoError(t, err)

	var want []time.Duration
	for _, s := range workflow.Steps() {
		want = append(want, s.Delay.Min)
	}
	want = append(want, 2000*time.Millisecond)
	for _, s := range workflow.Steps() {
		want = append(want, s.Delay.Min)
	}

	assert.Equal(t, want, clock.sleeps, "no inter-iteration delay after the last iteration")
}

// cancellingReporter cancels the sequencer when a log line or status matches
// trigger.
type cancellingReporter struct {
	*progress.Journal
	seq     *Sequencer
	trigger string
}

func (r *cancellingReporter) OnLog(message string, severity progress.Severity) {
	r.Journal.OnLog(message, severity)
	if message == r.trigger {
		r.seq.Cancel()
	}
}

func (r *cancellingReporter) OnStatusChange(text string, kind progress.StatusKind) {
	r.Journal.OnStatusChange(text, kind)
	if text == r.trigger {
		r.seq.Cancel()
	}
}

func TestRun_CancelBeforeFirstIteration(t *testing.T) {
	tests := []struct {
		name    string
		trigger string
	}{
		{name: "on running status", trigger: "Running automation..."},
		{name: "on start log", trigger: "Starting automation with 3 iterations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal := progress.NewJournal()
			reporter := &cancellingReporter{Journal: journal, trigger: tt.trigger}
			seq := New(reporter)
			reporter.seq = seq
			runner := &recordingRunner{}
			seq.SetClock(&fakeClock{})
			seq.SetJitter(fixedJitter{})
			seq.SetStepRunner(runner)

			result, err := seq.Run(context.Background(), 3)

			require.NoError(t, err)
			assert.Equal(t, OutcomeStopped, result.Outcome)
			assert.Zero(t, result.IterationsRun)
			assert.Empty(t, runner.calls)
			assert.Equal(t, 1, countLogs(journal, "Automation stopped by user"))

			reporter.trigger = ""
			again, err := seq.Run(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, OutcomeCompleted, again.Outcome, "the cancel does not carry into the next run")
		})
	}
}

func TestRun_CancelAfterSecondIteration(t *testing.T) {
	journal := progress.NewJournal()
	reporter := &cancellingReporter{Journal: journal, trigger: "Iteration 2 completed successfully"}
	seq := New(reporter)
	reporter.seq = seq
	runner := &recordingRunner{}
	seq.SetClock(&fakeClock{})
	seq.SetJitter(fixedJitter{})
	seq.SetStepRunner(runner)

	result, err := seq.Run(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, OutcomeStopped, result.Outcome)
	assert.Equal(t, 2, result.IterationsRun)
	assert.Equal(t, []int{1, 2}, runner.iterations(), "iterations 3-5 must never start")
	assert.Equal(t, 2, seq.Snapshot().CurrentIteration)
	assert.False(t, seq.Snapshot().Running)

	assert.Equal(t, 1, countStatus(journal, "Automation stopped"))
	assert.Zero(t, countStatus(journal, "Automation completed"))
	assert.Equal(t, 1, countLogs(journal, "Automation stopped by user"))
	assert.Zero(t, countLogs(journal, "Starting iteration 3"))

	current, total := journal.Progress()
	assert.Equal(t, 2, current)
	assert.Equal(t, 5, total)
}

func TestRun_CancelIsNotPreemptive(t *testing.T) {
	seq, journal, _, runner := setupTestSequencer()
	runner.onStep = func(iteration int, step workflow.Step) {
		if iteration == 1 && step.Name == "await-review-tab" {
			seq.Cancel()
		}
	}

	result, err := seq.Run(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, OutcomeStopped, result.Outcome)
	assert.Len(t, runner.calls, 12, "the in-flight iteration finishes all its steps")
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, countLogs(journal, "Iteration 1 completed successfully"))
	assert.Zero(t, countLogs(journal, "Starting iteration 2"))
}

func TestRun_FailureIsIsolated(t *testing.T) {
	seq, journal, clock, runner := setupTestSequencer()
	runner.failOn = map[int]string{1: ""}

	result, err := seq.Run(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 2, result.IterationsRun)
	assert.Equal(t, 1, result.Succeeded)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, 1, result.Failures[0].Iteration)
	assert.Equal(t, "find-view-button", result.Failures[0].Step)

	errs := journal.EntriesWithSeverity(progress.SeverityError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Error in iteration 1: approve button not found", errs[0].Message)

	assert.Equal(t, 1, countLogs(journal, "Iteration 2 completed successfully"))
	assert.Zero(t, countLogs(journal, "Iteration 1 completed successfully"))
	assert.Equal(t, 1, countStatus(journal, "Automation completed"))
	assert.Contains(t, clock.sleeps, 1000*time.Millisecond, "failure triggers backoff")

	var errorToasts int
	for _, toast := range journal.Toasts() {
		if toast.Kind == progress.ToastError {
			errorToasts++
		}
	}
	assert.Equal(t, 1, errorToasts)
}

func TestRun_FailureStopsRemainingStepsOfIteration(t *testing.T) {
	seq, _, _, runner := setupTestSequencer()
	runner.failOn = map[int]string{2: "approve-farm-images"}

	result, err := seq.Run(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "approve-farm-images", result.Failures[0].Step)
	assert.Len(t, runner.calls, 12+7+12)
	assert.Contains(t, result.Failures[0].Error(), "iteration 2, step approve-farm-images")
}

func TestRun_EveryIterationFails(t *testing.T) {
	seq, journal, _, runner := setupTestSequencer()
	runner.failOn = map[int]string{1: "", 2: "", 3: ""}

	result, err := seq.Run(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Len(t, result.Failures, 3)
	assert.Zero(t, result.Succeeded)
	assert.Len(t, journal.EntriesWithSeverity(progress.SeverityError), 3)
}

func TestRun_FlakyStepWarns(t *testing.T) {
	seq, journal, clock, runner := setupTestSequencer()
	seq.SetJitter(fixedJitter{fire: true})

	result, err := seq.Run(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Empty(t, result.Failures)
	assert.Len(t, runner.calls, 24)

	warnings := journal.EntriesWithSeverity(progress.SeverityWarning)
	require.Len(t, warnings, 2)
	assert.Equal(t, "[1] Warning: Some approve buttons required multiple attempts", warnings[0].Message)

	// Penalty follows the flaky step's own delay.
	assert.Equal(t, 500*time.Millisecond, clock.sleeps[workflow.FlakyIndex+1])
}

func TestRun_ContextCancelled(t *testing.T) {
	seq, journal, clock, _ := setupTestSequencer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.onSleep = func(_ context.Context, n int, _ time.Duration) error {
		if n == 15 {
			cancel()
		}
		return nil
	}

	result, err := seq.Run(ctx, 4)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeStopped, result.Outcome)
	assert.Equal(t, 2, result.IterationsRun)
	assert.Equal(t, 1, result.Succeeded)
	assert.Empty(t, result.Failures, "abort is not a step failure")
	assert.Equal(t, 1, countStatus(journal, "Automation stopped"))
	assert.False(t, seq.Running())
}

func TestRun_AlreadyRunning(t *testing.T) {
	seq, _, clock, _ := setupTestSequencer()
	var nestedErr error
	clock.onSleep = func(ctx context.Context, n int, _ time.Duration) error {
		if n == 1 {
			_, nestedErr = seq.Run(ctx, 1)
		}
		return nil
	}

	_, err := seq.Run(context.Background(), 1)

	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrAlreadyRunning)

	// The sequencer is reusable once the run has finished.
	clock.onSleep = nil
	_, err = seq.Run(context.Background(), 1)
	assert.NoError(t, err)
}

func TestRun_SnapshotDuringRun(t *testing.T) {
	seq, _, clock, _ := setupTestSequencer()
	var snaps []Run
	clock.onSleep = func(_ context.Context, n int, _ time.Duration) error {
		if n == 1 || n == 14 {
			snaps = append(snaps, seq.Snapshot())
		}
		return nil
	}

	_, err := seq.Run(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].Running)
	assert.Equal(t, 0, snaps[0].CurrentIteration)
	assert.Equal(t, 1, snaps[1].CurrentIteration)
	for _, s := range snaps {
		assert.GreaterOrEqual(t, s.CurrentIteration, 0)
		assert.LessOrEqual(t, s.CurrentIteration, s.TotalIterations)
	}
}

func TestRun_Metrics(t *testing.T) {
	seq, _, _, runner := setupTestSequencer()
	m := &fakeMetrics{}
	seq.SetMetrics(m)
	runner.failOn = map[int]string{2: "save-review"}

	_, err := seq.Run(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, m.started)
	assert.Equal(t, 2, m.succeeded)
	assert.Equal(t, []string{"save-review"}, m.failedSteps)
	assert.Equal(t, []string{"completed"}, m.outcomes)
}

func TestCancel_IdleIsNoop(t *testing.T) {
	seq, journal, _, _ := setupTestSequencer()

	seq.Cancel()

	assert.False(t, seq.Running())
	assert.Zero(t, journal.Len())

	// A cancel before Run does not leak into the next run.
	result, err := seq.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
}

func TestPlan(t *testing.T) {
	seq, _, _, _ := setupTestSequencer()

	plan, err := seq.Plan(2)
	require.NoError(t, err)

	assert.Equal(t, 2, plan.Iterations)
	assert.Len(t, plan.Steps, 12)
	assert.Equal(t, 2*11200*time.Millisecond+2000*time.Millisecond, plan.Shortest)
	assert.Equal(t, 2*18800*time.Millisecond+2000*time.Millisecond, plan.Longest)

	_, err = seq.Plan(0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseIterations(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "1", want: 1},
		{input: " 42 ", want: 42},
		{input: "100", want: 100},
		{input: "0", wantErr: true},
		{input: "101", wantErr: true},
		{input: "2.5", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIterations(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStepFailure_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &StepFailure{Iteration: 3, Step: "save-review", Err: cause})

	assert.ErrorIs(t, err, cause)
	sf := asStepFailure(err, 9)
	assert.Equal(t, 3, sf.Iteration)

	plain := asStepFailure(cause, 4)
	assert.Equal(t, 4, plain.Iteration)
	assert.Equal(t, "iteration 4: boom", plain.Error())
}
