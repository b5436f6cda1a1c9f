package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"surveyreview/internal/config"
	"surveyreview/internal/logging"
	"surveyreview/internal/output"
	"surveyreview/internal/workflow"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// InstantClock returns immediately.
type InstantClock struct{}

func (InstantClock) Sleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

// MinJitter always draws the shortest delay and never fires.
type MinJitter struct{}

func (MinJitter) Delay(r workflow.DelayRange) time.Duration { return r.Min }

func (MinJitter) Fire(float64) bool { return false }

// MockStepRunner records steps and fails the configured ones.
type MockStepRunner struct {
	mu sync.Mutex
	// Executed records "iteration:step" for every step run.
	Executed []string
	// FailOn maps an iteration to the step name that should fail in it.
	FailOn map[int]string
	// OnStep, when set, runs before the failure check.
	OnStep func(ctx context.Context, iteration int, step workflow.Step) error
}

func (m *MockStepRunner) RunStep(ctx context.Context, iteration int, step workflow.Step) error {
	m.mu.Lock()
	m.Executed = append(m.Executed, step.Name)
	m.mu.Unlock()

	if m.OnStep != nil {
		if err := m.OnStep(ctx, iteration, step); err != nil {
			return err
		}
	}
	if m.FailOn[iteration] == step.Name {
		return errors.New("element not found")
	}
	return nil
}

// MockSurface is a target.Surface whose liveness is set directly.
type MockSurface struct {
	opened  atomic.Bool
	Alive   atomic.Bool
	OpenErr error
	Reloads atomic.Int32
	Focuses atomic.Int32

	// DieAfter, when positive, closes the window by itself once it has
	// answered that many liveness checks.
	DieAfter int32
	checks   atomic.Int32
}

func (m *MockSurface) Open(context.Context) error {
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.opened.Store(true)
	m.Alive.Store(true)
	return nil
}

func (m *MockSurface) Opened() bool { return m.opened.Load() }

func (m *MockSurface) IsAlive() bool {
	if m.DieAfter > 0 && m.checks.Add(1) > m.DieAfter {
		m.Alive.Store(false)
	}
	return m.Alive.Load()
}

func (m *MockSurface) Focus() error {
	m.Focuses.Add(1)
	return nil
}

func (m *MockSurface) Reload() error {
	m.Reloads.Add(1)
	return nil
}

func (m *MockSurface) Close() error {
	m.Alive.Store(false)
	return nil
}

func (m *MockSurface) URL() string { return "https://example.test/review" }

// setupTestApp returns an App with instant timing and plain output captured in
// the returned buffer.
func setupTestApp(t *testing.T) (*App, *MockStepRunner, *MockSurface, *syncBuffer) {
	t.Helper()

	buf := &syncBuffer{}
	printer := output.NewPrinterWithWriter(buf)
	printer.SetColor(false)
	printer.SetTimestamps(false)

	runner := &MockStepRunner{}
	surface := &MockSurface{}

	cfg := config.DefaultConfig()
	cfg.Target.PollInterval = time.Millisecond

	app := &App{
		Config:     cfg,
		Printer:    printer,
		Logger:     logging.Discard(),
		Surface:    surface,
		Clock:      InstantClock{},
		Jitter:     MinJitter{},
		StepRunner: runner,
	}
	return app, runner, surface, buf
}

// executeCommand runs the root command with args.
func executeCommand(app *App, args ...string) (string, error) {
	rootCmd := NewRootCommand(app)
	out := &syncBuffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
