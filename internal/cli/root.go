// Package cli implements the surveyreview command line.
//
// Commands are built by [NewRootCommand] around an [App], which carries every
// collaborator a command needs. Tests construct an App with fakes; [NewApp]
// wires the real ones from configuration.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"surveyreview/internal/config"
	"surveyreview/internal/logging"
	"surveyreview/internal/metrics"
	"surveyreview/internal/output"
	"surveyreview/internal/progress"
	"surveyreview/internal/sequencer"
	"surveyreview/internal/target"
)

// Version is set at build time with -ldflags "-X surveyreview/internal/cli.Version=...".
var Version = "dev"

// App holds the wired collaborators shared by all commands.
type App struct {
	Config     *config.Config
	Printer    *output.Printer
	Logger     *logging.Logger
	Surface    target.Surface
	Clock      sequencer.Clock
	Jitter     sequencer.Jitter
	StepRunner sequencer.StepRunner

	// Metrics is optional. When nil no metrics are recorded or served.
	Metrics *metrics.Recorder

	// Signals delivers interrupts. When nil, commands subscribe to the
	// process signals themselves.
	Signals <-chan os.Signal
}

// NewApp wires the real collaborators described by cfg.
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, err
	}

	printer := output.NewPrinter()
	printer.SetColor(cfg.Output.Color)
	printer.SetTimestamps(cfg.Output.Timestamps)
	printer.SetProgressWidth(cfg.Output.ProgressWidth)

	recorder, err := metrics.NewRecorder(cfg.Metrics.Namespace)
	if err != nil {
		logger.Close()
		return nil, err
	}

	return &App{
		Config:     cfg,
		Printer:    printer,
		Logger:     logger,
		Surface:    target.NewBrowserSurface(cfg.Target.Browser, cfg.Target.BrowserArgs, cfg.Target.URL),
		Clock:      sequencer.RealClock{},
		Jitter:     sequencer.RandomJitter{},
		StepRunner: sequencer.NopStepRunner{},
		Metrics:    recorder,
	}, nil
}

// newSequencer builds a Sequencer from the app's collaborators and timing.
func (app *App) newSequencer(reporter progress.Reporter) *sequencer.Sequencer {
	seq := sequencer.New(reporter)
	if app.Clock != nil {
		seq.SetClock(app.Clock)
	}
	if app.Jitter != nil {
		seq.SetJitter(app.Jitter)
	}
	if app.StepRunner != nil {
		seq.SetStepRunner(app.StepRunner)
	}
	if app.Metrics != nil {
		seq.SetMetrics(app.Metrics)
	}
	seq.SetLogger(app.logger())
	seq.SetTiming(sequencer.Timing{
		Backoff:          app.Config.Timing.Backoff,
		InterIteration:   app.Config.Timing.InterIteration,
		FlakyProbability: app.Config.Timing.FlakyProbability,
		FlakyPenalty:     app.Config.Timing.FlakyPenalty,
		ToastDuration:    app.Config.Toast.Duration,
	})
	return seq
}

// newSession builds a target session on the app's surface.
func (app *App) newSession(reporter progress.Reporter) *target.Session {
	session := target.NewSession(app.Surface, reporter)
	if app.Clock != nil {
		session.SetClock(app.Clock)
	}
	session.SetLogger(app.logger())
	session.SetTiming(target.SessionTiming{
		FocusWait:     app.Config.Timing.ReturnFocusWait,
		ApplyClick:    app.Config.Timing.ApplyClick,
		ToastDuration: app.Config.Toast.Duration,
		BlockedToast:  app.Config.Toast.BlockedDuration,
	})
	return session
}

// newWatcher builds a liveness watcher for the app's surface.
func (app *App) newWatcher(reporter progress.Reporter) *target.Watcher {
	watcher := target.NewWatcher(app.Surface, reporter, app.Config.Target.PollInterval)
	watcher.SetToastDuration(app.Config.Toast.Duration)
	watcher.SetLogger(app.logger())
	return watcher
}

func (app *App) logger() *slog.Logger {
	if app.Logger == nil {
		app.Logger = logging.Discard()
	}
	return app.Logger.Logger
}

// NewRootCommand creates the root command with all subcommands attached.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "surveyreview",
		Short: "Simulated review workflow for the crop survey page",
		Long: `surveyreview walks the crop-survey review workflow a chosen number of
times, reporting every step as it goes. Step work is simulated with randomized
delays; the review page itself is only opened in a browser window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	rootCmd.AddCommand(
		newRunCommand(app),
		newStepsCommand(app),
		newOpenCommand(app),
		newVersionCommand(),
	)

	return rootCmd
}

// ExecuteResult is the outcome of running the command line.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig wires an App from cfg and executes the root command with the
// process arguments.
func RunWithConfig(cfg *config.Config) ExecuteResult {
	app, err := NewApp(cfg)
	if err != nil {
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	defer app.Logger.Close()

	return execute(context.Background(), NewRootCommand(app))
}

func execute(ctx context.Context, rootCmd *cobra.Command) ExecuteResult {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	return ExecuteResult{ExitCode: ExitOK}
}

// Execute loads configuration, runs the command line and exits the process.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}

	result := RunWithConfig(cfg)
	if result.Err != nil {
		if _, ok := IsExitError(result.Err); !ok {
			fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		}
	}
	os.Exit(result.ExitCode)
}
