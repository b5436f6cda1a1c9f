package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"surveyreview/internal/metrics"
	"surveyreview/internal/progress"
	"surveyreview/internal/report"
	"surveyreview/internal/sequencer"
	"surveyreview/internal/target"
)

const invalidIterationsMessage = "Please enter a valid number of iterations (1-100)"

type runOptions struct {
	iterations int
	open       bool
	reportPath string
	dryRun     bool
	seed       uint64
}

func newRunCommand(app *App) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [iterations]",
		Short: "Run the review workflow a number of times",
		Long: `Run the 12-step review workflow for the given number of iterations (1-100).

A failing iteration is reported and skipped; the run carries on with the next
one. Press Ctrl+C once to stop after the current iteration, twice to abort at
once.

Examples:
  surveyreview run 5
  surveyreview run --iterations 3 --open --report run.yaml
  surveyreview run 10 --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := opts.iterations
			if len(args) == 1 {
				parsed, err := sequencer.ParseIterations(args[0])
				if err != nil {
					return rejectIterations(app, err)
				}
				n = parsed
			}
			if err := sequencer.ValidateIterations(n); err != nil {
				return rejectIterations(app, err)
			}

			if opts.dryRun {
				plan, err := app.newSequencer(progress.Discard).Plan(n)
				if err != nil {
					return rejectIterations(app, err)
				}
				app.Printer.Plan(plan)
				return nil
			}

			return runIterations(cmd.Context(), app, n, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.iterations, "iterations", "n", 1, "number of iterations to run (1-100)")
	cmd.Flags().BoolVar(&opts.open, "open", false, "open the review page and save it as the original window first")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "write a YAML run report to this path")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the plan and estimated duration without running")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "seed step delays for a reproducible run (0 = random)")

	return cmd
}

func rejectIterations(app *App, err error) error {
	app.logger().Debug("iteration count rejected", "error", err)
	app.Printer.OnToast(invalidIterationsMessage, progress.ToastError, app.Config.Toast.Duration)
	return NewExitError(ExitFailure)
}

func runIterations(ctx context.Context, app *App, n int, opts *runOptions) error {
	ctx, abort := context.WithCancel(ctx)
	defer abort()

	journal := progress.NewJournal()
	reporter := progress.Fanout{app.Printer, journal}
	if app.Metrics != nil {
		reporter = append(reporter, app.Metrics)
	}

	if addr := app.Config.Metrics.ListenAddr; addr != "" && app.Metrics != nil {
		srv, err := metrics.Listen(addr, app.Metrics)
		if err != nil {
			return err
		}
		app.logger().Info("serving metrics", "addr", srv.Addr())
		go func() {
			if err := srv.Serve(ctx, app.logger()); err != nil {
				app.logger().Warn("metrics server stopped", "error", err)
			}
		}()
	}

	var session *target.Session
	if opts.open {
		session = app.newSession(reporter)
		if err := session.Open(ctx); err != nil {
			return NewExitError(ExitFailure)
		}
		if err := session.SaveState(); err != nil {
			return NewExitError(ExitFailure)
		}
	}

	seq := app.newSequencer(reporter)
	if opts.seed != 0 {
		seq.SetJitter(sequencer.NewSeededJitter(opts.seed))
	}

	sigs, stop := app.interrupts(os.Interrupt, syscall.SIGTERM)
	defer stop()
	go forwardInterrupts(ctx, sigs, seq, abort, app)

	// The opened window is watched for the length of the run; closing it is
	// reported but does not stop the run.
	var watching sync.WaitGroup
	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	if session != nil {
		watcher := app.newWatcher(reporter)
		watching.Go(func() {
			if err := watcher.Watch(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				app.logger().Debug("window watch ended", "error", err)
			}
		})
	}

	result, runErr := seq.Run(ctx, n)
	stopWatching()
	watching.Wait()
	if errors.Is(runErr, sequencer.ErrAlreadyRunning) {
		return runErr
	}

	if session != nil && result.Outcome == sequencer.OutcomeCompleted {
		if err := session.ReturnToOriginal(ctx); err != nil {
			app.logger().Warn("return to original failed", "error", err)
		}
	}

	app.Printer.Summary(result)

	path := opts.reportPath
	if path == "" {
		path = app.Config.Report.Path
	}
	if path != "" {
		if err := report.Write(path, report.New(result, runErr, journal.Entries())); err != nil {
			return err
		}
		app.Printer.Text("Report written to %s", path)
	}

	if result.Outcome == sequencer.OutcomeStopped {
		return NewExitError(ExitStopped)
	}
	return nil
}

// interrupts returns the app's signal channel, or subscribes to sigs when the
// app has none. The returned func unsubscribes.
func (app *App) interrupts(sigs ...os.Signal) (<-chan os.Signal, func()) {
	if app.Signals != nil {
		return app.Signals, func() {}
	}
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, sigs...)
	return ch, func() { signal.Stop(ch) }
}

type canceller interface {
	Cancel()
}

// forwardInterrupts turns the first interrupt into a cooperative stop and the
// second into an abort of ctx.
func forwardInterrupts(ctx context.Context, sigs <-chan os.Signal, run canceller, abort context.CancelFunc, app *App) {
	interrupts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			interrupts++
			app.logger().Info("interrupt received", "signal", sig, "count", interrupts)
			if interrupts == 1 {
				run.Cancel()
				app.Printer.Text("Stopping after the current iteration. Interrupt again to abort.")
				continue
			}
			abort()
			return
		}
	}
}
