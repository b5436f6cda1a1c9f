package cli

import (
	"context"
	"errors"
	"os"
	"syscall"

	"github.com/spf13/cobra"
)

func newOpenCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the review page and watch its window",
		Long: `Open the review page in the configured browser, save it as the original
window and report when the window is closed.

Send SIGHUP to reload the page. Ctrl+C stops watching and leaves the window open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stopWatching := context.WithCancel(cmd.Context())
			defer stopWatching()

			session := app.newSession(app.Printer)
			if err := session.Open(ctx); err != nil {
				return NewExitError(ExitFailure)
			}
			if err := session.SaveState(); err != nil {
				return NewExitError(ExitFailure)
			}

			sigs, stop := app.interrupts(os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case sig := <-sigs:
						if sig == syscall.SIGHUP {
							_ = session.Refresh()
							continue
						}
						stopWatching()
						return
					}
				}
			}()

			err := app.newWatcher(app.Printer).Watch(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
