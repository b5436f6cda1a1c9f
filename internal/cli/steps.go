package cli

import (
	"github.com/spf13/cobra"

	"surveyreview/internal/workflow"
)

func newStepsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the review workflow steps",
		Long: `List the steps one iteration walks through, in order, with the delay range
each step is simulated with. The step marked as needing retries occasionally
takes an extra attempt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Printer.Steps(workflow.Steps())
			return nil
		},
	}
}
