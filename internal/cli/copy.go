package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fuelsync/fuelsync/internal/logbook"
	"github.com/fuelsync/fuelsync/internal/model"
)

// NewCopyCommand creates the copy command group: meal and day.
func NewCopyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy a meal or a whole day onto another day",
	}
	cmd.AddCommand(newCopyMealCommand(rootOpts))
	cmd.AddCommand(newCopyDayCommand(rootOpts))
	return cmd
}

func newCopyMealCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to, meal string

	cmd := &cobra.Command{
		Use:           "meal",
		Short:         "Copy one meal slot from one day onto another",
		Example:       `  fuelsync copy meal --from 2026-08-25 --to 2026-08-26 --meal breakfast`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopy(rootOpts, cmd, from, func(app *app) (logbook.CopyOutcome, error) {
				return app.engine.CopyMeal(cmd.Context(), from, to, model.MealType(meal))
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source day (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&to, "to", "", "target day (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&meal, "meal", "", "meal slot (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("meal")

	return cmd
}

func newCopyDayCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:           "day",
		Short:         "Copy every food entry of one day onto another",
		Example:       `  fuelsync copy day --from 2026-08-25 --to 2026-08-26`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopy(rootOpts, cmd, from, func(app *app) (logbook.CopyOutcome, error) {
				return app.engine.CopyDay(cmd.Context(), from, to)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source day (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&to, "to", "", "target day (YYYY-MM-DD, required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runCopy(rootOpts *RootOptions, cmd *cobra.Command, from string, do func(*app) (logbook.CopyOutcome, error)) error {
	app, err := openApp(rootOpts)
	if err != nil {
		return err
	}
	defer app.Close()
	app.flushIfPending(cmd)

	// The source day must be in cache before its entries can be copied.
	if app.queue.CheckOnline(cmd.Context()) {
		if _, err := app.engine.LoadDay(cmd.Context(), from); err != nil {
			return WrapExitError(ExitCommandError, "failed to load source day", err)
		}
	}

	out, err := do(app)
	if err != nil {
		return WrapExitError(ExitFailure, "copy failed", err)
	}
	switch {
	case out.Deferred:
		fmt.Fprintf(cmd.OutOrStdout(), "copied %d entries - offline, will sync\n", len(out.Entries))
	case !out.Reconciled:
		fmt.Fprintf(cmd.OutOrStdout(), "copied %d entries - sync incomplete, refresh later\n", len(out.Entries))
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "copied %d entries\n", len(out.Entries))
	}
	return nil
}
