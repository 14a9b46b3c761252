package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fuelsync/fuelsync/internal/model"
)

// NewDayCommand creates the day command: show one day's aggregate,
// refreshed from the remote store when reachable.
func NewDayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day [date]",
		Short: "Show a day's log and totals",
		Long: `Show everything logged for a day with running totals.

The day is refetched from the remote store when the device is online;
offline, the locally cached (possibly unsynced) state is shown.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			app.flushIfPending(cmd)

			ctx := cmd.Context()
			dateKey := model.DayKey(time.Now())
			if len(args) == 1 {
				dateKey = args[0]
			}

			day := app.engine.Day(dateKey)
			if app.queue.CheckOnline(ctx) {
				fresh, err := app.engine.LoadDay(ctx, dateKey)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load day", err)
				}
				day = fresh
			}

			printDay(cmd.OutOrStdout(), day)
			return nil
		},
	}
	return cmd
}

func printDay(w io.Writer, day *model.DaySnapshot) {
	fmt.Fprintf(w, "%s\n", day.DateKey)
	for _, meal := range model.MealTypes {
		entries := day.Meals[meal]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s:\n", meal)
		for _, e := range entries {
			pending := ""
			if model.IsTempID(e.ID) {
				pending = " (pending sync)"
			}
			fmt.Fprintf(w, "    %-24s %5d kcal  P%.0f C%.0f F%.0f%s\n",
				e.Name, e.Calories, e.ProteinG, e.CarbsG, e.FatG, pending)
		}
	}
	if len(day.Exercises) > 0 {
		fmt.Fprintf(w, "  exercise:\n")
		for _, e := range day.Exercises {
			fmt.Fprintf(w, "    %-24s %4d min  %5d kcal burned\n",
				e.Name, e.DurationMin, e.CaloriesBurned)
		}
	}
	fmt.Fprintf(w, "  totals: %d kcal  P%.0fg C%.0fg F%.0fg  water %d ml  burned %d kcal\n",
		day.Totals.Calories, day.Totals.ProteinG, day.Totals.CarbsG, day.Totals.FatG,
		day.WaterML, day.CaloriesBurned)
}
