package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fuelsync/fuelsync/internal/logbook"
	"github.com/fuelsync/fuelsync/internal/model"
)

// NewLogCommand creates the log command group: food, water, exercise.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log food, water, or exercise",
	}
	cmd.AddCommand(newLogFoodCommand(rootOpts))
	cmd.AddCommand(newLogWaterCommand(rootOpts))
	cmd.AddCommand(newLogExerciseCommand(rootOpts))
	return cmd
}

func newLogFoodCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		in   logbook.FoodInput
		meal string
	)

	cmd := &cobra.Command{
		Use:   "food",
		Short: "Log a food item",
		Example: `  fuelsync log food --name "Oatmeal" --calories 150 --protein 5 --meal breakfast
  fuelsync log food --name "Apple" --calories 95 --meal snack --date 2026-08-25`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			app.flushIfPending(cmd)

			in.Meal = model.MealType(meal)
			out, err := app.engine.AddFood(cmd.Context(), in)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to log food", err)
			}
			if out.Deferred {
				fmt.Fprintf(cmd.OutOrStdout(), "logged %s (%d kcal) - offline, will sync\n",
					out.Entry.Name, out.Entry.Calories)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "logged %s (%d kcal)\n",
					out.Entry.Name, out.Entry.Calories)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "food name (required)")
	cmd.Flags().IntVar(&in.Calories, "calories", 0, "calories")
	cmd.Flags().Float64Var(&in.ProteinG, "protein", 0, "protein in grams")
	cmd.Flags().Float64Var(&in.CarbsG, "carbs", 0, "carbs in grams")
	cmd.Flags().Float64Var(&in.FatG, "fat", 0, "fat in grams")
	cmd.Flags().StringVar(&meal, "meal", string(model.MealSnack), "meal (breakfast|lunch|dinner|snack)")
	cmd.Flags().StringVar(&in.DateKey, "date", "", "day to log to (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newLogWaterCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		ml   int
		date string
	)

	cmd := &cobra.Command{
		Use:           "water",
		Short:         "Log water intake",
		Example:       `  fuelsync log water --ml 250`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			app.flushIfPending(cmd)

			out, err := app.engine.AddWater(cmd.Context(), ml, date)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to log water", err)
			}
			suffix := ""
			if out.Deferred {
				suffix = " - offline, will sync"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "water total: %d ml%s\n", out.WaterML, suffix)
			return nil
		},
	}

	cmd.Flags().IntVar(&ml, "ml", 0, "milliliters (required)")
	cmd.Flags().StringVar(&date, "date", "", "day to log to (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("ml")

	return cmd
}

func newLogExerciseCommand(rootOpts *RootOptions) *cobra.Command {
	var in logbook.ExerciseInput

	cmd := &cobra.Command{
		Use:           "exercise",
		Short:         "Log an exercise session",
		Example:       `  fuelsync log exercise --name "Running" --minutes 30 --burned 300`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			app.flushIfPending(cmd)

			out, err := app.engine.AddExercise(cmd.Context(), in)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to log exercise", err)
			}
			suffix := ""
			if out.Deferred {
				suffix = " - offline, will sync"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged %s (%d min, %d kcal burned)%s\n",
				out.Entry.Name, out.Entry.DurationMin, out.Entry.CaloriesBurned, suffix)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "exercise name (required)")
	cmd.Flags().IntVar(&in.DurationMin, "minutes", 0, "duration in minutes")
	cmd.Flags().IntVar(&in.CaloriesBurned, "burned", 0, "calories burned")
	cmd.Flags().StringVar(&in.DateKey, "date", "", "day to log to (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
