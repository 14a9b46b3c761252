package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStreakCommand creates the streak command: show derived
// gamification state.
func NewStreakCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "streak",
		Short:         "Show streak, XP, and level",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			app.flushIfPending(cmd)

			s, err := app.tracker.Summarize(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to compute streak", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "streak: %d days (longest %d)\n", s.Current, s.Longest)
			fmt.Fprintf(cmd.OutOrStdout(), "xp: %d (level %d)\n", s.XP, s.Level)
			return nil
		},
	}
}
