package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewQueueCommand creates the queue command group: status and flush.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or flush the offline sync queue",
	}
	cmd.AddCommand(newQueueStatusCommand(rootOpts))
	cmd.AddCommand(newQueueFlushCommand(rootOpts))
	return cmd
}

func newQueueStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show pending operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			ops, err := app.queue.Pending(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read queue", err)
			}
			if len(ops) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "queue empty")
				return nil
			}
			for _, op := range ops {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-6s %-14s retries=%d queued=%s\n",
					shortID(op.ID), op.Kind, op.Table, op.RetryCount,
					op.QueuedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending\n", len(ops))
			return nil
		},
	}
}

// shortID truncates an operation id for display. Queue entries written
// by other clients may carry ids shorter than a uuid.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newQueueFlushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "flush",
		Short:         "Replay pending operations now",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			res := app.queue.Flush(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "flushed %d, failed %d, dropped %d\n",
				res.Flushed, res.Failed, res.Dropped)
			return nil
		},
	}
}
