// Package cli is the host shell around the sync core: command-line
// commands that construct the services once at startup and pass them
// explicitly to the queue and logging engine. The core itself owns no
// CLI surface.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Config  string
	Offline bool // force the manual monitor offline for this invocation
}

// NewRootCommand creates the root command for the fuelsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fuelsync",
		Short: "fuelsync - offline-first meal and exercise logging",
		Long: `fuelsync logs meals, water, and exercise with offline-first sync:
writes land locally first and replay against the backend when
connectivity returns.`,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "treat the device as offline")

	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewDayCommand(opts))
	cmd.AddCommand(NewCopyCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewStreakCommand(opts))

	return cmd
}
