package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// itemActionCmd builds a subcommand that forwards one queue action to the
// running instance, resolving ID prefixes first.
func itemActionCmd(use, short, action, past string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			initializeGlobalState()
			port := requireActivePort()

			for _, arg := range args {
				id, err := resolveItemID(arg, port)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					continue
				}
				if err := postAction(action, id, port); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					continue
				}
				fmt.Printf("%s %s\n", past, shortID(id))
			}
		},
	}
}

var (
	cancelCmd  = itemActionCmd("cancel", "Cancel a download", "cancel", "Cancelled")
	restartCmd = itemActionCmd("restart", "Restart a finished download", "restart", "Restarted")
	pauseCmd   = itemActionCmd("pause", "Pause a download", "pause", "Paused")
	resumeCmd  = itemActionCmd("resume", "Resume a paused download", "resume", "Resumed")
)

func init() {
	rootCmd.AddCommand(cancelCmd, restartCmd, pauseCmd, resumeCmd)
}
