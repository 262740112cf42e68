package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tubeload/tubeload/internal/config"
	"github.com/tubeload/tubeload/internal/history"
)

var rmCmd = &cobra.Command{
	Use:     "rm [id]...",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove downloads from the queue",
	Run: func(cmd *cobra.Command, args []string) {
		initializeGlobalState()

		clean, _ := cmd.Flags().GetBool("clean")
		if clean {
			cleanHistory()
			if len(args) == 0 {
				return
			}
		}
		if len(args) == 0 {
			_ = cmd.Help()
			return
		}

		port := requireActivePort()
		for _, arg := range args {
			id, err := resolveItemID(arg, port)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			if err := postAction("delete", id, port); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("Removed %s\n", shortID(id))
		}
	},
}

// cleanHistory drops completed downloads from the history database.
func cleanHistory() {
	store, err := history.Open(filepath.Join(config.GetStateDir(), "tubeload.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history: %v\n", err)
		return
	}
	defer store.Close()

	n, err := store.RemoveCompleted()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error cleaning history: %v\n", err)
		return
	}
	fmt.Printf("Removed %d completed downloads from history.\n", n)
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().Bool("clean", false, "Remove completed downloads from history")
}
