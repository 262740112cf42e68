package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var reorderCmd = &cobra.Command{
	Use:   "reorder <id> <position>",
	Short: "Move a queued download to a new position",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		initializeGlobalState()
		port := requireActivePort()

		id, err := resolveItemID(args[0], port)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		pos, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid position %q\n", args[1])
			os.Exit(1)
		}

		if err := postReorder(id, pos, port); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Moved %s to position %d\n", shortID(id), pos)
	},
}

func init() {
	rootCmd.AddCommand(reorderCmd)
}
