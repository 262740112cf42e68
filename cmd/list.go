package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tubeload/tubeload/internal/progress"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the download queue of the running instance",
	Run: func(cmd *cobra.Command, args []string) {
		initializeGlobalState()
		port := requireActivePort()

		items, err := getRemoteItems(port)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(items) == 0 {
			fmt.Println("Queue is empty.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSIZE\tFILE")
		for _, it := range items {
			size := ""
			if it.BytesTotal > 0 {
				size = progress.FormatSize(it.BytesTotal)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(it.ID), it.Status, size, it.Filename)
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
