package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tubeload/tubeload/internal/config"
	"github.com/tubeload/tubeload/internal/history"
	"github.com/tubeload/tubeload/internal/progress"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past downloads",
	Run: func(cmd *cobra.Command, args []string) {
		initializeGlobalState()

		store, err := history.Open(filepath.Join(config.GetStateDir(), "tubeload.db"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening history: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		entries, err := store.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Println("History is empty.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tSTATUS\tSIZE\tFILE")
		for _, e := range entries {
			size := ""
			if e.TotalSize > 0 {
				size = progress.FormatSize(e.TotalSize)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.UpdatedAt.Format("2006-01-02 15:04"), e.Status, size, e.Filename)
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
