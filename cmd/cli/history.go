package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"go.lorenzomilicia.dev/aurora-converter/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent conversion runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if noHistory {
			return fmt.Errorf("history is disabled by --no-history")
		}
		store, err := openHistory(nil)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}
		fmt.Println(renderTable(
			[]string{"Started", "Kind", "Status", "Converted", "Copied", "Skipped", "Errors", "Size", "Elapsed", "Input"},
			historyRows(runs),
			4, 5, 6, 7, 9,
		))
		return nil
	},
}

func historyRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		s := r.Summary
		rows = append(rows, []string{
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			string(s.Kind),
			string(r.Status),
			strconv.Itoa(s.Converted),
			strconv.Itoa(s.Copied),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Errors),
			fmt.Sprintf("%s → %s", humanize.IBytes(uint64(s.OriginalBytes)), humanize.IBytes(uint64(s.FinalBytes))),
			s.Elapsed.Round(time.Second).String(),
			truncate(r.InputDir, 40),
		})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
}
