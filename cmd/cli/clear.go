package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.lorenzomilicia.dev/aurora-converter/internal/outdir"
)

var clearCmd = &cobra.Command{
	Use:   "clear DIR",
	Short: "Empty an output directory, keeping .gitkeep files",
	Long: `Delete everything under DIR except ` + outdir.Sentinel + ` marker files. Directories left empty are
removed. DIR itself always exists afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		lock, err := outdir.Lock(dir)
		if err != nil {
			return err
		}
		defer lock.Unlock()

		report, err := outdir.NewManager(logger).Clear(dir)
		for _, f := range report.Failures {
			logger.Warn().Err(f.Err).Str("path", f.Path).Msg("Could not delete")
		}
		if err != nil {
			return err
		}
		logger.Info().
			Str("dir", dir).
			Int("removed", report.Removed).
			Int("kept", report.Kept).
			Msg("Cleared output directory")
		if len(report.Failures) > 0 {
			return fmt.Errorf("%d entries could not be deleted", len(report.Failures))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
