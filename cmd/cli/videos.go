package cli

import (
	"github.com/spf13/cobra"
)

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Video compression commands",
	Long:  `Parent command for all video related operations.`,
}

func init() {
	rootCmd.AddCommand(videosCmd)
}
