package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.lorenzomilicia.dev/aurora-converter/internal/config"
	"go.lorenzomilicia.dev/aurora-converter/internal/media"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [FILE]",
	Short: "Write a project file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "aurora.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		file := &config.File{
			Images: &config.ImageConfig{
				InputDir:     "photos",
				OutputDir:    "dist/photos",
				Quality:      config.Int(config.DefaultQuality),
				MaxWidth:     config.DefaultMaxWidth,
				TargetFormat: media.FormatWebP,
			},
			Videos: &config.VideoConfig{
				InputDir:  "clips",
				OutputDir: "dist/clips",
				CRF:       config.Int(config.DefaultCRF),
				Preset:    config.DefaultPreset,
			},
		}
		if err := config.Save(path, file); err != nil {
			return err
		}
		logger.Info().Str("file", path).Msg("Wrote project file")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}
