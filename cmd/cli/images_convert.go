package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.lorenzomilicia.dev/aurora-converter/internal/config"
	"go.lorenzomilicia.dev/aurora-converter/internal/imageconv"
	"go.lorenzomilicia.dev/aurora-converter/internal/media"
)

var (
	convertInputDir  string
	convertOutputDir string
	convertClear     bool
	convertQuality   int
	convertMaxWidth  int
	convertFormat    string
	convertJSON      bool
)

var imagesConvertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert an image tree to WebP or PNG",
	Long: `Convert every JPEG, PNG and GIF under the input directory to the target format,
downscaling images wider than --max-width. Files already in the target format and
non-image files are copied unchanged. When an image has a sibling with the same
name already in the target format, the sibling is used instead of re-encoding.

Example usage:
  aurora images convert -i photos -o dist/photos --quality 75 --max-width 2560
  aurora images convert -i scans -o png-scans --format png --clear
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.ImageConfig{
			InputDir:       convertInputDir,
			OutputDir:      convertOutputDir,
			ClearOutputDir: convertClear,
			MaxWidth:       convertMaxWidth,
			TargetFormat:   media.Format(convertFormat),
		}
		if cmd.Flags().Changed("quality") {
			cfg.Quality = config.Int(convertQuality)
		}

		store, err := openHistory(nil)
		if err != nil {
			logger.Warn().Err(err).Msg("Run history unavailable")
		}
		defer store.Close()

		display := newRunDisplay("Converting images")
		engine := imageconv.New(imageconv.WithLogger(display.logger))
		engine.SetProgressCallback(display.callback())

		ctx := cmd.Context()
		sum, runErr := engine.Run(ctx, cfg)
		display.finish()
		recordRun(ctx, store, sum, cfg.InputDir, cfg.OutputDir, runErr)
		if runErr != nil && sum.RunID == "" {
			return runErr
		}

		if err := printSummary(os.Stdout, sum, convertJSON); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}
		if sum.Errors > 0 {
			return fmt.Errorf("%d files failed to convert", sum.Errors)
		}
		return nil
	},
}

func init() {
	imagesCmd.AddCommand(imagesConvertCmd)

	imagesConvertCmd.Flags().StringVarP(&convertInputDir, "input", "i", "", "Input directory containing images (required)")
	imagesConvertCmd.Flags().StringVarP(&convertOutputDir, "output", "o", "", "Output directory for converted images (required)")
	imagesConvertCmd.Flags().BoolVar(&convertClear, "clear", false, "Clear the output directory before converting (keeps .gitkeep files)")
	imagesConvertCmd.Flags().IntVar(&convertQuality, "quality", config.DefaultQuality, "Encoder quality, 0-100")
	imagesConvertCmd.Flags().IntVar(&convertMaxWidth, "max-width", config.DefaultMaxWidth, "Maximum output width in pixels; narrower images are never upscaled")
	imagesConvertCmd.Flags().StringVar(&convertFormat, "format", string(media.FormatWebP), "Target format: webp or png")
	imagesConvertCmd.Flags().BoolVar(&convertJSON, "json", false, "Print the run summary as JSON")

	imagesConvertCmd.MarkFlagRequired("input")
	imagesConvertCmd.MarkFlagRequired("output")
}
