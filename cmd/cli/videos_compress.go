package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"go.lorenzomilicia.dev/aurora-converter/internal/config"
	"go.lorenzomilicia.dev/aurora-converter/internal/videoconv"
)

var (
	compressInputDir  string
	compressOutputDir string
	compressClear     bool
	compressCRF       int
	compressPreset    string
	compressFFmpeg    string
	compressJSON      bool
)

var videosCompressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Compress a video tree with ffmpeg",
	Long: `Re-encode every video under the input directory to H.264/AAC with the given CRF
and preset, keeping the original file name. Other files are copied unchanged. A
video the encoder rejects is reported and left out of the output.

The encoder is looked up on PATH unless --ffmpeg or ` + config.EnvFFmpegPath + ` is set.

Example usage:
  aurora videos compress -i clips -o dist/clips --crf 28 --preset slow
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.VideoConfig{
			InputDir:       compressInputDir,
			OutputDir:      compressOutputDir,
			ClearOutputDir: compressClear,
			Preset:         compressPreset,
			FFmpegPath:     compressFFmpeg,
		}
		if cmd.Flags().Changed("crf") {
			cfg.CRF = config.Int(compressCRF)
		}

		store, err := openHistory(nil)
		if err != nil {
			logger.Warn().Err(err).Msg("Run history unavailable")
		}
		defer store.Close()

		display := newRunDisplay("Compressing videos")
		engine := videoconv.New(videoconv.WithLogger(display.logger))
		engine.SetProgressCallback(display.callback())

		ctx := cmd.Context()
		sum, runErr := engine.Run(ctx, cfg)
		display.finish()
		recordRun(ctx, store, sum, cfg.InputDir, cfg.OutputDir, runErr)
		if runErr != nil && sum.RunID == "" {
			return runErr
		}

		if err := printSummary(os.Stdout, sum, compressJSON); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}
		if sum.Errors > 0 {
			return fmt.Errorf("%d files failed to compress", sum.Errors)
		}
		return nil
	},
}

func init() {
	videosCmd.AddCommand(videosCompressCmd)

	videosCompressCmd.Flags().StringVarP(&compressInputDir, "input", "i", "", "Input directory containing videos (required)")
	videosCompressCmd.Flags().StringVarP(&compressOutputDir, "output", "o", "", "Output directory for compressed videos (required)")
	videosCompressCmd.Flags().BoolVar(&compressClear, "clear", false, "Clear the output directory before compressing (keeps .gitkeep files)")
	videosCompressCmd.Flags().IntVar(&compressCRF, "crf", config.DefaultCRF, "Constant rate factor, 0-51 (lower is better quality)")
	videosCompressCmd.Flags().StringVar(&compressPreset, "preset", config.DefaultPreset, "Encoder preset: "+strings.Join(config.Presets, ", "))
	videosCompressCmd.Flags().StringVar(&compressFFmpeg, "ffmpeg", "", "Path to the ffmpeg binary")
	videosCompressCmd.Flags().BoolVar(&compressJSON, "json", false, "Print the run summary as JSON")

	videosCompressCmd.MarkFlagRequired("input")
	videosCompressCmd.MarkFlagRequired("output")
}
