package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go.lorenzomilicia.dev/aurora-converter/internal/config"
	"go.lorenzomilicia.dev/aurora-converter/internal/history"
	"go.lorenzomilicia.dev/aurora-converter/internal/imageconv"
	"go.lorenzomilicia.dev/aurora-converter/internal/outdir"
	"go.lorenzomilicia.dev/aurora-converter/internal/runstats"
	"go.lorenzomilicia.dev/aurora-converter/internal/videoconv"
)

var (
	batchConfigPath string
	batchUpload     bool
	batchJSON       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run the image and video sections of a project file",
	Long: `Run every section of a YAML or TOML project file. The image and video runs execute
concurrently when their output directories are disjoint, one after the other when
one output is, or contains, the other. A failure in one section does not stop the
other.
With --upload, each output tree is published to the configured bucket afterwards.

Example project file (aurora.yaml):
  images:
    input_dir: photos
    output_dir: dist/photos
    quality: 75
  videos:
    input_dir: clips
    output_dir: dist/clips
    crf: 28
  upload:
    bucket: my-site-media
    region: auto
    endpoint: https://account-id.r2.cloudflarestorage.com
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := config.Load(batchConfigPath)
		if err != nil {
			return err
		}
		if file.Images == nil && file.Videos == nil {
			return fmt.Errorf("%w: %s has neither an images nor a videos section", config.ErrInvalid, batchConfigPath)
		}

		store, err := openHistory(file)
		if err != nil {
			logger.Warn().Err(err).Msg("Run history unavailable")
		}
		defer store.Close()

		ctx := cmd.Context()
		summaries, runErr := runBatch(ctx, file, store)
		for _, sum := range summaries {
			if err := printSummary(os.Stdout, sum, batchJSON); err != nil {
				return err
			}
		}
		if runErr != nil {
			return runErr
		}

		if batchUpload {
			if err := uploadOutputs(ctx, file); err != nil {
				return err
			}
		}

		failed := 0
		for _, sum := range summaries {
			failed += sum.Errors
		}
		if failed > 0 {
			return fmt.Errorf("%d files failed", failed)
		}
		return nil
	},
}

// runBatch runs the configured sections and returns their summaries, images first.
func runBatch(ctx context.Context, file *config.File, store *history.Store) ([]runstats.Summary, error) {
	var (
		mu       sync.Mutex
		imageSum *runstats.Summary
		videoSum *runstats.Summary
	)
	runImages := func(ctx context.Context) error {
		cfg := *file.Images
		engine := imageconv.New(imageconv.WithLogger(logger.With().Str("section", "images").Logger()))
		sum, err := engine.Run(ctx, cfg)
		recordRun(ctx, store, sum, cfg.InputDir, cfg.OutputDir, err)
		if sum.RunID != "" {
			mu.Lock()
			imageSum = &sum
			mu.Unlock()
		}
		return err
	}
	runVideos := func(ctx context.Context) error {
		cfg := *file.Videos
		engine := videoconv.New(videoconv.WithLogger(logger.With().Str("section", "videos").Logger()))
		sum, err := engine.Run(ctx, cfg)
		recordRun(ctx, store, sum, cfg.InputDir, cfg.OutputDir, err)
		if sum.RunID != "" {
			mu.Lock()
			videoSum = &sum
			mu.Unlock()
		}
		return err
	}

	plan, err := planBatch(file)
	if err != nil {
		return nil, err
	}
	switch {
	case plan.sequential:
		logger.Info().Msg("Image and video output directories overlap; running sequentially")
		first, second := runImages, runVideos
		if plan.videosFirst {
			first, second = runVideos, runImages
		}
		err = first(ctx)
		if ctx.Err() == nil {
			err = errors.Join(err, second(ctx))
		}
	default:
		var g errgroup.Group
		if file.Images != nil {
			g.Go(func() error { return runImages(ctx) })
		}
		if file.Videos != nil {
			g.Go(func() error { return runVideos(ctx) })
		}
		err = g.Wait()
	}

	var out []runstats.Summary
	for _, s := range []*runstats.Summary{imageSum, videoSum} {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, err
}

// batchPlan is how the two sections of a project file run together.
type batchPlan struct {
	sequential  bool
	videosFirst bool
}

// planBatch checks the directories of both sections against each other. Sections
// whose output directories overlap run one after the other, the one that clears
// its output first. An input overlapping the other section's output, or two
// overlapping outputs that are both cleared, is rejected with outdir.ErrNestedDirs.
func planBatch(file *config.File) (batchPlan, error) {
	if file.Images == nil || file.Videos == nil {
		return batchPlan{}, nil
	}
	img, vid := file.Images, file.Videos

	for _, p := range [][2]string{{img.InputDir, vid.OutputDir}, {vid.InputDir, img.OutputDir}} {
		nested, err := outdir.Overlap(p[0], p[1])
		if err != nil {
			return batchPlan{}, err
		}
		if nested {
			return batchPlan{}, fmt.Errorf("%w: input %s overlaps the other section's output %s", outdir.ErrNestedDirs, p[0], p[1])
		}
	}

	nested, err := outdir.Overlap(img.OutputDir, vid.OutputDir)
	if err != nil {
		return batchPlan{}, err
	}
	if !nested {
		return batchPlan{}, nil
	}
	if img.ClearOutputDir && vid.ClearOutputDir {
		return batchPlan{}, fmt.Errorf("%w: outputs %s and %s overlap and both are cleared", outdir.ErrNestedDirs, img.OutputDir, vid.OutputDir)
	}
	return batchPlan{sequential: true, videosFirst: vid.ClearOutputDir}, nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

// uploadOutputs publishes each section's output tree under the configured prefix.
func uploadOutputs(ctx context.Context, file *config.File) error {
	if file.Upload.Bucket == "" {
		return errors.New("--upload requires an upload.bucket in the project file")
	}
	ul, err := newS3Uploader(ctx, file.Upload)
	if err != nil {
		return err
	}
	var dirs []string
	if file.Images != nil {
		dirs = append(dirs, file.Images.OutputDir)
	}
	if file.Videos != nil && (file.Images == nil || !sameDir(file.Images.OutputDir, file.Videos.OutputDir)) {
		dirs = append(dirs, file.Videos.OutputDir)
	}
	for _, dir := range dirs {
		if err := uploadDir(ctx, ul, dir, file.Upload.Prefix, false, false); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchConfigPath, "config", "c", "aurora.yaml", "Project file (.yaml, .yml or .toml)")
	batchCmd.Flags().BoolVar(&batchUpload, "upload", false, "Upload the output trees when the runs succeed")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "Print the run summaries as JSON")
}
