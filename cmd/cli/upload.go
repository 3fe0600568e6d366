package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"go.lorenzomilicia.dev/aurora-converter/internal/config"
	"go.lorenzomilicia.dev/aurora-converter/internal/uploader"
)

var (
	uploadInputDir string
	uploadBucket   string
	uploadRegion   string
	uploadEndpoint string
	uploadBaseURL  string
	uploadPrefix   string
	uploadForce    bool
	uploadDryRun   bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a converted output tree to remote storage (S3/R2)",
	Long: `Upload a converted output tree to S3-compatible remote storage (AWS S3, Cloudflare R2, etc.).

Credentials are read from environment variables:
  - R2_ACCESS_KEY_ID / AWS_ACCESS_KEY_ID
  - R2_SECRET_ACCESS_KEY / AWS_SECRET_ACCESS_KEY

Example usage:
  # Upload to Cloudflare R2
  aurora upload -i dist/photos -b my-bucket -r auto --endpoint https://account-id.r2.cloudflarestorage.com --prefix photos/

  # Upload to AWS S3
  aurora upload -i dist/clips -b my-bucket -r us-east-1 --prefix clips/
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var ul uploader.Uploader
		if !uploadDryRun {
			s3, err := newS3Uploader(ctx, config.Upload{
				Bucket:   uploadBucket,
				Region:   uploadRegion,
				Endpoint: uploadEndpoint,
				BaseURL:  uploadBaseURL,
			})
			if err != nil {
				return err
			}
			ul = s3
		}
		return uploadDir(ctx, ul, uploadInputDir, uploadPrefix, uploadForce, uploadDryRun)
	},
}

func newS3Uploader(ctx context.Context, cfg config.Upload) (*uploader.S3Uploader, error) {
	ul, err := uploader.NewS3Uploader(ctx, uploader.S3Config{
		Endpoint: cfg.Endpoint,
		Region:   cfg.Region,
		Bucket:   cfg.Bucket,
		BaseURL:  cfg.BaseURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize uploader: %w", err)
	}
	return ul, nil
}

// uploadDir uploads one tree and logs each file. It fails if any file failed.
func uploadDir(ctx context.Context, ul uploader.Uploader, dir, prefix string, force, dryRun bool) error {
	logger.Info().Str("dir", dir).Str("prefix", prefix).Bool("dryRun", dryRun).Msg("Uploading output tree")

	res, err := uploader.UploadTree(ctx, ul, dir, uploader.UploadOptions{
		Force:  force,
		DryRun: dryRun,
		Prefix: prefix,
	}, func(ev uploader.Event) {
		switch ev.Action {
		case uploader.ActionFailed:
			logger.Error().Err(ev.Err).Str("key", ev.Key).Msg("Upload failed")
		case uploader.ActionSkipped:
			logger.Info().Str("key", ev.Key).Msg("Already exists, skipped")
		case uploader.ActionDryRun:
			logger.Info().Str("key", ev.Key).Str("contentType", ev.ContentType).Msg("Would upload")
		default:
			event := logger.Info().Str("key", ev.Key)
			if ul != nil {
				event = event.Str("url", ul.GetURL(ev.Key))
			}
			event.Msg("Uploaded")
		}
	})
	if err != nil {
		return err
	}

	logger.Info().
		Int("uploaded", res.Uploaded).
		Int("skipped", res.Skipped).
		Int("errors", res.Errors).
		Msg("Upload complete")
	if res.Errors > 0 {
		return fmt.Errorf("%d files failed to upload", res.Errors)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVarP(&uploadInputDir, "input", "i", "", "Output tree to upload (required)")
	uploadCmd.Flags().StringVarP(&uploadBucket, "bucket", "b", "", "S3 bucket name (required)")
	uploadCmd.Flags().StringVarP(&uploadRegion, "region", "r", "", "S3 region (e.g., 'us-east-1', 'auto' for R2) (required)")
	uploadCmd.Flags().StringVar(&uploadEndpoint, "endpoint", "", "Custom S3 endpoint URL (for R2: https://account-id.r2.cloudflarestorage.com)")
	uploadCmd.Flags().StringVar(&uploadBaseURL, "base-url", "", "Public base URL for accessing files (e.g., https://media.example.com)")
	uploadCmd.Flags().StringVar(&uploadPrefix, "prefix", "", "Prefix to prepend to all keys (e.g., 'photos/')")
	uploadCmd.Flags().BoolVar(&uploadForce, "force", false, "Force upload even if files already exist")
	uploadCmd.Flags().BoolVar(&uploadDryRun, "dry-run", false, "Simulate upload without actually uploading files")

	uploadCmd.MarkFlagRequired("input")
	uploadCmd.MarkFlagRequired("bucket")
	uploadCmd.MarkFlagRequired("region")
}
