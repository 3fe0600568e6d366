package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// ErrMissingCredentials is returned when no access key pair is configured.
var ErrMissingCredentials = errors.New("missing credentials: set R2_ACCESS_KEY_ID/R2_SECRET_ACCESS_KEY or AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY")

// S3Uploader implements the Uploader interface for S3-compatible storage (AWS S3, Cloudflare R2, etc.)
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	baseURL string // Public base URL for accessing files
	log     zerolog.Logger
}

// S3Config contains configuration for S3-compatible storage
type S3Config struct {
	// Endpoint is the S3-compatible endpoint URL (e.g., https://account-id.r2.cloudflarestorage.com)
	// For AWS S3, leave empty to use default
	Endpoint string

	// Region for the S3 bucket (e.g., "us-east-1", "auto" for R2)
	Region string

	// Bucket name
	Bucket string

	// AccessKeyID for authentication (can be read from env: AWS_ACCESS_KEY_ID or R2_ACCESS_KEY_ID)
	AccessKeyID string

	// SecretAccessKey for authentication (can be read from env: AWS_SECRET_ACCESS_KEY or R2_SECRET_ACCESS_KEY)
	SecretAccessKey string

	// BaseURL is the public URL base for accessing uploaded files
	BaseURL string
}

// credentialsFromEnv fills missing keys, preferring the R2 variables.
func (c S3Config) credentialsFromEnv() (string, string) {
	accessKey, secretKey := c.AccessKeyID, c.SecretAccessKey
	if accessKey == "" {
		accessKey = firstEnv("R2_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	}
	if secretKey == "" {
		secretKey = firstEnv("R2_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	}
	return accessKey, secretKey
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// publicBaseURL returns the configured base URL or the default S3 layout.
func (c S3Config) publicBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	if c.Endpoint != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(c.Endpoint, "/"), c.Bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
}

// NewS3Uploader creates a new S3-compatible uploader
func NewS3Uploader(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Uploader, error) {
	accessKey, secretKey := cfg.credentialsFromEnv()
	if accessKey == "" || secretKey == "" {
		return nil, ErrMissingCredentials
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for R2
		}
	})

	baseURL := cfg.publicBaseURL()
	logger.Info().
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Str("endpoint", cfg.Endpoint).
		Str("baseURL", baseURL).
		Msg("S3 uploader initialized")

	return &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
		log:     logger,
	}, nil
}

// Upload uploads a file to S3-compatible storage
func (u *S3Uploader) Upload(ctx context.Context, key string, content io.Reader, contentType string) error {
	u.log.Debug().Str("key", key).Str("contentType", contentType).Msg("Uploading to S3")

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	u.log.Debug().Str("key", key).Msg("Upload successful")
	return nil
}

// Exists checks if a file exists in S3-compatible storage
func (u *S3Uploader) Exists(ctx context.Context, key string) (bool, error) {
	_, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence of %s: %w", key, err)
	}
	return true, nil
}

// isNotFound recognizes a missing object. HeadObject has no body, so some
// providers only surface the generic "NotFound" code.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}

// GetURL returns the public URL for accessing the uploaded file
func (u *S3Uploader) GetURL(key string) string {
	return fmt.Sprintf("%s/%s", u.baseURL, key)
}

// Delete removes a file from S3-compatible storage
func (u *S3Uploader) Delete(ctx context.Context, key string) error {
	u.log.Debug().Str("key", key).Msg("Deleting from S3")

	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	u.log.Debug().Str("key", key).Msg("Delete successful")
	return nil
}

// DetectContentType detects MIME type from file extension
func DetectContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".flv":
		return "video/x-flv"
	case ".wmv":
		return "video/x-ms-wmv"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
