// Package processing decodes, downsizes and re-encodes single images.
package processing

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the WebP decoder for imaging.Decode

	"go.lorenzomilicia.dev/aurora-converter/internal/media"
)

// Options controls a single transcode.
type Options struct {
	Quality  int
	MaxWidth int
	Format   media.Format
}

// Result describes a finished transcode.
type Result struct {
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int
	Bytes        int64
}

// Resized reports whether the image was downscaled.
func (r Result) Resized() bool {
	return r.Width != r.SourceWidth
}

// Transcoder converts the image at src into dst.
type Transcoder interface {
	Transcode(src, dst string, opts Options) (Result, error)
}

// Processor handles the image processing pipeline
type Processor struct{}

// NewProcessor creates a new processor
func NewProcessor() *Processor {
	return &Processor{}
}

// Transcode implements Transcoder for files on disk.
func (p *Processor) Transcode(src, dst string, opts Options) (Result, error) {
	return p.Process(&FileSource{Path: src}, &FileDestination{Path: dst}, opts)
}

// Process decodes src, downsizes it to opts.MaxWidth if wider, and encodes it to dst
// in opts.Format. Images are never upscaled. On failure dst is removed.
func (p *Processor) Process(src ImageSource, dst ImageDestination, opts Options) (Result, error) {
	reader, err := src.Open()
	if err != nil {
		return Result{}, fmt.Errorf("failed to open source for decoding: %w", err)
	}
	defer reader.Close()

	img, err := imaging.Decode(reader, imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode image %s: %w", src.Name(), err)
	}

	bounds := img.Bounds()
	res := Result{SourceWidth: bounds.Dx(), SourceHeight: bounds.Dy()}

	width, height := TargetSize(res.SourceWidth, res.SourceHeight, opts.MaxWidth)
	if width != res.SourceWidth {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
		height = img.Bounds().Dy()
	}
	res.Width, res.Height = width, height

	writer, err := dst.Create()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create output file: %w", err)
	}
	if err := encode(writer, img, opts); err != nil {
		writer.Close()
		dst.Discard()
		return Result{}, err
	}
	if err := writer.Close(); err != nil {
		dst.Discard()
		return Result{}, fmt.Errorf("failed to close output file: %w", err)
	}

	size, err := dst.Size()
	if err != nil {
		dst.Discard()
		return Result{}, fmt.Errorf("failed to stat output file: %w", err)
	}
	res.Bytes = size
	return res, nil
}

func encode(w io.Writer, img image.Image, opts Options) error {
	switch opts.Format {
	case media.FormatPNG:
		if err := imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return fmt.Errorf("failed to encode PNG: %w", err)
		}
	case media.FormatWebP, "":
		if err := webp.Encode(w, img, &webp.Options{Quality: float32(opts.Quality)}); err != nil {
			return fmt.Errorf("failed to encode WebP: %w", err)
		}
	default:
		return fmt.Errorf("unsupported target format %q", opts.Format)
	}
	return nil
}

// TargetSize returns the dimensions after fitting width into maxWidth while keeping
// the aspect ratio. Images at or below maxWidth, or a non-positive maxWidth, keep
// their size.
func TargetSize(width, height, maxWidth int) (int, int) {
	if maxWidth <= 0 || width <= maxWidth || width == 0 {
		return width, height
	}
	h := int(float64(height) * float64(maxWidth) / float64(width))
	if h < 1 {
		h = 1
	}
	return maxWidth, h
}
