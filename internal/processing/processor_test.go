package processing

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	xwebp "golang.org/x/image/webp"

	"go.lorenzomilicia.dev/aurora-converter/internal/media"
)

func createTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestProcessor_TranscodeWebP(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	dst := filepath.Join(dir, "out", "in.webp")
	createTestImage(t, src, 100, 50)

	res, err := NewProcessor().Transcode(src, dst, Options{Quality: 75, MaxWidth: 1920, Format: media.FormatWebP})
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(content, []byte("RIFF")) {
		t.Errorf("output does not look like a WebP file")
	}
	if res.Bytes != int64(len(content)) {
		t.Errorf("Result.Bytes = %d, file has %d", res.Bytes, len(content))
	}

	cfg, err := xwebp.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("narrow image should keep its size, got %dx%d", cfg.Width, cfg.Height)
	}
	if res.Resized() {
		t.Error("narrow image should not be reported as resized")
	}
}

func TestProcessor_DownscalesOnlyWhenWider(t *testing.T) {
	tests := []struct {
		name             string
		maxWidth         int
		wantW, wantH     int
		wantResizedState bool
	}{
		{"wider than max", 60, 60, 30, true},
		{"narrower than max", 200, 100, 50, false},
		{"equal to max", 100, 100, 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "in.png")
			dst := filepath.Join(dir, "out.png")
			createTestImage(t, src, 100, 50)

			res, err := NewProcessor().Transcode(src, dst, Options{Quality: 80, MaxWidth: tt.maxWidth, Format: media.FormatPNG})
			if err != nil {
				t.Fatalf("Transcode: %v", err)
			}
			f, err := os.Open(dst)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			cfg, err := png.DecodeConfig(f)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
			if res.Resized() != tt.wantResizedState {
				t.Errorf("Resized() = %v", res.Resized())
			}
		})
	}
}

func TestProcessor_WebPInputToPNG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	mid := filepath.Join(dir, "mid.webp")
	dst := filepath.Join(dir, "out.png")
	createTestImage(t, src, 40, 20)

	p := NewProcessor()
	if _, err := p.Transcode(src, mid, Options{Quality: 90, MaxWidth: 1920, Format: media.FormatWebP}); err != nil {
		t.Fatalf("to webp: %v", err)
	}
	res, err := p.Transcode(mid, dst, Options{MaxWidth: 1920, Format: media.FormatPNG})
	if err != nil {
		t.Fatalf("webp to png: %v", err)
	}
	if res.Width != 40 || res.Height != 20 {
		t.Errorf("unexpected size %dx%d", res.Width, res.Height)
	}
}

func TestProcessor_CorruptInputLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.jpg")
	dst := filepath.Join(dir, "broken.webp")
	if err := os.WriteFile(src, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewProcessor().Transcode(src, dst, Options{Quality: 80, MaxWidth: 100, Format: media.FormatWebP}); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("no output should be written for a failed decode")
	}
}

// unstattableDestination writes to a real file but cannot report its size.
type unstattableDestination struct {
	FileDestination
	discarded bool
}

func (d *unstattableDestination) Discard() {
	d.discarded = true
	d.FileDestination.Discard()
}

func (d *unstattableDestination) Size() (int64, error) {
	return 0, errors.New("stat: input/output error")
}

func TestProcessor_SizeFailureDiscardsOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	createTestImage(t, src, 8, 8)
	dst := &unstattableDestination{FileDestination: FileDestination{Path: filepath.Join(dir, "out.webp")}}

	_, err := NewProcessor().Process(&FileSource{Path: src}, dst, Options{Quality: 80, MaxWidth: 100, Format: media.FormatWebP})
	if err == nil {
		t.Fatal("expected an error when the output size is unavailable")
	}
	if !dst.discarded {
		t.Error("output should be discarded")
	}
	if _, err := os.Stat(dst.Path); !os.IsNotExist(err) {
		t.Error("no output should remain after a failed size check")
	}
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{4000, 3000, 1920, 1920, 1440},
		{1000, 500, 1920, 1000, 500},
		{1920, 1080, 1920, 1920, 1080},
		{3000, 1, 1000, 1000, 1},
		{500, 500, 0, 500, 500},
	}
	for _, tt := range tests {
		w, h := TargetSize(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("TargetSize(%d,%d,%d) = %dx%d, want %dx%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}
