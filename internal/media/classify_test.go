package media

import "testing"

func TestClassifyImage(t *testing.T) {
	tests := []struct {
		name string
		want Category
	}{
		{"photo.jpg", RasterImage},
		{"photo.JPEG", RasterImage},
		{"icon.Png", RasterImage},
		{"anim.gif", RasterImage},
		{"photo.webp", WebP},
		{"photo.WEBP", WebP},
		{"notes.txt", Other},
		{"noext", Other},
		{"archive.tar.gz", Other},
	}
	for _, tt := range tests {
		if got := ClassifyImage(tt.name); got != tt.want {
			t.Errorf("ClassifyImage(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClassifyImageForPngMode(t *testing.T) {
	tests := []struct {
		name string
		want Category
	}{
		{"a.png", PNG},
		{"a.PNG", PNG},
		{"a.webp", WebP},
		{"a.jpg", RasterImage},
		{"a.gif", RasterImage},
		{"a.mp4", Other},
	}
	for _, tt := range tests {
		if got := ClassifyImageForPngMode(tt.name); got != tt.want {
			t.Errorf("ClassifyImageForPngMode(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClassifyVideo(t *testing.T) {
	for _, name := range []string{"a.mp4", "a.AVI", "a.mov", "a.mkv", "a.webm", "a.flv", "a.wmv"} {
		if ClassifyVideo(name) != Video {
			t.Errorf("ClassifyVideo(%q) should be video", name)
		}
	}
	for _, name := range []string{"a.m4v", "a.jpg", "mp4"} {
		if ClassifyVideo(name) != Other {
			t.Errorf("ClassifyVideo(%q) should be other", name)
		}
	}
}

func TestRoleFor(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		want   Role
	}{
		{"a.jpg", FormatWebP, RoleConvertible},
		{"a.png", FormatWebP, RoleConvertible},
		{"a.webp", FormatWebP, RoleTarget},
		{"a.txt", FormatWebP, RolePassthrough},
		{"a.webp", FormatPNG, RoleConvertible},
		{"a.jpg", FormatPNG, RoleConvertible},
		{"a.png", FormatPNG, RoleTarget},
		{"a.mov", FormatPNG, RolePassthrough},
	}
	for _, tt := range tests {
		if got := RoleFor(tt.name, tt.format); got != tt.want {
			t.Errorf("RoleFor(%q, %s) = %v, want %v", tt.name, tt.format, got, tt.want)
		}
	}
}
