// Package media maps file names to the categories the conversion engines act on.
package media

import (
	"path/filepath"
	"strings"
)

// Category is the kind of file as seen by an engine.
type Category int

const (
	Other Category = iota
	RasterImage
	WebP
	PNG
	Video
)

func (c Category) String() string {
	switch c {
	case RasterImage:
		return "raster"
	case WebP:
		return "webp"
	case PNG:
		return "png"
	case Video:
		return "video"
	default:
		return "other"
	}
}

// Format is an image target encoding.
type Format string

const (
	FormatWebP Format = "webp"
	FormatPNG  Format = "png"
)

// Ext returns the file extension written for the format, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Valid reports whether f is a supported target format.
func (f Format) Valid() bool {
	return f == FormatWebP || f == FormatPNG
}

var (
	rasterExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}
	videoExts  = map[string]bool{
		".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
		".webm": true, ".flv": true, ".wmv": true,
	}
)

// Ext returns the lowercased extension of name.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// ClassifyImage returns RasterImage, WebP or Other.
func ClassifyImage(name string) Category {
	ext := Ext(name)
	switch {
	case ext == ".webp":
		return WebP
	case rasterExts[ext]:
		return RasterImage
	}
	return Other
}

// ClassifyImageForPngMode splits out .png from the other raster formats, since PNG
// is the target when converting to PNG.
func ClassifyImageForPngMode(name string) Category {
	ext := Ext(name)
	switch {
	case ext == ".webp":
		return WebP
	case ext == ".png":
		return PNG
	case rasterExts[ext]:
		return RasterImage
	}
	return Other
}

// ClassifyVideo returns Video or Other.
func ClassifyVideo(name string) Category {
	if videoExts[Ext(name)] {
		return Video
	}
	return Other
}

// Role describes what the image engine does with a file for a given target format.
type Role int

const (
	// RolePassthrough files are copied verbatim and do not count toward progress.
	RolePassthrough Role = iota
	// RoleTarget files are already in the target format and are copied.
	RoleTarget
	// RoleConvertible files are transcoded into the target format.
	RoleConvertible
)

// RoleFor resolves the image role of name when converting to format.
func RoleFor(name string, format Format) Role {
	if format == FormatPNG {
		switch ClassifyImageForPngMode(name) {
		case PNG:
			return RoleTarget
		case WebP, RasterImage:
			return RoleConvertible
		}
		return RolePassthrough
	}
	switch ClassifyImage(name) {
	case WebP:
		return RoleTarget
	case RasterImage:
		return RoleConvertible
	}
	return RolePassthrough
}
