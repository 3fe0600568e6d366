// Package config defines the per-run configuration of the conversion engines and
// the project file that can hold several of them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"go.lorenzomilicia.dev/aurora-converter/internal/media"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultQuality  = 80
	DefaultMaxWidth = 1920
	DefaultCRF      = 23
	DefaultPreset   = "medium"

	// EnvFFmpegPath overrides the encoder binary location.
	EnvFFmpegPath = "AURORA_FFMPEG_PATH"
	// EnvHistoryDB overrides the run history database path.
	EnvHistoryDB = "AURORA_HISTORY_DB"
)

// Presets lists the encoder presets accepted for video compression, fastest first.
var Presets = []string{"ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow"}

// ImageConfig configures one image conversion run.
type ImageConfig struct {
	InputDir       string       `yaml:"input_dir" toml:"input_dir"`
	OutputDir      string       `yaml:"output_dir" toml:"output_dir"`
	ClearOutputDir bool         `yaml:"clear_output_dir" toml:"clear_output_dir"`
	Quality        *int         `yaml:"quality,omitempty" toml:"quality,omitempty"`
	MaxWidth       int          `yaml:"max_width,omitempty" toml:"max_width,omitempty"`
	TargetFormat   media.Format `yaml:"target_format,omitempty" toml:"target_format,omitempty"`
}

// WithDefaults returns a copy with unset fields filled in.
func (c ImageConfig) WithDefaults() ImageConfig {
	if c.Quality == nil {
		q := DefaultQuality
		c.Quality = &q
	}
	if c.MaxWidth == 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	if c.TargetFormat == "" {
		c.TargetFormat = media.FormatWebP
	}
	c.TargetFormat = media.Format(strings.ToLower(string(c.TargetFormat)))
	return c
}

// QualityValue returns the configured quality, or the default when unset.
func (c ImageConfig) QualityValue() int {
	if c.Quality == nil {
		return DefaultQuality
	}
	return *c.Quality
}

// Validate checks ranges and required paths. Call it on a defaulted config.
func (c ImageConfig) Validate() error {
	var errs []error
	errs = append(errs, validateDirs(c.InputDir, c.OutputDir)...)
	if q := c.QualityValue(); q < 0 || q > 100 {
		errs = append(errs, fmt.Errorf("quality %d out of range [0,100]", q))
	}
	if c.MaxWidth <= 0 {
		errs = append(errs, fmt.Errorf("max width must be positive, got %d", c.MaxWidth))
	}
	if !c.TargetFormat.Valid() {
		errs = append(errs, fmt.Errorf("target format %q must be webp or png", c.TargetFormat))
	}
	return joinInvalid(errs)
}

// VideoConfig configures one video compression run.
type VideoConfig struct {
	InputDir       string `yaml:"input_dir" toml:"input_dir"`
	OutputDir      string `yaml:"output_dir" toml:"output_dir"`
	ClearOutputDir bool   `yaml:"clear_output_dir" toml:"clear_output_dir"`
	CRF            *int   `yaml:"crf,omitempty" toml:"crf,omitempty"`
	Preset         string `yaml:"preset,omitempty" toml:"preset,omitempty"`
	FFmpegPath     string `yaml:"ffmpeg_path,omitempty" toml:"ffmpeg_path,omitempty"`
}

// WithDefaults returns a copy with unset fields filled in. An empty FFmpegPath is
// taken from the environment.
func (c VideoConfig) WithDefaults() VideoConfig {
	if c.CRF == nil {
		crf := DefaultCRF
		c.CRF = &crf
	}
	if c.Preset == "" {
		c.Preset = DefaultPreset
	}
	c.Preset = strings.ToLower(c.Preset)
	if c.FFmpegPath == "" {
		c.FFmpegPath = os.Getenv(EnvFFmpegPath)
	}
	return c
}

// CRFValue returns the configured CRF, or the default when unset.
func (c VideoConfig) CRFValue() int {
	if c.CRF == nil {
		return DefaultCRF
	}
	return *c.CRF
}

// Validate checks ranges and required paths. Call it on a defaulted config.
func (c VideoConfig) Validate() error {
	var errs []error
	errs = append(errs, validateDirs(c.InputDir, c.OutputDir)...)
	if crf := c.CRFValue(); crf < 0 || crf > 51 {
		errs = append(errs, fmt.Errorf("crf %d out of range [0,51]", crf))
	}
	if !slices.Contains(Presets, c.Preset) {
		errs = append(errs, fmt.Errorf("unknown preset %q", c.Preset))
	}
	return joinInvalid(errs)
}

func validateDirs(input, output string) []error {
	var errs []error
	if strings.TrimSpace(input) == "" {
		errs = append(errs, errors.New("input directory is required"))
	}
	if strings.TrimSpace(output) == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	return errs
}

func joinInvalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Int returns a pointer to v, for the optional numeric fields.
func Int(v int) *int {
	return &v
}

// History configures the run history store.
type History struct {
	Disabled bool   `yaml:"disabled,omitempty" toml:"disabled,omitempty"`
	Path     string `yaml:"path,omitempty" toml:"path,omitempty"`
}

// Upload configures publishing an output tree to S3-compatible storage.
type Upload struct {
	Bucket   string `yaml:"bucket,omitempty" toml:"bucket,omitempty"`
	Region   string `yaml:"region,omitempty" toml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	Prefix   string `yaml:"prefix,omitempty" toml:"prefix,omitempty"`
}

// File is a project file with optional image and video sections.
type File struct {
	Images  *ImageConfig `yaml:"images,omitempty" toml:"images,omitempty"`
	Videos  *VideoConfig `yaml:"videos,omitempty" toml:"videos,omitempty"`
	History History      `yaml:"history,omitempty" toml:"history,omitempty"`
	Upload  Upload       `yaml:"upload,omitempty" toml:"upload,omitempty"`
}

// Load reads a project file. The format follows the extension: .toml, or YAML for
// anything else. Relative directories are resolved against the file's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	if f.Images != nil {
		f.Images.InputDir = resolve(base, f.Images.InputDir)
		f.Images.OutputDir = resolve(base, f.Images.OutputDir)
	}
	if f.Videos != nil {
		f.Videos.InputDir = resolve(base, f.Videos.InputDir)
		f.Videos.OutputDir = resolve(base, f.Videos.OutputDir)
	}
	if f.History.Path != "" {
		f.History.Path = resolve(base, f.History.Path)
	}
	return &f, nil
}

// Save writes f as YAML.
func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// HistoryPath returns the database path: the explicit value, the environment
// override, or a file under the user config directory.
func HistoryPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(EnvHistoryDB); env != "" {
		return env, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, "aurora", "history.db"), nil
}
