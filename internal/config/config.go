// Package config holds runtime configuration: defaults, YAML file loading,
// CLI flag binding, and validation. Defaults: 1.2x speed, skip
// already-processed references, 2 minute per-file timeout, 3 preview
// samples.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stderr is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Speed bounds accepted by the transform executor. Speeds above
// QualityWarnSpeed are allowed but reported with a quality warning.
const (
	MinSpeed         = 0.5
	MaxSpeed         = 3.0
	QualityWarnSpeed = 2.5
)

// SpeedExact reports whether speed has at most two decimals. Output names
// and undo entries carry the factor at that precision, so a finer speed
// could not be encoded exactly. Float noise (1.2000000000000002) passes.
func SpeedExact(speed float64) bool {
	scaled := speed * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

// UndoInMemory selects the ephemeral undo log (nothing survives the process).
const UndoInMemory = ":memory:"

// Config holds all runtime settings. It is populated by [DefaultConfig],
// optionally overlaid by a YAML file ([LoadFile]) and finally by CLI flags.
// Fields are grouped by concern.
type Config struct {
	// Stores.
	MediaDir       string `yaml:"media_dir"`
	CollectionPath string `yaml:"collection"`
	UndoDBPath     string `yaml:"undo_db"` // Default: "<media_dir>/../retempo-undo.sqlite" when empty.

	// Transform settings.
	FFmpegPath    string        `yaml:"ffmpeg"`  // Empty: PATH, then well-known install locations.
	FFprobePath   string        `yaml:"ffprobe"` // Empty: PATH lookup; preview durations are optional.
	Speed         float64       `yaml:"speed"`   // Default: 1.2.
	FileTimeout   time.Duration `yaml:"file_timeout"`
	Workers       int           `yaml:"workers"`        // Default: 1 (sequential).
	SkipProcessed bool          `yaml:"skip_processed"` // Default: true. Cleared by --reprocess.

	// Preview.
	PreviewCount int    `yaml:"preview_count"` // Default: 3.
	ScratchDir   string `yaml:"scratch_dir"`   // Empty: a fresh temp directory per invocation.
	KeepPreview  bool   `yaml:"keep_preview"`

	// Output.
	ReportFile  string `yaml:"report"`
	MetricsFile string `yaml:"metrics_file"`
	JSON        bool   `yaml:"json"`
	DryRun      bool   `yaml:"-"`

	// Display and logging.
	Verbose   bool      `yaml:"verbose"`
	ColorMode ColorMode `yaml:"color"`
	LogFile   string    `yaml:"log_file"`
	LogLevel  string    `yaml:"log_level"`
}

// DefaultConfig returns a Config with all defaults applied. Used as the base
// before a config file and CLI flags are layered on top.
func DefaultConfig() Config {
	return Config{
		Speed:         1.2,
		FileTimeout:   2 * time.Minute,
		Workers:       1,
		SkipProcessed: true,
		PreviewCount:  3,
		ColorMode:     ColorAuto,
		LogLevel:      "info",
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges. Store paths are checked
// separately by [Config.RequireStores] because `check` runs without them.
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if math.IsNaN(c.Speed) || c.Speed < MinSpeed || c.Speed > MaxSpeed {
		return fmt.Errorf("speed %.2f out of range [%.1f, %.1f]", c.Speed, MinSpeed, MaxSpeed)
	}
	if !SpeedExact(c.Speed) {
		return fmt.Errorf("speed %v has more than two decimals", c.Speed)
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.PreviewCount < 1 {
		return errors.New("preview count must be at least 1")
	}
	if c.FileTimeout <= 0 {
		return errors.New("file timeout must be positive")
	}

	c.MediaDir = NormalizeDirArg(c.MediaDir)
	c.ScratchDir = NormalizeDirArg(c.ScratchDir)
	return nil
}

// RequireStores verifies that the media directory and collection are set.
// Commands that touch records (run, preview, undo, history) call it after
// [Config.Validate].
func (c *Config) RequireStores() error {
	if c.MediaDir == "" {
		return errors.New("media directory is required (--media)")
	}
	if c.CollectionPath == "" {
		return errors.New("collection path is required (--collection)")
	}
	return nil
}

// SpeedNeedsWarning reports whether the configured speed is past the point
// where time-stretch artifacts become audible.
func (c *Config) SpeedNeedsWarning() bool {
	return c.Speed > QualityWarnSpeed
}
