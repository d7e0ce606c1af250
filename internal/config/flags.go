package config

// This file binds configuration fields to pflag flag sets (used by the cobra
// commands) and layers the optional YAML file underneath them.
// Negated flags (e.g. --reprocess, --no-color) are applied after parsing so
// Config defaults hold unless the user passes the flag.

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Binder registers flags that write into a Config and remembers which of
// them are config-backed, so values given on the command line win over the
// config file.
type Binder struct {
	cfg     *Config
	bound   map[string]bool
	negated negatedFlags

	ConfigPath string
}

// negatedFlags holds boolean flags that are applied after Parse. They invert
// a default (reprocess -> SkipProcessed=false) or force a color mode.
type negatedFlags struct {
	reprocess  bool
	forceColor bool
	noColor    bool
}

// NewBinder returns a Binder writing into cfg.
func NewBinder(cfg *Config) *Binder {
	return &Binder{cfg: cfg, bound: make(map[string]bool)}
}

func (b *Binder) track(fs *pflag.FlagSet, names ...string) {
	for _, n := range names {
		if fs.Lookup(n) != nil {
			b.bound[n] = true
		}
	}
}

// BindGlobal registers the flags shared by every command: stores, ffmpeg
// location, display and logging.
func (b *Binder) BindGlobal(fs *pflag.FlagSet) {
	c := b.cfg
	fs.StringVar(&b.ConfigPath, "config", "", "YAML config file (flags override file values)")
	fs.StringVar(&c.MediaDir, "media", c.MediaDir, "Media directory holding the audio files")
	fs.StringVar(&c.CollectionPath, "collection", c.CollectionPath, "SQLite collection holding the records")
	fs.StringVar(&c.UndoDBPath, "undo-db", c.UndoDBPath, "Undo log database (\":memory:\" keeps it in memory)")
	fs.StringVar(&c.FFmpegPath, "ffmpeg", c.FFmpegPath, "ffmpeg executable (default: discover)")
	fs.StringVar(&c.FFprobePath, "ffprobe", c.FFprobePath, "ffprobe executable (default: PATH)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "Verbose output")
	fs.Var(&colorModeValue{&c.ColorMode}, "color-mode", "Color output: auto | always | never")
	fs.BoolVar(&b.negated.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&b.negated.noColor, "no-color", false, "Disable colored logs")
	fs.StringVarP(&c.LogFile, "log", "l", c.LogFile, "Append JSON logs to file")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug | info | warn | error")
	fs.BoolVar(&c.JSON, "json", c.JSON, "Print the structured outcome as JSON on stdout")
	b.track(fs, "media", "collection", "undo-db", "ffmpeg", "ffprobe", "verbose",
		"color-mode", "log", "log-level", "json")
}

// BindTransform registers the flags used by commands that run the
// transcoder (run, preview).
func (b *Binder) BindTransform(fs *pflag.FlagSet) {
	c := b.cfg
	fs.Float64VarP(&c.Speed, "speed", "s", c.Speed, "Speed factor (0.5-3.0, pitch preserved)")
	fs.DurationVar(&c.FileTimeout, "timeout", c.FileTimeout, "Per-file ffmpeg timeout")
	b.track(fs, "speed", "timeout")
}

// BindRun registers the batch-only flags.
func (b *Binder) BindRun(fs *pflag.FlagSet) {
	c := b.cfg
	fs.IntVarP(&c.Workers, "workers", "w", c.Workers, "Records transformed concurrently")
	fs.BoolVar(&b.negated.reprocess, "reprocess", false, "Transform references that were already processed at this speed")
	fs.BoolVarP(&c.DryRun, "dry-run", "d", false, "Only report what would be processed")
	fs.StringVar(&c.MetricsFile, "metrics-file", c.MetricsFile, "Write Prometheus metrics (textfile format) to this file")
	b.track(fs, "workers", "metrics-file")
	b.BindReport(fs)
}

// BindReport registers --report for commands that produce an outcome (run,
// undo).
func (b *Binder) BindReport(fs *pflag.FlagSet) {
	fs.StringVar(&b.cfg.ReportFile, "report", b.cfg.ReportFile, "Write the JSON outcome to this file")
	b.track(fs, "report")
}

// BindPreview registers the preview-only flags.
func (b *Binder) BindPreview(fs *pflag.FlagSet) {
	c := b.cfg
	fs.IntVarP(&c.PreviewCount, "count", "n", c.PreviewCount, "Number of sample references to preview")
	fs.StringVar(&c.ScratchDir, "scratch", c.ScratchDir, "Scratch directory for preview files")
	fs.BoolVar(&c.KeepPreview, "keep", c.KeepPreview, "Keep preview files after printing them")
	b.track(fs, "count", "scratch", "keep")
}

// Finalize layers the config file (if any) under the flags that were set on
// the command line, applies negated flags and validates the result.
func (b *Binder) Finalize(fs *pflag.FlagSet) error {
	if b.ConfigPath != "" {
		explicit := make(map[string]string)
		fs.Visit(func(f *pflag.Flag) {
			if b.bound[f.Name] {
				explicit[f.Name] = f.Value.String()
			}
		})
		if err := LoadFile(b.ConfigPath, b.cfg); err != nil {
			return err
		}
		for name, val := range explicit {
			if err := fs.Set(name, val); err != nil {
				return fmt.Errorf("reapply --%s: %w", name, err)
			}
		}
	}
	b.applyNegated()
	return b.cfg.Validate()
}

// applyNegated copies negated and override flag values into cfg.
func (b *Binder) applyNegated() {
	n := &b.negated
	if n.reprocess {
		b.cfg.SkipProcessed = false
	}
	if n.noColor {
		b.cfg.ColorMode = ColorNever
	} else if n.forceColor {
		b.cfg.ColorMode = ColorAlways
	}
}

// pflag.Value adapter so ColorMode can be used with fs.Var.

type colorModeValue struct{ p *ColorMode }

func (v *colorModeValue) String() string { return string(*v.p) }
func (v *colorModeValue) Type() string   { return "mode" }
func (v *colorModeValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "auto":
		*v.p = ColorAuto
	case "always":
		*v.p = ColorAlways
	case "never":
		*v.p = ColorNever
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
	}
	return nil
}
