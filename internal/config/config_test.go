package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDirArg(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no trailing slash", "/anki/collection.media", "/anki/collection.media"},
		{"single trailing slash", "/anki/collection.media/", "/anki/collection.media"},
		{"multiple trailing slashes", "/anki/collection.media///", "/anki/collection.media"},
		{"root path", "/", "/"},
		{"relative path", "media", "media"},
		{"relative with slash", "media/", "media"},
		{"empty string", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDirArg(tt.in)
			if got != tt.want {
				t.Errorf("NormalizeDirArg(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate_Speed(t *testing.T) {
	tests := []struct {
		name    string
		speed   float64
		wantErr bool
	}{
		{"default", 1.2, false},
		{"lower bound", 0.5, false},
		{"upper bound", 3.0, false},
		{"too slow", 0.4, true},
		{"too fast", 3.1, true},
		{"zero", 0, true},
		{"negative", -1.5, true},
		{"two decimals", 1.25, false},
		{"float noise", 1.2000000000000002, false},
		{"three decimals", 1.234, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Speed = tt.speed
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ColorMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    ColorMode
		wantErr bool
	}{
		{"auto", ColorAuto, false},
		{"always", ColorAlways, false},
		{"never", ColorNever, false},
		{"empty", "", true},
		{"unknown", "rainbow", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ColorMode = tt.mode
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Counts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.PreviewCount = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FileTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestRequireStores(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.RequireStores())

	cfg.MediaDir = "/media"
	assert.Error(t, cfg.RequireStores())

	cfg.CollectionPath = "/collection.anki2"
	assert.NoError(t, cfg.RequireStores())
}

func TestSpeedNeedsWarning(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.SpeedNeedsWarning())
	cfg.Speed = 2.5
	assert.False(t, cfg.SpeedNeedsWarning())
	cfg.Speed = 2.6
	assert.True(t, cfg.SpeedNeedsWarning())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retempo.yaml")
	doc := "media_dir: /anki/collection.media/\nspeed: 1.5\nworkers: 4\nfile_timeout: 30s\nskip_processed: false\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, LoadFile(path, &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/anki/collection.media", cfg.MediaDir)
	assert.Equal(t, 1.5, cfg.Speed)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.FileTimeout)
	assert.False(t, cfg.SkipProcessed)
	assert.Equal(t, 3, cfg.PreviewCount, "unset keys keep their defaults")
}

func TestLoadFile_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retempo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sped: 1.5\n"), 0o644))

	cfg := DefaultConfig()
	assert.Error(t, LoadFile(path, &cfg))
}

func TestLoadFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retempo.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cfg := DefaultConfig()
	require.NoError(t, LoadFile(path, &cfg))
	assert.Equal(t, DefaultConfig(), cfg)
}

func newFlagSet(cfg *Config) (*pflag.FlagSet, *Binder) {
	fs := pflag.NewFlagSet("retempo", pflag.ContinueOnError)
	b := NewBinder(cfg)
	b.BindGlobal(fs)
	b.BindTransform(fs)
	b.BindRun(fs)
	b.BindPreview(fs)
	return fs, b
}

func TestBinder_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retempo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("speed: 1.5\nworkers: 4\nmedia_dir: /from/file\n"), 0o644))

	cfg := DefaultConfig()
	fs, b := newFlagSet(&cfg)
	require.NoError(t, fs.Parse([]string{"--config", path, "--speed", "2.0"}))
	require.NoError(t, b.Finalize(fs))

	assert.Equal(t, 2.0, cfg.Speed, "flag wins over file")
	assert.Equal(t, 4, cfg.Workers, "file wins over default")
	assert.Equal(t, "/from/file", cfg.MediaDir)
}

func TestBinder_NegatedFlags(t *testing.T) {
	cfg := DefaultConfig()
	fs, b := newFlagSet(&cfg)
	require.NoError(t, fs.Parse([]string{"--reprocess", "--no-color"}))
	require.NoError(t, b.Finalize(fs))

	assert.False(t, cfg.SkipProcessed)
	assert.Equal(t, ColorNever, cfg.ColorMode)
}

func TestBinder_ForceColor(t *testing.T) {
	cfg := DefaultConfig()
	fs, b := newFlagSet(&cfg)
	require.NoError(t, fs.Parse([]string{"--color"}))
	require.NoError(t, b.Finalize(fs))

	assert.Equal(t, ColorAlways, cfg.ColorMode)
	assert.True(t, cfg.SkipProcessed)
}

func TestBinder_InvalidColorMode(t *testing.T) {
	cfg := DefaultConfig()
	fs, _ := newFlagSet(&cfg)
	assert.Error(t, fs.Parse([]string{"--color-mode", "sometimes"}))
}
