package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/backmassage/retempo/internal/media"
	"github.com/backmassage/retempo/internal/naming"
)

const (
	// DefaultTimeout bounds a single ffmpeg run.
	DefaultTimeout = 2 * time.Minute

	// Outputs smaller than this are treated as a failed encode.
	minOutputSize = 100

	stderrTailLines = 20
)

// Options configure an Executor.
type Options struct {
	// Binary is an explicit ffmpeg path or name; empty means discover.
	Binary string
	// Dest receives the outputs. Nil writes beside each input.
	Dest media.Store
	// Timeout bounds one ffmpeg run; zero means DefaultTimeout.
	Timeout time.Duration
	// Verbose raises ffmpeg's log level and tees its stderr to Stderr.
	Verbose bool
	Stderr  io.Writer
}

// Executor runs ffmpeg transforms. It is safe for concurrent use; requests
// for the same output file are collapsed into one ffmpeg run.
type Executor struct {
	opts Options

	once   sync.Once
	bin    string
	binErr error

	group singleflight.Group
}

// New returns an Executor. The ffmpeg binary is resolved lazily on first use.
func New(opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Executor{opts: opts}
}

// Preflight resolves the ffmpeg binary once so a batch can be refused up
// front instead of failing on every file.
func (e *Executor) Preflight() error {
	_, err := e.binary()
	return err
}

// Binary returns the resolved ffmpeg path.
func (e *Executor) Binary() (string, error) {
	return e.binary()
}

func (e *Executor) binary() (string, error) {
	e.once.Do(func() {
		p, err := Locate("ffmpeg", e.opts.Binary)
		if err != nil {
			e.binErr = newError(KindExecutableNotFound, e.opts.Binary, ErrExecutableNotFound, "%v", err)
			return
		}
		e.bin = p
	})
	return e.bin, e.binErr
}

// OutputName is the filename Transform produces for input at speed.
func OutputName(input string, speed float64) string {
	return media.Normalize(naming.SpeedFilename(filepath.Base(input), naming.NormalizeSpeed(speed)))
}

// Transform re-encodes inputPath at speed and returns the output path. An
// existing output with the same name is reused. On failure nothing is left
// in the destination; the error is always a *TransformError.
func (e *Executor) Transform(ctx context.Context, inputPath string, speed float64) (string, error) {
	if err := naming.ValidateSpeed(speed); err != nil {
		return "", newError(KindEncodeFailed, inputPath, err, "%v", err)
	}
	speed = naming.NormalizeSpeed(speed)

	format, ok := media.FormatOf(inputPath)
	if !ok {
		return "", newError(KindUnsupportedFormat, inputPath, nil, "extension %q is not a supported audio format", filepath.Ext(inputPath))
	}

	fi, err := os.Stat(inputPath)
	if err != nil || !fi.Mode().IsRegular() {
		return "", newError(KindSourceMissing, inputPath, err, "source file not found")
	}

	bin, err := e.binary()
	if err != nil {
		return "", err
	}

	dest, err := e.dest(inputPath)
	if err != nil {
		return "", newError(KindEncodeFailed, inputPath, err, "%v", err)
	}
	name := OutputName(inputPath, speed)
	outPath := filepath.Join(dest.Dir(), name)
	if samePath(outPath, inputPath) {
		return "", newError(KindEncodeFailed, inputPath, nil, "output would overwrite the source")
	}

	_, err, _ = e.group.Do(outPath, func() (any, error) {
		if dest.Exists(name) && sizeOf(outPath) >= minOutputSize {
			return nil, nil
		}
		return nil, e.encode(ctx, Job{
			Binary:  bin,
			Input:   inputPath,
			Speed:   speed,
			Format:  format,
			Verbose: e.opts.Verbose,
		}, dest, name)
	})
	if err != nil {
		return "", err
	}
	return outPath, nil
}

// encode runs ffmpeg into a private temp directory and, on success, hands
// the bytes to dest. The temp directory is always removed.
func (e *Executor) encode(ctx context.Context, j Job, dest media.Store, name string) error {
	tmpDir, err := os.MkdirTemp("", "retempo-*")
	if err != nil {
		return newError(KindEncodeFailed, j.Input, err, "create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	j.Output = filepath.Join(tmpDir, "out"+filepath.Ext(name))
	args := Build(j)

	runCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	var stderr bytes.Buffer
	if e.opts.Verbose {
		cmd.Stderr = io.MultiWriter(&stderr, e.opts.Stderr)
	} else {
		cmd.Stderr = &stderr
	}

	err = cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return newError(KindEncodeFailed, j.Input, runCtx.Err(), "ffmpeg timed out after %s", e.opts.Timeout)
	}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return newError(KindExecutableNotFound, j.Binary, ErrExecutableNotFound, "%v", err)
		}
		return newError(classifyStderr(stderr.String()), j.Input, err, "%s", tailLines(stderr.String(), stderrTailLines))
	}

	if n := sizeOf(j.Output); n < minOutputSize {
		return newError(KindEncodeFailed, j.Input, nil, "output not created or too small (%d bytes)", n)
	}
	data, err := os.ReadFile(j.Output)
	if err != nil {
		return newError(KindEncodeFailed, j.Input, err, "read output: %v", err)
	}
	if err := dest.WriteFile(name, data); err != nil {
		return newError(KindEncodeFailed, j.Input, err, "store output: %v", err)
	}
	return nil
}

func (e *Executor) dest(input string) (media.Store, error) {
	if e.opts.Dest != nil {
		return e.opts.Dest, nil
	}
	return media.Open(filepath.Dir(input))
}

func sizeOf(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return fi.Size()
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
