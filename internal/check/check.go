// Package check provides the diagnostics behind `retempo check`: ffmpeg and
// ffprobe discovery, the atempo filter, the encoders of the codec table and
// the integrity of the SQLite databases.
package check

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/backmassage/retempo/internal/ffmpeg"
	"github.com/backmassage/retempo/internal/persistence/sqlite"
)

// Sentinel errors attached to failed results.
var (
	ErrFFmpegNotFound  = errors.New("ffmpeg not found")
	ErrFFprobeNotFound = errors.New("ffprobe not found")
	ErrAtempoMissing   = errors.New("ffmpeg build lacks the atempo filter")
	ErrAtempoFailed    = errors.New("atempo test encode failed")
)

// commandTimeout bounds every ffmpeg invocation made by a check.
const commandTimeout = 20 * time.Second

// Logger is the minimal logging interface needed by Run.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// Status grades one check.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Result is one line of the report.
type Result struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
	Err    error  `json:"-"`
}

// Report is the outcome of Run.
type Report struct {
	FFmpeg  string   `json:"ffmpeg,omitempty"`
	Results []Result `json:"results"`
}

// OK reports whether no check failed. Warnings do not count.
func (r *Report) OK() bool {
	for _, res := range r.Results {
		if res.Status == StatusFail {
			return false
		}
	}
	return true
}

// Options selects what Run inspects. Empty database paths are skipped.
type Options struct {
	FFmpeg     string
	FFprobe    string
	UndoDB     string
	Collection string
}

// Run executes every check and logs each result. It is informational: a
// failing check never stops the following ones.
func Run(ctx context.Context, opts Options, log Logger) *Report {
	log.Info("=== System Check ===")
	rep := &Report{}
	add := func(res Result) {
		rep.Results = append(rep.Results, res)
		switch res.Status {
		case StatusOK:
			log.Success("%s: %s", res.Name, res.Detail)
		case StatusWarn:
			log.Warn("%s: %s", res.Name, res.Detail)
		default:
			log.Error("%s: %s", res.Name, res.Detail)
		}
	}

	bin, res := checkFFmpeg(ctx, opts.FFmpeg)
	add(res)
	add(checkFFprobe(opts.FFprobe))
	if bin != "" {
		rep.FFmpeg = bin
		add(checkAtempo(ctx, bin))
		for _, r := range checkEncoders(ctx, bin) {
			add(r)
		}
	}
	for _, db := range []struct{ name, path string }{
		{"undo log", opts.UndoDB},
		{"collection", opts.Collection},
	} {
		if r, ok := checkDatabase(db.name, db.path); ok {
			add(r)
		}
	}
	return rep
}

// checkFFmpeg locates ffmpeg and reports its version string.
func checkFFmpeg(ctx context.Context, explicit string) (string, Result) {
	res := Result{Name: "ffmpeg"}
	bin, err := ffmpeg.Locate("ffmpeg", explicit)
	if err != nil {
		res.Status, res.Err = StatusFail, ErrFFmpegNotFound
		res.Detail = "not found (install ffmpeg or pass --ffmpeg)"
		return "", res
	}
	out, err := output(ctx, bin, "-version")
	if err != nil {
		res.Status, res.Err = StatusFail, err
		res.Detail = bin + ": -version failed: " + err.Error()
		return "", res
	}
	firstLine := strings.TrimSpace(out)
	if idx := strings.Index(firstLine, "\n"); idx > 0 {
		firstLine = firstLine[:idx]
	}
	res.Status, res.Detail = StatusOK, firstLine+" ("+bin+")"
	return bin, res
}

// checkFFprobe is a warning only: ffprobe is used for preview durations.
func checkFFprobe(explicit string) Result {
	res := Result{Name: "ffprobe"}
	bin, err := ffmpeg.Locate("ffprobe", explicit)
	if err != nil {
		res.Status, res.Err = StatusWarn, ErrFFprobeNotFound
		res.Detail = "not found; previews will omit durations"
		return res
	}
	res.Status, res.Detail = StatusOK, bin
	return res
}

// checkAtempo verifies the filter is compiled in and runs a short encode
// through a chained atempo filter.
func checkAtempo(ctx context.Context, bin string) Result {
	res := Result{Name: "atempo"}
	out, err := output(ctx, bin, "-hide_banner", "-filters")
	if err != nil || !hasListed(out, "atempo") {
		res.Status, res.Err = StatusFail, ErrAtempoMissing
		res.Detail = ErrAtempoMissing.Error()
		return res
	}
	if !runSilent(ctx, bin,
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=1000:duration=0.5",
		"-filter:a", ffmpeg.FilterChain(ffmpeg.Stages(2.5)),
		"-f", "null", "-",
	) {
		res.Status, res.Err = StatusFail, ErrAtempoFailed
		res.Detail = ErrAtempoFailed.Error()
		return res
	}
	res.Status, res.Detail = StatusOK, "filter available"
	return res
}

// checkEncoders reports each encoder of the codec table. A missing encoder
// only affects its own format, so it is a warning.
func checkEncoders(ctx context.Context, bin string) []Result {
	out, err := output(ctx, bin, "-hide_banner", "-encoders")
	if err != nil {
		return []Result{{Name: "encoders", Status: StatusWarn, Detail: "could not list encoders: " + err.Error(), Err: err}}
	}
	var results []Result
	for _, enc := range ffmpeg.Encoders() {
		r := Result{Name: "encoder " + enc, Status: StatusOK, Detail: "available"}
		if !hasListed(out, enc) {
			r.Status, r.Detail = StatusWarn, "missing"
		}
		results = append(results, r)
	}
	return results
}

// checkDatabase runs a quick integrity check. ok is false when the
// database is not configured or does not exist yet.
func checkDatabase(name, path string) (Result, bool) {
	if path == "" || path == sqlite.Memory {
		return Result{}, false
	}
	if _, err := os.Stat(path); err != nil {
		return Result{}, false
	}
	res := Result{Name: name}
	issues, err := sqlite.VerifyIntegrity(path, "quick")
	switch {
	case err != nil:
		res.Status, res.Err, res.Detail = StatusFail, err, err.Error()
	case len(issues) > 0:
		res.Status, res.Detail = StatusFail, strings.Join(issues, "; ")
	default:
		res.Status, res.Detail = StatusOK, path+": integrity ok"
	}
	return res, true
}

// hasListed reports whether name appears as a whole word in ffmpeg's
// -filters or -encoders listing.
func hasListed(listing, name string) bool {
	for _, line := range strings.Split(listing, "\n") {
		for _, f := range strings.Fields(line) {
			if f == name {
				return true
			}
		}
	}
	return false
}

func output(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

// runSilent runs a command and returns true if it exits with status 0.
// Both stdout and stderr are discarded.
func runSilent(ctx context.Context, name string, args ...string) bool {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run() == nil
}
