package ffmpeg

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies a transform failure.
type Kind string

const (
	KindExecutableNotFound Kind = "ExecutableNotFound"
	KindUnsupportedFormat  Kind = "UnsupportedFormat"
	KindSourceMissing      Kind = "SourceMissing"
	KindEncodeFailed       Kind = "EncodeFailed"
)

// ErrExecutableNotFound is wrapped by every ExecutableNotFound
// TransformError so callers can test with errors.Is.
var ErrExecutableNotFound = errors.New("ffmpeg executable not found")

// TransformError is the only error type returned by Executor.Transform.
type TransformError struct {
	Kind   Kind
	Path   string
	Detail string
	Err    error
}

func (e *TransformError) Error() string {
	msg := string(e.Kind)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TransformError) Unwrap() error { return e.Err }

// KindOf extracts the Kind of err, defaulting to EncodeFailed for errors
// that did not originate here.
func KindOf(err error) Kind {
	var te *TransformError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindEncodeFailed
}

func newError(kind Kind, path string, err error, format string, args ...any) *TransformError {
	return &TransformError{Kind: kind, Path: path, Detail: fmt.Sprintf(format, args...), Err: err}
}

// Pre-compiled regexes for classifying ffmpeg stderr. A decoder or muxer
// that rejects the input is reported as UnsupportedFormat; everything else
// is a plain encode failure.
var (
	reUnsupported = regexp.MustCompile(
		`(?i)Invalid data found when processing input|` +
			`Unable to find a suitable output format|` +
			`Unknown (encoder|decoder)|` +
			`Could not find codec parameters|` +
			`Decoder .* not found|Encoder .* not found|` +
			`codec not currently supported in container`)

	reSourceMissing = regexp.MustCompile(`No such file or directory`)
)

// classifyStderr maps ffmpeg diagnostics to a failure kind.
func classifyStderr(stderr string) Kind {
	switch {
	case reUnsupported.MatchString(stderr):
		return KindUnsupportedFormat
	case reSourceMissing.MatchString(stderr):
		return KindSourceMissing
	default:
		return KindEncodeFailed
	}
}

// tailLines keeps the last n lines of stderr for error details.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
