package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyStderr(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   Kind
	}{
		{"invalid data", "in.mp3: Invalid data found when processing input", KindUnsupportedFormat},
		{"unknown encoder", "Unknown encoder 'libfoo'", KindUnsupportedFormat},
		{"missing decoder", "Decoder (codec none) not found for input stream #0:0", KindUnsupportedFormat},
		{"missing file", "in.mp3: No such file or directory", KindSourceMissing},
		{"generic", "Conversion failed!", KindEncodeFailed},
		{"empty", "", KindEncodeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStderr(tt.stderr); got != tt.want {
				t.Errorf("classifyStderr(%q) = %s, want %s", tt.stderr, got, tt.want)
			}
		})
	}
}

func TestTransformError(t *testing.T) {
	err := newError(KindExecutableNotFound, "/opt/ffmpeg", ErrExecutableNotFound, "not on PATH")
	if got := err.Error(); got != "ExecutableNotFound /opt/ffmpeg: not on PATH" {
		t.Errorf("Error() = %q", got)
	}
	wrapped := fmt.Errorf("preflight: %w", err)
	if !errors.Is(wrapped, ErrExecutableNotFound) {
		t.Error("errors.Is(ErrExecutableNotFound) = false")
	}
	if KindOf(wrapped) != KindExecutableNotFound {
		t.Errorf("KindOf = %s", KindOf(wrapped))
	}
	if KindOf(errors.New("other")) != KindEncodeFailed {
		t.Error("foreign errors should default to EncodeFailed")
	}
}

func TestTailLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	got := tailLines(b.String(), 3)
	if got != "line 27\nline 28\nline 29" {
		t.Errorf("tailLines = %q", got)
	}
	if tailLines("one", 5) != "one" {
		t.Error("short input should be returned unchanged")
	}
}
