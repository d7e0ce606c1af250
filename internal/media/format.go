package media

import (
	"path/filepath"
	"strings"
)

// Format is a supported media container, identified by file extension.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatOGG  Format = "ogg"
	FormatM4A  Format = "m4a"
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
)

var formatsByExt = map[string]Format{
	".mp3":  FormatMP3,
	".wav":  FormatWAV,
	".ogg":  FormatOGG,
	".m4a":  FormatM4A,
	".mp4":  FormatMP4,
	".webm": FormatWebM,
}

// Formats lists the supported formats in a stable order.
func Formats() []Format {
	return []Format{FormatMP3, FormatWAV, FormatOGG, FormatM4A, FormatMP4, FormatWebM}
}

// FormatOf returns the format of name based on its extension
// (case-insensitive).
func FormatOf(name string) (Format, bool) {
	f, ok := formatsByExt[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// HasVideo reports whether the container may carry a video stream that has
// to be copied through untouched.
func (f Format) HasVideo() bool {
	return f == FormatMP4 || f == FormatWebM
}
