package ffmpeg

import (
	"github.com/backmassage/retempo/internal/media"
)

// Job is one ffmpeg invocation: re-encode Input into Output at Speed.
type Job struct {
	Binary  string
	Input   string
	Output  string
	Speed   float64
	Format  media.Format
	Verbose bool
}

// Build constructs the complete ffmpeg argument slice (argv[0] included).
// Layout: preamble, input, audio filter chain, codec arguments, output.
func Build(j Job) []string {
	args := make([]string, 0, 24)

	// --- Preamble ---
	args = append(args, j.Binary, "-hide_banner", "-nostdin", "-y")
	if j.Verbose {
		args = append(args, "-loglevel", "info")
	} else {
		args = append(args, "-loglevel", "error")
	}

	// --- Input ---
	args = append(args, "-i", j.Input)

	// --- Time-stretch (pitch preserving) ---
	args = append(args, "-filter:a", FilterChain(Stages(j.Speed)))

	// --- Codec ---
	args = append(args, codecArgs(j.Format)...)

	// --- Metadata ---
	args = append(args, "-map_metadata", "0")

	// --- Output ---
	args = append(args, j.Output)
	return args
}

// codecArgs picks an encoder matching the input container so the output
// format mirrors the input. Video containers keep their video stream as-is.
func codecArgs(f media.Format) []string {
	switch f {
	case media.FormatWAV:
		return []string{"-c:a", "pcm_s16le"}
	case media.FormatOGG:
		return []string{"-c:a", "libvorbis", "-q:a", "6"}
	case media.FormatM4A:
		return []string{"-c:a", "aac", "-b:a", "192k"}
	case media.FormatMP4:
		return []string{"-c:a", "aac", "-b:a", "192k", "-c:v", "copy"}
	case media.FormatWebM:
		// WebM cannot carry AAC; Opus is its native audio codec.
		return []string{"-c:a", "libopus", "-b:a", "128k", "-c:v", "copy"}
	default: // media.FormatMP3
		return []string{"-c:a", "libmp3lame", "-q:a", "2"}
	}
}

// Encoders lists the audio encoders the codec table relies on, one per
// distinct encoder, in format order.
func Encoders() []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range media.Formats() {
		args := codecArgs(f)
		for i := 0; i+1 < len(args); i++ {
			if args[i] == "-c:a" && !seen[args[i+1]] {
				seen[args[i+1]] = true
				out = append(out, args[i+1])
			}
		}
	}
	return out
}
