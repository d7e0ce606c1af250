package probe

import (
	"math"
	"time"
)

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename   string
	FormatName string
	Duration   float64
	Size       int64
	BitRate    int64
	Tags       map[string]string
}

// AudioStream holds the parsed properties of a single audio stream.
type AudioStream struct {
	Index         int
	Codec         string
	Channels      int
	ChannelLayout string
	SampleRate    int
	BitRate       int64
	Duration      float64
}

// Result is the parsed output of one ffprobe call. HasVideo is true when a
// real video stream (not cover art) is present.
type Result struct {
	Format   FormatInfo
	Audio    []AudioStream
	HasVideo bool
}

// PrimaryAudio returns the first audio stream, or nil.
func (r *Result) PrimaryAudio() *AudioStream {
	if len(r.Audio) == 0 {
		return nil
	}
	return &r.Audio[0]
}

// Duration returns the container duration, falling back to the primary
// audio stream when the container does not report one.
func (r *Result) Duration() time.Duration {
	secs := r.Format.Duration
	if secs <= 0 {
		if a := r.PrimaryAudio(); a != nil {
			secs = a.Duration
		}
	}
	return time.Duration(math.Round(secs * float64(time.Second)))
}

// Ratio returns how much faster other plays compared to r (source/output
// duration). Zero when either duration is unknown.
func (r *Result) Ratio(other *Result) float64 {
	src, dst := r.Duration(), other.Duration()
	if src <= 0 || dst <= 0 {
		return 0
	}
	return float64(src) / float64(dst)
}
