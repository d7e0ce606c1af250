// Package probe inspects audio files with a single ffprobe JSON call. The
// preview command uses it to report source and output durations so the
// effective speed of a transform can be checked by ear and by number.
package probe
