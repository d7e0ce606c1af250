// Package ffmpeg is the transform executor: it re-encodes one audio file at
// a new speed with ffmpeg's atempo filter (pitch preserved) and hands the
// result to a media store under a deterministic name.
//
// Files:
//   - stages.go: decomposition of a speed factor into atempo stages
//   - builder.go: ffmpeg argument construction per format
//   - errors.go: TransformError kinds and stderr classification
//   - locate.go: executable discovery (PATH, then well-known locations)
//   - executor.go: Executor.Transform / Preflight
package ffmpeg
