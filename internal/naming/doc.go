// Package naming derives output filenames for transformed media.
//
// A transformed file keeps the stem and extension of its source and gains a
// speed suffix: "orig.mp3" at 1.5x becomes "orig_1.5x.mp3". Any existing
// suffix is stripped first, so the name always states the speed relative to
// the untouched original.
package naming
