// Package markup finds and rewrites embedded media references in record
// field text. A reference is recognized only through the marker syntax
// "[sound:<filename>]"; a bare filename elsewhere in the text is never
// touched.
package markup

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	markerOpen  = "[sound:"
	markerClose = "]"
)

var (
	// ErrTargetPresent is returned by Rewrite when the replacement marker
	// already occurs in the text; rewriting would make the change
	// impossible to reverse exactly.
	ErrTargetPresent = errors.New("target reference already present")

	// ErrInvalidFilename is returned for names that cannot live inside a
	// marker.
	ErrInvalidFilename = errors.New("filename cannot be embedded in a marker")
)

// Reference is one marker occurrence. Start and End are byte offsets of the
// whole marker within the field text.
type Reference struct {
	Filename string
	Start    int
	End      int
}

// Marker renders the marker for filename.
func Marker(filename string) string {
	return markerOpen + filename + markerClose
}

// soundTag matches "[sound:" followed by one or more characters other than
// ']' and a closing ']'. Matches never overlap.
var soundTag = regexp.MustCompile(`\[sound:([^\]]+)\]`)

// FindReferences returns every marker in text, in order.
func FindReferences(text string) []Reference {
	matches := soundTag.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, Reference{Filename: text[m[2]:m[3]], Start: m[0], End: m[1]})
	}
	return refs
}

// Filenames returns the distinct filenames referenced by text in order of
// first appearance.
func Filenames(text string) []string {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	for _, r := range FindReferences(text) {
		if !seen[r.Filename] {
			seen[r.Filename] = true
			out = append(out, r.Filename)
		}
	}
	return out
}

// Contains reports whether text references filename.
func Contains(text, filename string) bool {
	for _, r := range FindReferences(text) {
		if r.Filename == filename {
			return true
		}
	}
	return false
}

// Rewrite replaces every reference to from with a reference to to and
// returns the new text and the number of markers replaced. Zero matches
// returns text unchanged. The call is refused with ErrTargetPresent when
// text already references to, which keeps
// Rewrite(Rewrite(t, a, b), b, a) == t for every successful first call.
func Rewrite(text, from, to string) (string, int, error) {
	if err := validName(to); err != nil {
		return text, 0, err
	}
	if from == to {
		return text, 0, nil
	}
	refs := FindReferences(text)
	matched := false
	for _, r := range refs {
		switch r.Filename {
		case to:
			return text, 0, fmt.Errorf("%w: %s", ErrTargetPresent, to)
		case from:
			matched = true
		}
	}
	if !matched {
		return text, 0, nil
	}
	out, n := replace(text, refs, from, to)
	return out, n, nil
}

// Replace is Rewrite without the target-present guard. Undo uses it: when a
// user re-added the original reference after a batch, reverting still has
// to turn the transformed reference back.
func Replace(text, from, to string) (string, int) {
	if from == to {
		return text, 0
	}
	return replace(text, FindReferences(text), from, to)
}

func replace(text string, refs []Reference, from, to string) (string, int) {
	var (
		b    strings.Builder
		last int
		n    int
	)
	for _, r := range refs {
		if r.Filename != from {
			continue
		}
		if n == 0 {
			b.Grow(len(text))
		}
		b.WriteString(text[last:r.Start])
		b.WriteString(Marker(to))
		last = r.End
		n++
	}
	if n == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), n
}

func validName(name string) error {
	if name == "" || strings.Contains(name, markerClose) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}
