// Package media is the media store adapter: a flat directory of files
// addressed by filename (the layout of an Anki "collection.media" folder).
// Filenames are compared in Unicode NFC, matching how the host stores them.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidName is returned for names that would escape the media
// directory or address a nested path.
var ErrInvalidName = errors.New("invalid media filename")

// Store is the media store contract consumed by the executor and the batch
// coordinator.
type Store interface {
	Exists(name string) bool
	WriteFile(name string, data []byte) error
	Dir() string
}

// Dir is a Store backed by a directory on disk.
type Dir struct {
	root string
}

// Open returns a Store rooted at dir, which must already exist.
func Open(dir string) (*Dir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("media directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("media directory: %s is not a directory", abs)
	}
	return &Dir{root: abs}, nil
}

// Normalize returns the canonical (NFC) spelling of a filename.
func Normalize(name string) string {
	return norm.NFC.String(name)
}

// Dir returns the absolute directory path.
func (d *Dir) Dir() string { return d.root }

// Path returns the absolute path of name inside the store.
func (d *Dir) Path(name string) (string, error) {
	name = Normalize(name)
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.root, name), nil
}

// Exists reports whether name is a regular file in the store.
func (d *Dir) Exists(name string) bool {
	p, err := d.Path(name)
	if err != nil {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

// WriteFile stores data under name. The write is atomic and durable: data
// lands in a temp file, is fsynced, then renamed over the final name, so a
// reader never observes a partial file.
func (d *Dir) WriteFile(name string, data []byte) error {
	p, err := d.Path(name)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write media %s: %w", name, err)
	}
	return nil
}
