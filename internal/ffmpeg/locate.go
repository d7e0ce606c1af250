package ffmpeg

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// candidates lists well-known install locations checked after PATH; the
// host application bundles its own ffmpeg on macOS and Windows.
func candidates(name string) []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Anki.app/Contents/MacOS/" + name,
			"/opt/homebrew/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "windows":
		return []string{
			filepath.Join(os.Getenv("LOCALAPPDATA"), "Programs", "Anki", name+".exe"),
			filepath.Join(os.Getenv("PROGRAMFILES"), "Anki", name+".exe"),
		}
	default:
		return []string{"/usr/bin/" + name, "/usr/local/bin/" + name}
	}
}

// Locate resolves an executable. An explicit value containing a path
// separator must point at an existing file; a bare name (or empty, meaning
// name) is looked up on PATH and then in well-known locations.
func Locate(name, explicit string) (string, error) {
	if explicit != "" && strings.ContainsAny(explicit, `/\`) {
		if isExecutable(explicit) {
			return explicit, nil
		}
		return "", exec.ErrNotFound
	}
	lookup := name
	if explicit != "" {
		lookup = explicit
	}
	if p, err := exec.LookPath(lookup); err == nil {
		return p, nil
	}
	if explicit != "" {
		return "", exec.ErrNotFound
	}
	for _, c := range candidates(name) {
		if isExecutable(c) {
			return c, nil
		}
	}
	return "", exec.ErrNotFound
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return fi.Mode()&0o111 != 0
}
