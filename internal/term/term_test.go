package term

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/backmassage/retempo/internal/config"
)

func TestEnabled_ExplicitModes(t *testing.T) {
	if !Enabled(config.ColorAlways, nil) {
		t.Error("always should enable colors")
	}
	if Enabled(config.ColorNever, os.Stderr) {
		t.Error("never should disable colors")
	}
}

func TestEnabled_AutoOnRegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if Enabled(config.ColorAuto, f) {
		t.Error("auto should not enable colors for a regular file")
	}
}

func TestIsTerminal_Nil(t *testing.T) {
	if IsTerminal(nil) {
		t.Error("nil file is not a terminal")
	}
}
