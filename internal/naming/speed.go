package naming

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/backmassage/retempo/internal/config"
)

// Errors returned by [ValidateSpeed].
var (
	ErrSpeedOutOfRange = errors.New("speed out of range")
	ErrSpeedPrecision  = errors.New("speed has more than two decimals")
)

// speedSuffix matches a previously applied suffix: "_1.2x.mp3", "_2.0x.wav".
var speedSuffix = regexp.MustCompile(`_(\d+\.\d+)x(\.[A-Za-z0-9]+)$`)

// NormalizeSpeed rounds speed to two decimals so that slider arithmetic
// (1.2000000000000002) cannot leak into filenames or undo keys. Callers
// validate the raw speed first; see [ValidateSpeed].
func NormalizeSpeed(speed float64) float64 {
	return math.Round(speed*100) / 100
}

// ValidateSpeed checks that speed is finite, inside the supported band and
// exact at two decimals, so rounding never changes the encoded factor.
func ValidateSpeed(speed float64) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed < config.MinSpeed || speed > config.MaxSpeed {
		return fmt.Errorf("%w: %v (want %.1f-%.1f)", ErrSpeedOutOfRange, speed, config.MinSpeed, config.MaxSpeed)
	}
	if !config.SpeedExact(speed) {
		return fmt.Errorf("%w: %v", ErrSpeedPrecision, speed)
	}
	return nil
}

// FormatSpeed renders speed for filenames: always at least one decimal
// (2 -> "2.0"), never more than needed (1.25 -> "1.25").
func FormatSpeed(speed float64) string {
	s := strconv.FormatFloat(NormalizeSpeed(speed), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// SpeedFilename returns the output filename for name at speed. Directory
// components are preserved; an existing speed suffix is replaced.
func SpeedFilename(name string, speed float64) string {
	dir, base := filepath.Split(name)
	stem := StripSpeed(base)
	ext := filepath.Ext(stem)
	stem = strings.TrimSuffix(stem, ext)
	return dir + stem + "_" + FormatSpeed(speed) + "x" + ext
}

// StripSpeed removes a speed suffix from name, if present.
func StripSpeed(name string) string {
	m := speedSuffix.FindStringSubmatchIndex(name)
	if m == nil {
		return name
	}
	// Keep everything before the suffix plus the extension.
	return name[:m[0]] + name[m[4]:m[5]]
}

// ParseSpeed extracts the speed from a suffixed filename.
func ParseSpeed(name string) (float64, bool) {
	m := speedSuffix.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SameSpeed compares two speeds after normalization.
func SameSpeed(a, b float64) bool {
	return NormalizeSpeed(a) == NormalizeSpeed(b)
}

// Speed bounds, re-exported for callers that validate before configuring.
const (
	MinSpeed         = config.MinSpeed
	MaxSpeed         = config.MaxSpeed
	QualityWarnSpeed = config.QualityWarnSpeed
)

// NeedsQualityWarning reports speeds accepted but likely to sound degraded.
func NeedsQualityWarning(speed float64) bool {
	return NormalizeSpeed(speed) > QualityWarnSpeed
}
