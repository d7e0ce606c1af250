package ffmpeg

import (
	"strconv"
	"strings"
)

// Range of a single atempo filter instance. Factors outside it are reached
// by chaining instances.
const (
	stageMin = 0.5
	stageMax = 2.0
)

// Stages decomposes speed into atempo factors, each within [0.5, 2.0],
// whose product is speed. Whole 2.0 (or 0.5) stages are peeled off first and
// the remainder carries the rest.
func Stages(speed float64) []float64 {
	if speed <= 0 {
		return nil
	}
	var stages []float64
	rest := speed
	for rest > stageMax {
		stages = append(stages, stageMax)
		rest /= stageMax
	}
	for rest < stageMin {
		stages = append(stages, stageMin)
		rest /= stageMin
	}
	if rest != 1 || len(stages) == 0 {
		stages = append(stages, rest)
	}
	return stages
}

// Product multiplies stages back together.
func Product(stages []float64) float64 {
	p := 1.0
	for _, s := range stages {
		p *= s
	}
	return p
}

// FilterChain renders stages as an ffmpeg audio filter graph
// ("atempo=2,atempo=1.25").
func FilterChain(stages []float64) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = "atempo=" + strconv.FormatFloat(s, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
