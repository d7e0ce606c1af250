package ffmpeg

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStages(t *testing.T) {
	tests := []struct {
		speed float64
		want  []float64
	}{
		{1.0, []float64{1.0}},
		{1.2, []float64{1.2}},
		{0.5, []float64{0.5}},
		{2.0, []float64{2.0}},
		{2.5, []float64{2.0, 1.25}},
		{3.0, []float64{2.0, 1.5}},
		{4.0, []float64{2.0, 2.0}},
		{0.25, []float64{0.5, 0.5}},
	}
	for _, tt := range tests {
		got := Stages(tt.speed)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Stages(%v) mismatch (-want +got):\n%s", tt.speed, diff)
		}
	}
}

func TestStages_ProductAndRange(t *testing.T) {
	for s := 0.5; s <= 3.0001; s += 0.01 {
		stages := Stages(s)
		if len(stages) == 0 {
			t.Fatalf("Stages(%v) empty", s)
		}
		for _, st := range stages {
			if st < stageMin || st > stageMax {
				t.Errorf("Stages(%v) stage %v outside [%v, %v]", s, st, stageMin, stageMax)
			}
		}
		if p := Product(stages); math.Abs(p-s) > 1e-9 {
			t.Errorf("Product(Stages(%v)) = %v", s, p)
		}
	}
}

func TestStages_NonPositive(t *testing.T) {
	if got := Stages(0); got != nil {
		t.Errorf("Stages(0) = %v, want nil", got)
	}
}

func TestFilterChain(t *testing.T) {
	if got := FilterChain([]float64{2, 1.25}); got != "atempo=2,atempo=1.25" {
		t.Errorf("FilterChain = %q", got)
	}
	if got := FilterChain(Stages(1.2)); got != "atempo=1.2" {
		t.Errorf("FilterChain(1.2) = %q", got)
	}
}
