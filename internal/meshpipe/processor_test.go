package meshpipe

import (
	"errors"
	"testing"
)

func TestCacheKeyDeterministic(t *testing.T) {
	m := testTetra()
	params := map[string]any{"sigma": 1.0, "iterations": 2}
	k1 := cacheKey(m, AlgoGaussianFilter, params)
	k2 := cacheKey(m, AlgoGaussianFilter, map[string]any{"iterations": 2, "sigma": 1.0})
	if k1 != k2 {
		t.Error("cache key must not depend on parameter insertion order")
	}
	if len(k1) != 64 {
		t.Errorf("cache key length = %d, want 64 hex chars", len(k1))
	}
}

func TestCacheKeyVariesWithInputs(t *testing.T) {
	m := testTetra()
	base := cacheKey(m, AlgoGaussianFilter, map[string]any{"sigma": 1.0})

	if got := cacheKey(m, AlgoBilateralFilter, map[string]any{"sigma": 1.0}); got == base {
		t.Error("different algorithms must produce different keys")
	}
	if got := cacheKey(m, AlgoGaussianFilter, map[string]any{"sigma": 2.0}); got == base {
		t.Error("different parameters must produce different keys")
	}

	bigger := testGrid(4)
	if got := cacheKey(bigger, AlgoGaussianFilter, map[string]any{"sigma": 1.0}); got == base {
		t.Error("different mesh sizes must produce different keys")
	}
}

func TestNewProcessorCoversImplementedSteps(t *testing.T) {
	eng := newEngine(true)
	for _, step := range []Step{StepDenoise, StepDecimate, StepAlignment, StepRoiCrop, StepArchIsolate} {
		if _, ok := NewProcessor(StepConfig{Step: step, Algorithm: AlgorithmsForStep(step)[0]}, eng); !ok {
			t.Errorf("NewProcessor(%s) = false, want an implementation", step)
		}
	}
}

func TestNewProcessorHoleFillUnimplemented(t *testing.T) {
	_, ok := NewProcessor(StepConfig{Step: StepHoleFill, Algorithm: AlgoPoissonReconstruction}, newEngine(true))
	if ok {
		t.Error("hole_fill should report no implementation")
	}
}

func TestUnsupportedAlgorithmErrors(t *testing.T) {
	eng := newEngine(true)
	tests := []struct {
		step Step
		algo Algorithm
	}{
		{StepDenoise, Algorithm("median_filter")},
		{StepDecimate, Algorithm("quadric")},
		{StepAlignment, Algorithm("manual")},
		{StepRoiCrop, Algorithm("lasso")},
		{StepArchIsolate, AlgoMLSegmentation},
	}
	for _, tt := range tests {
		proc, ok := NewProcessor(StepConfig{Step: tt.step, Algorithm: tt.algo}, eng)
		if !ok {
			t.Fatalf("NewProcessor(%s) missing", tt.step)
		}
		_, _, err := proc.Process(testTetra())
		var uae *UnsupportedAlgorithmError
		if !errors.As(err, &uae) {
			t.Errorf("%s/%s: expected *UnsupportedAlgorithmError, got %v", tt.step, tt.algo, err)
			continue
		}
		if uae.Step != tt.step || uae.Algorithm != tt.algo {
			t.Errorf("error pairs %s/%s, want %s/%s", uae.Step, uae.Algorithm, tt.step, tt.algo)
		}
	}
}

func TestProcessorStepIdentity(t *testing.T) {
	eng := newEngine(true)
	for _, step := range []Step{StepDenoise, StepDecimate, StepAlignment, StepRoiCrop, StepArchIsolate} {
		proc, _ := NewProcessor(StepConfig{Step: step, Algorithm: AlgorithmsForStep(step)[0]}, eng)
		if proc.Step() != step {
			t.Errorf("processor for %s reports step %s", step, proc.Step())
		}
	}
}
