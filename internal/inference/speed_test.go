package inference

import "testing"

func TestLinearSpeedFallback_RatioOneIsNoOp(t *testing.T) {
	in := []float32{1, 2, 3}
	out := LinearSpeedFallback(in, 1.0)
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
}

func TestLinearSpeedFallback_FasterShortensOutput(t *testing.T) {
	in := make([]float32, 1000)
	out := LinearSpeedFallback(in, 2.0)
	if len(out) >= len(in) {
		t.Fatalf("len(out) = %d, want shorter than %d for 2x speed", len(out), len(in))
	}
}

func TestLinearSpeedFallback_SlowerLengthensOutput(t *testing.T) {
	in := make([]float32, 1000)
	out := LinearSpeedFallback(in, 0.5)
	if len(out) <= len(in) {
		t.Fatalf("len(out) = %d, want longer than %d for 0.5x speed", len(out), len(in))
	}
}

func TestLinearSpeedFallback_EmptyInputUnchanged(t *testing.T) {
	out := LinearSpeedFallback(nil, 2.0)
	if out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
}
