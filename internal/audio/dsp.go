package audio

import "math"

// PeakNormalize scales samples so the peak amplitude reaches 1.0, preserving
// relative amplitudes. Silent (all-zero) input is returned unchanged.
func PeakNormalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return samples
	}

	out := make([]float32, len(samples))
	scale := 1 / peak
	for i, s := range samples {
		out[i] = s * scale
	}
	return out
}

// dcBlockPole is the one-pole filter's cutoff; close to 1 removes slow DC
// drift while leaving audible content (anything above a few tens of Hz)
// untouched.
const dcBlockPole = 0.995

// DCBlock removes DC offset from samples with a one-pole high-pass filter:
// y[n] = x[n] - x[n-1] + R*y[n-1].
func DCBlock(samples []float32, sampleRate int) []float32 {
	out := make([]float32, len(samples))
	var prevIn, prevOut float32
	for i, s := range samples {
		y := s - prevIn + dcBlockPole*prevOut
		out[i] = y
		prevIn = s
		prevOut = y
	}
	return out
}

// FadeIn applies a linear fade-in ramp over the given duration in milliseconds.
func FadeIn(samples []float32, sampleRate int, ms float64) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)

	fadeSamples := int(ms / 1000.0 * float64(sampleRate))
	if fadeSamples <= 0 {
		return out
	}
	if fadeSamples > len(out) {
		fadeSamples = len(out)
	}

	for i := 0; i < fadeSamples; i++ {
		out[i] *= float32(i) / float32(fadeSamples)
	}
	return out
}

// FadeOut applies a linear fade-out ramp over the given duration in milliseconds.
func FadeOut(samples []float32, sampleRate int, ms float64) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)

	fadeSamples := int(ms / 1000.0 * float64(sampleRate))
	if fadeSamples <= 0 {
		return out
	}
	if fadeSamples > len(out) {
		fadeSamples = len(out)
	}

	start := len(out) - fadeSamples
	for i := start; i < len(out); i++ {
		remaining := len(out) - 1 - i
		out[i] *= float32(remaining) / float32(fadeSamples)
	}
	return out
}
