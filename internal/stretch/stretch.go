// Package stretch time-stretches synthesized audio without changing its
// sample rate: a phase-vocoder quality tier built on algo-dsp's STFT
// primitives, and a linear-interpolation fallback tier for when quality is
// traded for speed.
package stretch

import (
	"fmt"
	"math"

	dsp "github.com/cwbudde/algo-dsp"
)

// Quality selects the stretching algorithm.
type Quality string

const (
	// QualityPhaseVocoder preserves pitch and timbre; the default.
	QualityPhaseVocoder Quality = "phase_vocoder"
	// QualityLinear is a cheap fallback: linear interpolation resampling,
	// used when CPU budget matters more than artifact-free output.
	QualityLinear Quality = "linear"
)

const (
	// MinRatePercent and MaxRatePercent bound the configurable rate R.
	MinRatePercent = 10
	MaxRatePercent = 100

	// MinAutoEnableThreshold and MaxAutoEnableThreshold bound the
	// configurable chunk-length floor below which time-stretching is
	// skipped even when a request requests it.
	MinAutoEnableThreshold = 20
	MaxAutoEnableThreshold = 50

	defaultFFTSize = 1024
	defaultHopSize = defaultFFTSize / 4
)

// ClampAutoEnableThreshold clamps n to
// [MinAutoEnableThreshold,MaxAutoEnableThreshold].
func ClampAutoEnableThreshold(n int) int {
	if n < MinAutoEnableThreshold {
		return MinAutoEnableThreshold
	}
	if n > MaxAutoEnableThreshold {
		return MaxAutoEnableThreshold
	}
	return n
}

// Stretch changes the duration of samples by 1/ratio while leaving the
// sample rate unchanged: ratio > 1 speeds audio up (shorter output), ratio <
// 1 slows it down (longer output). It is a pure function of its arguments.
func Stretch(samples []float32, sampleRate int, ratio float64, quality Quality) ([]float32, error) {
	if len(samples) == 0 {
		return samples, nil
	}
	if ratio <= 0 {
		return nil, fmt.Errorf("stretch: ratio must be positive, got %v", ratio)
	}
	if ratio == 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}

	switch quality {
	case QualityLinear, "":
		return linearStretch(samples, ratio), nil
	case QualityPhaseVocoder:
		return phaseVocoderStretch(samples, ratio)
	default:
		return nil, fmt.Errorf("stretch: unknown quality %q", quality)
	}
}

// RatioFromPercent converts a rate R in [MinRatePercent,MaxRatePercent] into
// the speed multiplier (1 + R/100) the scheduler applies before inference,
// clamping out-of-range values.
func RatioFromPercent(r int) float64 {
	if r < MinRatePercent {
		r = MinRatePercent
	}
	if r > MaxRatePercent {
		r = MaxRatePercent
	}
	return 1 + float64(r)/100
}

func linearStretch(samples []float32, ratio float64) []float32 {
	outLen := int(float64(len(samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float32, outLen)
	lastIdx := float64(len(samples) - 1)

	for i := range out {
		srcPos := float64(i) * ratio
		if srcPos > lastIdx {
			srcPos = lastIdx
		}

		lo := int(srcPos)
		hi := lo + 1
		if hi > int(lastIdx) {
			hi = int(lastIdx)
		}

		frac := srcPos - float64(lo)
		out[i] = samples[lo]*float32(1-frac) + samples[hi]*float32(frac)
	}

	return out
}

// phaseVocoderStretch resamples the frame hop while holding the FFT window
// fixed, re-synthesizing phase continuity across frames via accumulated
// phase advance. The analysis hop is a quarter of the FFT size; the synthesis hop
// is scaled by ratio to change duration without affecting pitch.
func phaseVocoderStretch(samples []float32, ratio float64) ([]float32, error) {
	fftSize := defaultFFTSize
	if len(samples) < fftSize {
		fftSize = nextPowerOfTwo(len(samples))
		if fftSize < 4 {
			fftSize = 4
		}
	}
	analysisHop := fftSize / 4
	synthesisHop := int(float64(analysisHop) / ratio)
	if synthesisHop < 1 {
		synthesisHop = 1
	}

	window := dsp.HannWindow(fftSize)

	frames, err := dsp.STFT(samples, window, analysisHop)
	if err != nil {
		return nil, fmt.Errorf("stretch: stft: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("stretch: no frames produced for %d samples", len(samples))
	}

	bins := len(frames[0])
	lastPhase := make([]float64, bins)
	phaseAccum := make([]float64, bins)
	outFrames := make([][]complex128, len(frames))

	expectedAdvance := make([]float64, bins)
	for k := range expectedAdvance {
		expectedAdvance[k] = 2 * math.Pi * float64(k) * float64(analysisHop) / float64(fftSize)
	}

	for i, frame := range frames {
		outFrame := make([]complex128, bins)
		for k, c := range frame {
			mag := math.Hypot(real(c), imag(c))
			phase := math.Atan2(imag(c), real(c))

			delta := phase - lastPhase[k] - expectedAdvance[k]
			delta = wrapPhase(delta)
			trueFreq := expectedAdvance[k] + delta

			if i == 0 {
				phaseAccum[k] = phase
			} else {
				phaseAccum[k] += trueFreq * (float64(synthesisHop) / float64(analysisHop))
			}

			lastPhase[k] = phase
			outFrame[k] = complex(mag*math.Cos(phaseAccum[k]), mag*math.Sin(phaseAccum[k]))
		}
		outFrames[i] = outFrame
	}

	out, err := dsp.ISTFT(outFrames, window, synthesisHop)
	if err != nil {
		return nil, fmt.Errorf("stretch: istft: %w", err)
	}

	return out, nil
}

func wrapPhase(p float64) float64 {
	for p > math.Pi {
		p -= 2 * math.Pi
	}
	for p < -math.Pi {
		p += 2 * math.Pi
	}
	return p
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
