package inference

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

const (
	inputTokens = "input_ids"
	inputStyle  = "style"
	inputSpeed  = "speed"
	outputAudio = "audio"
)

const (
	// MinSpeed and MaxSpeed bound the speed scalar the graph will accept.
	MinSpeed = 0.1
	MaxSpeed = 3.0
)

// Engine drives the single acoustic graph: token ids, a style vector, and a
// speed scalar in; raw float32 audio samples out.
type Engine struct {
	r         *runner
	vocabSize int
}

// NewEngine loads the acoustic ONNX graph at cfg.ModelPath. vocabSize bounds
// the token ids Synthesize will accept; pass 0 to skip that check (e.g. in
// tests against a stand-in graph).
func NewEngine(cfg RunnerConfig, vocabSize int) (*Engine, error) {
	r, err := newRunner(cfg)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	return &Engine{r: r, vocabSize: vocabSize}, nil
}

// Close releases the underlying ORT session. Safe to call multiple times.
func (e *Engine) Close() {
	if e.r != nil {
		e.r.close()
	}
}

// Synthesize runs the acoustic graph once and returns sanitized 1-D audio
// samples. It validates inputs before running the graph and the output
// before returning it; it never retries a failed run.
func (e *Engine) Synthesize(ctx context.Context, tokens []int64, style []float32, speed float32) ([]float32, error) {
	if err := e.validateInputs(tokens, style, speed); err != nil {
		return nil, err
	}

	tokenTensor, err := NewTensor(tokens, []int64{1, int64(len(tokens))})
	if err != nil {
		return nil, fmt.Errorf("%w: token tensor: %v", ErrInputValidation, err)
	}

	styleTensor, err := NewTensor(style, []int64{1, int64(len(style))})
	if err != nil {
		return nil, fmt.Errorf("%w: style tensor: %v", ErrInputValidation, err)
	}

	speedTensor, err := NewTensor([]float32{speed}, []int64{1})
	if err != nil {
		return nil, fmt.Errorf("%w: speed tensor: %v", ErrInputValidation, err)
	}

	outputs, err := e.r.run(ctx, map[string]*Tensor{
		inputTokens: tokenTensor,
		inputStyle:  styleTensor,
		inputSpeed:  speedTensor,
	})
	if err != nil {
		return nil, err
	}

	audioTensor, ok := outputs[outputAudio]
	if !ok {
		return nil, fmt.Errorf("%w: graph did not return %q output", ErrInferenceFailure, outputAudio)
	}

	audio, ok := audioTensor.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("%w: %q output is not float32", ErrInferenceFailure, outputAudio)
	}

	return sanitizeAudio(audio)
}

func (e *Engine) validateInputs(tokens []int64, style []float32, speed float32) error {
	if len(tokens) == 0 {
		return fmt.Errorf("%w: empty token sequence", ErrInputValidation)
	}

	if e.vocabSize > 0 {
		for i, id := range tokens {
			if id < 0 || id >= int64(e.vocabSize) {
				return fmt.Errorf("%w: token[%d]=%d outside vocabulary [0,%d)", ErrInputValidation, i, id, e.vocabSize)
			}
		}
	}

	if len(style) == 0 {
		return fmt.Errorf("%w: empty style vector", ErrInputValidation)
	}
	for i, v := range style {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: style[%d] is non-finite", ErrInputValidation, i)
		}
	}

	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("%w: speed %v outside [%v,%v]", ErrInputValidation, speed, MinSpeed, MaxSpeed)
	}

	return nil
}

// sanitizeAudio flattens the graph's raw audio output into a well-formed
// sample buffer: NaN becomes silence, +/-Inf is clipped to the valid
// [-1,1] range, and an all-absent result is rejected outright.
func sanitizeAudio(raw []float32) ([]float32, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: graph produced zero audio samples", ErrAudioValidation)
	}

	sanitized := make([]float32, len(raw))
	nonFinite := 0

	for i, v := range raw {
		switch {
		case math.IsNaN(float64(v)):
			sanitized[i] = 0
			nonFinite++
		case math.IsInf(float64(v), 1):
			sanitized[i] = 1
			nonFinite++
		case math.IsInf(float64(v), -1):
			sanitized[i] = -1
			nonFinite++
		default:
			sanitized[i] = v
		}
	}

	if nonFinite > 0 {
		slog.Warn("inference output contained non-finite samples",
			slog.Int("count", nonFinite),
			slog.Int("total", len(raw)),
		)
	}

	return sanitized, nil
}
