package inference

import "errors"

// Sentinel errors identifying the failure class of a Synthesize call, so
// callers can map them onto the service-level error taxonomy without string
// matching.
var (
	// ErrInputValidation means the caller supplied tokens, a style vector,
	// or a speed value outside the graph's accepted range.
	ErrInputValidation = errors.New("inference: invalid input")

	// ErrInferenceFailure means the ONNX graph itself returned an error or
	// an unusable output; it is never retried automatically.
	ErrInferenceFailure = errors.New("inference: graph execution failed")

	// ErrAudioValidation means the graph ran but produced no audio samples.
	// NaN and +/-Inf samples are sanitized (to 0 and +/-1), not rejected.
	ErrAudioValidation = errors.New("inference: invalid audio output")
)
